package domain

import (
	"maps"
	"slices"
	"time"
)

// Patch is a partial update produced by one node execution.
//
// Pointer fields follow a present/absent convention: nil leaves the field
// unchanged, a non-nil pointer replaces it (a pointer to the zero value
// clears it). Appended slices can only grow the state; counters are bumped
// through Executed and never set directly.
type Patch struct {
	// Executed is the phase whose execution produced this patch. When set,
	// Apply increments Iteration and NodeIterations[Executed].
	Executed Phase `json:"executed,omitempty"`
	// Next is the phase the producing node proposes to move to.
	Next Phase `json:"next,omitempty"`

	Plan               *[]string `json:"plan,omitempty"`
	Task               *string   `json:"task,omitempty"`
	Error              *string   `json:"error,omitempty"`
	Completed          *bool     `json:"completed,omitempty"`
	Failure            *string   `json:"failure,omitempty"`
	WorkingMemory      *string   `json:"working_memory,omitempty"`
	RequiresValidation *bool     `json:"requires_validation,omitempty"`
	FinalAnswer        *string   `json:"final_answer,omitempty"`

	Messages   []Message   `json:"messages,omitempty"`
	ToolUsages []ToolUsage `json:"tool_usages,omitempty"`

	DebugSet    map[string]any `json:"debug_set,omitempty"`
	DebugDelete []string       `json:"debug_delete,omitempty"`
	Signatures  []string       `json:"signatures,omitempty"`
}

// NewPatch returns an empty patch.
func NewPatch() *Patch {
	return &Patch{}
}

func (p *Patch) SetPlan(plan []string) *Patch {
	cp := slices.Clone(plan)
	if cp == nil {
		cp = []string{}
	}
	p.Plan = &cp
	return p
}

func (p *Patch) SetTask(task string) *Patch {
	p.Task = &task
	return p
}

func (p *Patch) ClearTask() *Patch {
	return p.SetTask("")
}

func (p *Patch) SetError(msg string) *Patch {
	p.Error = &msg
	return p
}

// ClearError retires the current error. Apply only honors it for patches
// produced by error recovery or by the host.
func (p *Patch) ClearError() *Patch {
	return p.SetError("")
}

// Complete marks the run as finished.
func (p *Patch) Complete() *Patch {
	done := true
	p.Completed = &done
	return p
}

// SetFailure marks the run as finished unsuccessfully.
func (p *Patch) SetFailure(reason string) *Patch {
	p.Failure = &reason
	return p.Complete()
}

func (p *Patch) SetWorkingMemory(text string) *Patch {
	p.WorkingMemory = &text
	return p
}

func (p *Patch) SetRequiresValidation(required bool) *Patch {
	p.RequiresValidation = &required
	return p
}

func (p *Patch) SetFinalAnswer(answer string) *Patch {
	p.FinalAnswer = &answer
	return p
}

func (p *Patch) AppendMessages(msgs ...Message) *Patch {
	p.Messages = append(p.Messages, msgs...)
	return p
}

func (p *Patch) AppendToolUsage(usages ...ToolUsage) *Patch {
	p.ToolUsages = append(p.ToolUsages, usages...)
	return p
}

func (p *Patch) SetDebug(key string, value any) *Patch {
	if p.DebugSet == nil {
		p.DebugSet = make(map[string]any)
	}
	p.DebugSet[key] = value
	p.DebugDelete = slices.DeleteFunc(p.DebugDelete, func(k string) bool { return k == key })
	return p
}

func (p *Patch) DeleteDebug(key string) *Patch {
	delete(p.DebugSet, key)
	if !slices.Contains(p.DebugDelete, key) {
		p.DebugDelete = append(p.DebugDelete, key)
	}
	return p
}

func (p *Patch) AddSignature(sig string) *Patch {
	p.Signatures = append(p.Signatures, sig)
	return p
}

// GoTo sets the proposed next phase.
func (p *Patch) GoTo(next Phase) *Patch {
	p.Next = next
	return p
}

// HasError reports whether the patch sets a non-empty error.
func (p *Patch) HasError() bool {
	return p.Error != nil && *p.Error != ""
}

// Merge folds other into p. Present fields of other win; appends are
// concatenated in order.
func (p *Patch) Merge(other *Patch) *Patch {
	if other == nil {
		return p
	}
	if other.Executed != "" {
		p.Executed = other.Executed
	}
	if other.Next != "" {
		p.Next = other.Next
	}
	if other.Plan != nil {
		p.SetPlan(*other.Plan)
	}
	if other.Task != nil {
		p.SetTask(*other.Task)
	}
	if other.Error != nil {
		p.SetError(*other.Error)
	}
	if other.Completed != nil {
		v := *other.Completed
		p.Completed = &v
	}
	if other.Failure != nil {
		v := *other.Failure
		p.Failure = &v
	}
	if other.WorkingMemory != nil {
		p.SetWorkingMemory(*other.WorkingMemory)
	}
	if other.RequiresValidation != nil {
		p.SetRequiresValidation(*other.RequiresValidation)
	}
	if other.FinalAnswer != nil {
		p.SetFinalAnswer(*other.FinalAnswer)
	}
	p.Messages = append(p.Messages, other.Messages...)
	p.ToolUsages = append(p.ToolUsages, other.ToolUsages...)
	for _, k := range other.DebugDelete {
		p.DeleteDebug(k)
	}
	for k, v := range other.DebugSet {
		p.SetDebug(k, v)
	}
	p.Signatures = append(p.Signatures, other.Signatures...)
	return p
}

// Apply writes the patch into s. It is the only mutation path for a
// RunState and cannot fail halfway.
func (p *Patch) Apply(s *RunState) {
	if p == nil || s == nil {
		return
	}

	if p.Executed != "" {
		if s.NodeIterations == nil {
			s.NodeIterations = make(map[Phase]int)
		}
		s.NodeIterations[p.Executed]++
		s.Iteration++
	}

	if p.Plan != nil {
		s.CurrentPlan = slices.Clone(*p.Plan)
	}
	if p.Task != nil {
		s.CurrentTask = *p.Task
	}
	if p.Error != nil {
		clearing := *p.Error == ""
		if !clearing || p.Executed == "" || p.Executed == PhaseErrorRecovery {
			s.Error = *p.Error
		}
	}
	if p.Completed != nil {
		s.IsCompleted = *p.Completed
	}
	if p.Failure != nil {
		s.Failure = *p.Failure
	}
	if p.WorkingMemory != nil {
		s.WorkingMemory = *p.WorkingMemory
	}
	if p.RequiresValidation != nil {
		s.RequiresValidation = *p.RequiresValidation
	}
	if p.FinalAnswer != nil {
		s.FinalAnswer = *p.FinalAnswer
	}

	s.Messages = append(s.Messages, p.Messages...)
	s.ToolsUsed = append(s.ToolsUsed, p.ToolUsages...)

	if len(p.DebugDelete) > 0 || len(p.DebugSet) > 0 {
		if s.DebugInfo == nil {
			s.DebugInfo = make(map[string]any)
		}
		for _, k := range p.DebugDelete {
			delete(s.DebugInfo, k)
		}
		maps.Copy(s.DebugInfo, p.DebugSet)
	}

	if len(p.Signatures) > 0 {
		if s.ToolSignatures == nil {
			s.ToolSignatures = make(map[string]bool)
		}
		for _, sig := range p.Signatures {
			s.ToolSignatures[sig] = true
		}
	}

	if p.Next != "" {
		s.CurrentPhase = p.Next
	}
	s.UpdatedAt = time.Now()
}
