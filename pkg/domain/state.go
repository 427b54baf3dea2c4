package domain

import (
	"maps"
	"slices"
	"time"
)

// Role classifies an entry of the run's message log.
type Role string

const (
	RoleHuman      Role = "human"       // User input
	RoleThought    Role = "thought"     // Reasoning emitted by a decision service
	RoleToolResult Role = "tool_result" // Outcome of a tool call
	RoleAssistant  Role = "assistant"   // User-visible assistant output
)

// Debug keys used for one-step handoffs between adjacent nodes.
const (
	DebugPendingToolCall    = "pendingToolCall"
	DebugValidationFeedback = "validationFeedback"
)

// Message is one chronological event of a run.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Phase     Phase     `json:"phase,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ToolUsage is an audit record of a dispatched tool call. It is never
// mutated once appended.
type ToolUsage struct {
	ToolName   string         `json:"tool_name"`
	Input      map[string]any `json:"input,omitempty"`
	Output     any            `json:"output,omitempty"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Limits bounds how many node executions a run may perform.
type Limits struct {
	// MaxGraphIterations caps the total number of node executions.
	MaxGraphIterations int `json:"max_graph_iterations" yaml:"max_graph_iterations"`
	// MaxNodeIterations caps executions per phase. Zero or absent means uncapped.
	MaxNodeIterations map[Phase]int `json:"max_node_iterations,omitempty" yaml:"max_node_iterations,omitempty"`
}

// DefaultLimits returns the budgets used when a host configures none.
func DefaultLimits() Limits {
	return Limits{
		MaxGraphIterations: 25,
		MaxNodeIterations: map[Phase]int{
			PhasePlanner:       10,
			PhaseExecutor:      10,
			PhaseToolRunner:    10,
			PhaseValidation:    3,
			PhaseErrorRecovery: 5,
		},
	}
}

// RunState is the record threaded through every step of one conversation
// turn. It is owned by the goroutine driving the turn and is only mutated
// through Patch.Apply.
type RunState struct {
	ChatID    string `json:"chat_id"`
	UserInput string `json:"user_input"`

	// Messages is append-only and chronologically ordered.
	Messages []Message `json:"messages"`

	CurrentPhase Phase `json:"current_phase"`

	// CurrentPlan is the working set of pending tasks. Finished or abandoned
	// tasks are removed, never marked.
	CurrentPlan []string `json:"current_plan"`
	// CurrentTask is empty when no task is selected.
	CurrentTask string `json:"current_task,omitempty"`

	ToolsUsed []ToolUsage `json:"tools_used"`

	WorkingMemory   string `json:"working_memory,omitempty"`
	RetrievedMemory string `json:"retrieved_memory,omitempty"`

	RequiresValidation bool `json:"requires_validation"`
	IsCompleted        bool `json:"is_completed"`

	Iteration          int           `json:"iteration"`
	NodeIterations     map[Phase]int `json:"node_iterations"`
	MaxGraphIterations int           `json:"max_graph_iterations"`
	MaxNodeIterations  map[Phase]int `json:"max_node_iterations,omitempty"`

	// Error routes the next step to error recovery while set.
	Error string `json:"error,omitempty"`

	// DebugInfo carries ephemeral handoff data between adjacent nodes.
	DebugInfo map[string]any `json:"debug_info,omitempty"`

	// ToolSignatures holds the dedup signatures of tool calls already
	// dispatched in this run.
	ToolSignatures map[string]bool `json:"tool_signatures,omitempty"`

	FinalAnswer string `json:"final_answer,omitempty"`
	// Failure describes why a run terminated unsuccessfully.
	Failure string `json:"failure,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StateOption customizes a state built by NewRunState.
type StateOption func(*RunState)

// WithRetrievedMemory seeds the retrieved-memory text supplied by an external
// memory store.
func WithRetrievedMemory(text string) StateOption {
	return func(s *RunState) {
		s.RetrievedMemory = text
	}
}

// WithRequiresValidation routes completed plans through the validation phase.
func WithRequiresValidation(required bool) StateOption {
	return func(s *RunState) {
		s.RequiresValidation = required
	}
}

// WithStartTime overrides the creation timestamp.
func WithStartTime(t time.Time) StateOption {
	return func(s *RunState) {
		s.StartedAt = t
		s.UpdatedAt = t
	}
}

// NewRunState builds the initial state for a new turn. It performs no I/O.
func NewRunState(userInput, chatID string, limits Limits, opts ...StateOption) *RunState {
	now := time.Now()
	nodeIterations := make(map[Phase]int, len(NodePhases()))
	for _, p := range NodePhases() {
		nodeIterations[p] = 0
	}

	s := &RunState{
		ChatID:             chatID,
		UserInput:          userInput,
		Messages:           []Message{},
		CurrentPhase:       PhaseEntry,
		CurrentPlan:        []string{},
		ToolsUsed:          []ToolUsage{},
		NodeIterations:     nodeIterations,
		MaxGraphIterations: limits.MaxGraphIterations,
		MaxNodeIterations:  maps.Clone(limits.MaxNodeIterations),
		DebugInfo:          make(map[string]any),
		ToolSignatures:     make(map[string]bool),
		StartedAt:          now,
		UpdatedAt:          now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NodeCap returns the per-phase cap and whether one is configured.
func (s *RunState) NodeCap(p Phase) (int, bool) {
	limit, ok := s.MaxNodeIterations[p]
	return limit, ok && limit > 0
}

// Finished reports whether the run is completed or in a terminal phase.
func (s *RunState) Finished() bool {
	return s.IsCompleted || s.CurrentPhase.IsTerminal()
}

// PendingToolCall returns the call handed over by the executor, if any.
func (s *RunState) PendingToolCall() (ToolCall, bool) {
	switch v := s.DebugInfo[DebugPendingToolCall].(type) {
	case ToolCall:
		return v, true
	case *ToolCall:
		if v != nil {
			return *v, true
		}
	case map[string]any:
		// States restored from JSON carry the call as a plain object.
		call := ToolCall{}
		call.Tool, _ = v["tool"].(string)
		call.Parameters, _ = v["parameters"].(map[string]any)
		return call, true
	}
	return ToolCall{}, false
}

// LastToolResult returns the most recent tool_result message, if any.
func (s *RunState) LastToolResult() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleToolResult {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// Snapshot returns a deep copy safe to hand to other goroutines.
func (s *RunState) Snapshot() *RunState {
	if s == nil {
		return nil
	}
	next := *s
	next.Messages = slices.Clone(s.Messages)
	next.CurrentPlan = slices.Clone(s.CurrentPlan)
	next.ToolsUsed = slices.Clone(s.ToolsUsed)
	next.NodeIterations = maps.Clone(s.NodeIterations)
	next.MaxNodeIterations = maps.Clone(s.MaxNodeIterations)
	next.DebugInfo = maps.Clone(s.DebugInfo)
	next.ToolSignatures = maps.Clone(s.ToolSignatures)
	return &next
}
