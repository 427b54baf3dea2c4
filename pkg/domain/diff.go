package domain

import (
	"reflect"
	"slices"
)

// StateDiff represents the changes between two run states.
// It is serialized as one line per step by tracing hosts.
type StateDiff struct {
	// ChatID is always present to identify the target.
	ChatID string `json:"chat_id"`

	Phase     *Phase   `json:"phase,omitempty"`
	Iteration *int     `json:"iteration,omitempty"`
	Plan      []string `json:"plan,omitempty"`
	// PlanChanged distinguishes a cleared plan from an unchanged one.
	PlanChanged bool    `json:"plan_changed,omitempty"`
	Task        *string `json:"task,omitempty"`
	Error       *string `json:"error,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`

	// Debug contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Debug map[string]any `json:"debug,omitempty"`

	// Messages and ToolsUsed hold the entries appended since the old state.
	Messages  []Message   `json:"messages,omitempty"`
	ToolsUsed []ToolUsage `json:"tools_used,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState.
// It returns nil when nothing changed.
func Diff(oldState, newState *RunState) *StateDiff {
	if newState == nil {
		return nil
	}
	if oldState == nil {
		oldState = &RunState{}
	}

	diff := &StateDiff{ChatID: newState.ChatID}

	if oldState.CurrentPhase != newState.CurrentPhase {
		diff.Phase = &newState.CurrentPhase
	}
	if oldState.Iteration != newState.Iteration {
		diff.Iteration = &newState.Iteration
	}
	if !slices.Equal(oldState.CurrentPlan, newState.CurrentPlan) {
		diff.Plan = slices.Clone(newState.CurrentPlan)
		diff.PlanChanged = true
	}
	if oldState.CurrentTask != newState.CurrentTask {
		diff.Task = &newState.CurrentTask
	}
	if oldState.Error != newState.Error {
		diff.Error = &newState.Error
	}
	if oldState.IsCompleted != newState.IsCompleted {
		diff.Completed = &newState.IsCompleted
	}

	diff.Debug = diffDebug(oldState.DebugInfo, newState.DebugInfo)

	// Messages and tool usages are append-only.
	if n := len(oldState.Messages); len(newState.Messages) > n {
		diff.Messages = slices.Clone(newState.Messages[n:])
	}
	if n := len(oldState.ToolsUsed); len(newState.ToolsUsed) > n {
		diff.ToolsUsed = slices.Clone(newState.ToolsUsed[n:])
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffDebug(old, new map[string]any) map[string]any {
	delta := make(map[string]any)
	for k, newVal := range new {
		oldVal, exists := old[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}
	for k := range old {
		if _, exists := new[k]; !exists {
			delta[k] = nil
		}
	}
	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.Phase == nil &&
		d.Iteration == nil &&
		!d.PlanChanged &&
		d.Task == nil &&
		d.Error == nil &&
		d.Completed == nil &&
		len(d.Debug) == 0 &&
		len(d.Messages) == 0 &&
		len(d.ToolsUsed) == 0
}
