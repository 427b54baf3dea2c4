package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatch_Apply(t *testing.T) {
	s := NewRunState("hello", "chat-1", DefaultLimits())

	p := NewPatch().
		SetPlan([]string{"a", "b"}).
		SetTask("a").
		SetWorkingMemory("notes").
		AppendMessages(Message{Role: RoleThought, Content: "t"}).
		SetDebug("k", 1).
		AddSignature("sig").
		GoTo(PhaseExecutor)
	p.Executed = PhasePlanner
	p.Apply(s)

	assert.Equal(t, []string{"a", "b"}, s.CurrentPlan)
	assert.Equal(t, "a", s.CurrentTask)
	assert.Equal(t, "notes", s.WorkingMemory)
	assert.Len(t, s.Messages, 1)
	assert.Equal(t, 1, s.DebugInfo["k"])
	assert.True(t, s.ToolSignatures["sig"])
	assert.Equal(t, PhaseExecutor, s.CurrentPhase)
	assert.Equal(t, 1, s.Iteration)
	assert.Equal(t, 1, s.NodeIterations[PhasePlanner])
}

func TestPatch_AbsentFieldsAreUnchanged(t *testing.T) {
	s := NewRunState("hello", "chat-1", DefaultLimits())
	s.CurrentPlan = []string{"keep"}
	s.CurrentTask = "keep"

	NewPatch().AppendMessages(Message{Role: RoleThought}).Apply(s)

	assert.Equal(t, []string{"keep"}, s.CurrentPlan)
	assert.Equal(t, "keep", s.CurrentTask)
	assert.Equal(t, PhasePlanner, s.CurrentPhase)
}

func TestPatch_ClearedFields(t *testing.T) {
	s := NewRunState("hello", "chat-1", DefaultLimits())
	s.CurrentPlan = []string{"x"}
	s.CurrentTask = "x"

	NewPatch().SetPlan(nil).ClearTask().Apply(s)

	assert.NotNil(t, s.CurrentPlan)
	assert.Empty(t, s.CurrentPlan)
	assert.Empty(t, s.CurrentTask)
}

func TestPatch_OnlyErrorRecoveryClearsError(t *testing.T) {
	tests := []struct {
		name     string
		executed Phase
		want     string
	}{
		{name: "planner cannot clear", executed: PhasePlanner, want: "boom"},
		{name: "tool runner cannot clear", executed: PhaseToolRunner, want: "boom"},
		{name: "error recovery clears", executed: PhaseErrorRecovery, want: ""},
		{name: "host patch clears", executed: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewRunState("hello", "chat-1", DefaultLimits())
			s.Error = "boom"
			p := NewPatch().ClearError()
			p.Executed = tt.executed
			p.Apply(s)
			assert.Equal(t, tt.want, s.Error)
		})
	}
}

func TestPatch_Merge(t *testing.T) {
	a := NewPatch().SetTask("a").AppendMessages(Message{Content: "1"}).SetDebug("x", 1)
	b := NewPatch().SetTask("b").AppendMessages(Message{Content: "2"}).DeleteDebug("x").GoTo(PhaseFailed)

	a.Merge(b)
	require.NotNil(t, a.Task)
	assert.Equal(t, "b", *a.Task)
	assert.Len(t, a.Messages, 2)
	assert.NotContains(t, a.DebugSet, "x")
	assert.Contains(t, a.DebugDelete, "x")
	assert.Equal(t, PhaseFailed, a.Next)
}

func TestPatch_SetFailureCompletes(t *testing.T) {
	s := NewRunState("hello", "chat-1", DefaultLimits())
	NewPatch().SetFailure("limit").GoTo(PhaseFailed).Apply(s)
	assert.True(t, s.IsCompleted)
	assert.Equal(t, "limit", s.Failure)
	assert.True(t, s.CurrentPhase.IsTerminal())
}
