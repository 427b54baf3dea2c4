package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/agentgraph/internal/runtime"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func execCtx(phase domain.Phase) domain.ExecContext {
	return domain.ExecContext{Timestamp: time.Now(), Phase: phase, ChatID: "chat-1"}
}

func TestExecutorNode_RequiresTask(t *testing.T) {
	n := runtime.NewExecutorNode(&mockToolCaller{}, nil)
	state := domain.NewRunState("hi", "chat-1", domain.DefaultLimits())

	_, err := n.Run(context.Background(), state, execCtx(domain.PhaseExecutor))
	assert.ErrorIs(t, err, domain.ErrPrecondition)
}

func TestToolRunnerNode_RequiresPendingCall(t *testing.T) {
	n := runtime.NewToolRunnerNode(&mockRegistry{}, false)
	state := domain.NewRunState("hi", "chat-1", domain.DefaultLimits())
	state.DebugInfo[domain.DebugPendingToolCall] = domain.ToolCall{Tool: " "}

	_, err := n.Run(context.Background(), state, execCtx(domain.PhaseToolRunner))
	var pre *domain.PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, domain.PhaseToolRunner, pre.Phase)
}

func TestToolRunnerNode_SkipsDuplicateCalls(t *testing.T) {
	tools := &mockRegistry{}
	n := runtime.NewToolRunnerNode(tools, false)

	call := domain.ToolCall{Tool: "listFiles", Parameters: map[string]any{"path": "src"}}
	sig, err := runtime.ToolCallSignature(call, "chat-1")
	require.NoError(t, err)

	state := domain.NewRunState("hi", "chat-1", domain.DefaultLimits())
	state.DebugInfo[domain.DebugPendingToolCall] = call
	state.ToolSignatures[sig] = true

	p, err := n.Run(context.Background(), state, execCtx(domain.PhaseToolRunner))
	require.NoError(t, err)
	p.Apply(state)

	tools.AssertNotCalled(t, "ExecuteTool", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	last, ok := state.LastToolResult()
	require.True(t, ok)
	assert.Contains(t, last.Content, "ERROR: skipped duplicate call to listFiles")
	require.Len(t, state.ToolsUsed, 1)
	assert.Equal(t, "listFiles", state.ToolsUsed[0].ToolName)
	assert.False(t, state.ToolsUsed[0].Success)
	assert.Contains(t, state.ToolsUsed[0].Error, "skipped duplicate call")
	assert.NotContains(t, state.DebugInfo, domain.DebugPendingToolCall)
}

func TestToolRunnerNode_FailedResult(t *testing.T) {
	tests := []struct {
		name    string
		promote bool
		next    domain.Phase
	}{
		{name: "failure is ordinary history", promote: false, next: domain.PhasePlanner},
		{name: "failure is promoted to an error", promote: true, next: domain.PhaseErrorRecovery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.tools.On("ExecuteTool", mock.Anything, "readFile", mock.Anything, mock.Anything).
				Return(domain.ToolResult{Success: false, Error: "no such file"})
			e := h.engine(t, false, runtime.WithToolFailurePromotion(tt.promote))

			state := domain.NewRunState("hi", "chat-1", domain.DefaultLimits())
			state.CurrentPhase = domain.PhaseToolRunner
			state.DebugInfo[domain.DebugPendingToolCall] = domain.ToolCall{Tool: "readFile"}

			_, err := e.Step(context.Background(), state)
			require.NoError(t, err)
			assert.Equal(t, tt.next, state.CurrentPhase)

			last, ok := state.LastToolResult()
			require.True(t, ok)
			assert.Equal(t, "ERROR: no such file", last.Content)
			require.Len(t, state.ToolsUsed, 1)
			assert.False(t, state.ToolsUsed[0].Success)
			if tt.promote {
				assert.Contains(t, state.Error, "tool readFile failed")
			} else {
				assert.Empty(t, state.Error)
			}
		})
	}
}

func TestRecoveryNode_RejectsEmptyModifyPlan(t *testing.T) {
	corrector := &mockCorrector{}
	corrector.On("Correct", mock.Anything, mock.Anything).
		Return(domain.CorrectionDecision{Decision: domain.CorrectionModifyPlan}, nil)
	n := runtime.NewRecoveryNode(corrector)

	state := domain.NewRunState("hi", "chat-1", domain.DefaultLimits())
	state.Error = "boom"
	state.CurrentPlan = []string{"keep"}

	_, err := n.Run(context.Background(), state, execCtx(domain.PhaseErrorRecovery))
	assert.Error(t, err)
	assert.Equal(t, []string{"keep"}, state.CurrentPlan)
}

func TestRecoveryNode_Branches(t *testing.T) {
	tests := []struct {
		name     string
		decision domain.CorrectionDecision
		wantPlan []string
		wantTask string
		wantMsg  string
	}{
		{
			name:     "retry keeps everything",
			decision: domain.CorrectionDecision{Decision: domain.CorrectionRetry},
			wantPlan: []string{"a", "b"},
			wantTask: "a",
			wantMsg:  "retrying",
		},
		{
			name:     "modify_plan replaces the plan",
			decision: domain.CorrectionDecision{Decision: domain.CorrectionModifyPlan, NewPlan: []string{"c"}},
			wantPlan: []string{"c"},
			wantTask: "",
			wantMsg:  "replacing the plan",
		},
		{
			name:     "continue drops the task",
			decision: domain.CorrectionDecision{Decision: domain.CorrectionContinue},
			wantPlan: []string{"b"},
			wantTask: "",
			wantMsg:  `skipping the failed step "a"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			corrector := &mockCorrector{}
			corrector.On("Correct", mock.Anything, mock.Anything).Return(tt.decision, nil)
			n := runtime.NewRecoveryNode(corrector)

			state := domain.NewRunState("hi", "chat-1", domain.DefaultLimits())
			state.Error = "boom"
			state.CurrentPlan = []string{"a", "b"}
			state.CurrentTask = "a"

			p, err := n.Run(context.Background(), state, execCtx(domain.PhaseErrorRecovery))
			require.NoError(t, err)
			p.Executed = domain.PhaseErrorRecovery
			p.Apply(state)

			assert.Empty(t, state.Error)
			assert.Equal(t, tt.wantPlan, state.CurrentPlan)
			assert.Equal(t, tt.wantTask, state.CurrentTask)
			assert.Equal(t, domain.PhasePlanner, state.CurrentPhase)
			assert.Contains(t, state.Messages[len(state.Messages)-1].Content, tt.wantMsg)
		})
	}
}

func TestToolCallSignature(t *testing.T) {
	a, err := runtime.ToolCallSignature(domain.ToolCall{Tool: "t", Parameters: map[string]any{"x": 1, "y": "z"}}, "c")
	require.NoError(t, err)
	b, err := runtime.ToolCallSignature(domain.ToolCall{Tool: "t", Parameters: map[string]any{"y": "z", "x": 1}}, "c")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := runtime.ToolCallSignature(domain.ToolCall{Tool: "t", Parameters: map[string]any{"x": 1, "y": "z"}}, "other-chat")
	require.NoError(t, err)
	assert.NotEqual(t, a, other)

	empty, err := runtime.ToolCallSignature(domain.ToolCall{Tool: "t"}, "c")
	require.NoError(t, err)
	emptyMap, err := runtime.ToolCallSignature(domain.ToolCall{Tool: "t", Parameters: map[string]any{}}, "c")
	require.NoError(t, err)
	assert.Equal(t, empty, emptyMap)
}

func TestTransitions(t *testing.T) {
	table := runtime.DefaultTransitions()
	assert.True(t, table.Valid(domain.PhasePlanner, domain.PhaseExecutor))
	assert.True(t, table.Valid(domain.PhaseToolRunner, domain.PhasePlanner))
	assert.False(t, table.Valid(domain.PhaseToolRunner, domain.PhaseExecutor))
	assert.False(t, table.Valid(domain.PhaseErrorRecovery, domain.PhaseExecutor))
	assert.False(t, table.Valid(domain.PhaseCompleted, domain.PhasePlanner))

	for _, p := range domain.NodePhases() {
		assert.True(t, table.Valid(p, domain.PhaseFailed), "%s must reach failed", p)
	}

	phases := table.Phases()
	assert.Equal(t, domain.NodePhases(), phases[:5])
	assert.ElementsMatch(t, []domain.Phase{domain.PhaseCompleted, domain.PhaseFailed}, phases[5:])
}
