package runtime_test

import (
	"context"
	"time"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
	"github.com/stretchr/testify/mock"
)

type mockPlanner struct{ mock.Mock }

func (m *mockPlanner) Plan(ctx context.Context, in ports.PlanInput) (domain.PlanDecision, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(domain.PlanDecision), args.Error(1)
}

type mockToolCaller struct{ mock.Mock }

func (m *mockToolCaller) GenerateToolCall(ctx context.Context, in ports.ToolCallInput) (domain.ToolCallDecision, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(domain.ToolCallDecision), args.Error(1)
}

type mockCorrector struct{ mock.Mock }

func (m *mockCorrector) Correct(ctx context.Context, in ports.CorrectionInput) (domain.CorrectionDecision, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(domain.CorrectionDecision), args.Error(1)
}

type mockValidator struct{ mock.Mock }

func (m *mockValidator) Validate(ctx context.Context, in ports.ValidationInput) (domain.ValidationDecision, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(domain.ValidationDecision), args.Error(1)
}

type mockRegistry struct{ mock.Mock }

func (m *mockRegistry) ExecuteTool(ctx context.Context, name string, params map[string]any, tc domain.ToolContext) domain.ToolResult {
	args := m.Called(ctx, name, params, tc)
	return args.Get(0).(domain.ToolResult)
}

func (m *mockRegistry) Names() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

// fakes are deterministic services for loops driven by property tests.
type fakePlanner struct{}

func (fakePlanner) Plan(context.Context, ports.PlanInput) (domain.PlanDecision, error) {
	return domain.PlanDecision{Thought: "keep going", Plan: []string{"step"}, NextTask: "step"}, nil
}

type fakeCaller struct{}

func (fakeCaller) GenerateToolCall(context.Context, ports.ToolCallInput) (domain.ToolCallDecision, error) {
	return domain.ToolCallDecision{Tool: "echo", Parameters: map[string]any{"text": "hi"}}, nil
}

type fakeCorrector struct{ decision domain.CorrectionDecision }

func (f fakeCorrector) Correct(context.Context, ports.CorrectionInput) (domain.CorrectionDecision, error) {
	if f.decision.Decision == "" {
		return domain.CorrectionDecision{Decision: domain.CorrectionRetry}, nil
	}
	return f.decision, nil
}

type fakeRegistry struct{}

func (fakeRegistry) ExecuteTool(_ context.Context, name string, params map[string]any, _ domain.ToolContext) domain.ToolResult {
	return domain.ToolResult{Success: true, Data: params}
}

func (fakeRegistry) Names() []string { return []string{"echo"} }

// proposingNode proposes a fixed next phase.
type proposingNode struct {
	phase domain.Phase
	next  domain.Phase
}

func (n proposingNode) Phase() domain.Phase { return n.phase }

func (n proposingNode) Run(context.Context, *domain.RunState, domain.ExecContext) (*domain.Patch, error) {
	return domain.NewPatch().GoTo(n.next), nil
}

// panickingNode panics on every execution.
type panickingNode struct{ phase domain.Phase }

func (n panickingNode) Phase() domain.Phase { return n.phase }

func (n panickingNode) Run(context.Context, *domain.RunState, domain.ExecContext) (*domain.Patch, error) {
	panic("unexpected nil map")
}

// silentNode returns neither a patch nor an error.
type silentNode struct{ phase domain.Phase }

func (n silentNode) Phase() domain.Phase { return n.phase }

func (n silentNode) Run(context.Context, *domain.RunState, domain.ExecContext) (*domain.Patch, error) {
	return nil, nil
}

type recordingDispatcher struct{ types []domain.EventType }

func (r *recordingDispatcher) Publish(_ context.Context, t domain.EventType, _ domain.PhaseEvent) error {
	r.types = append(r.types, t)
	return nil
}

type recordingCollector struct{ errored []bool }

func (r *recordingCollector) RecordDuration(_ domain.Phase, _ time.Duration, errored bool) {
	r.errored = append(r.errored, errored)
}
