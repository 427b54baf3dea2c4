package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
)

// ExecutorNode turns the current task into a pending tool call.
// It never executes tools itself.
type ExecutorNode struct {
	caller ports.ToolCaller
	tools  ports.ToolRegistry
}

func NewExecutorNode(caller ports.ToolCaller, tools ports.ToolRegistry) *ExecutorNode {
	return &ExecutorNode{caller: caller, tools: tools}
}

func (n *ExecutorNode) Phase() domain.Phase { return domain.PhaseExecutor }

func (n *ExecutorNode) Run(ctx context.Context, state *domain.RunState, ec domain.ExecContext) (*domain.Patch, error) {
	if state.CurrentTask == "" {
		return nil, &domain.PreconditionError{Phase: ec.Phase, Missing: "a current task"}
	}

	decision, err := n.caller.GenerateToolCall(ctx, ports.ToolCallInput{
		Task:           state.CurrentTask,
		UserInput:      state.UserInput,
		AvailableTools: n.availableTools(),
	})
	if err != nil {
		return nil, fmt.Errorf("tool call generation failed: %w", err)
	}
	if err := decision.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tool call decision: %w", err)
	}

	p := domain.NewPatch().
		SetDebug(domain.DebugPendingToolCall, decision.Call()).
		ClearTask()
	appendThought(p, ec.Phase, decision.Thought, ec.Timestamp)
	return p.GoTo(domain.PhaseToolRunner), nil
}

func (n *ExecutorNode) availableTools() []domain.Tool {
	if n.tools == nil {
		return nil
	}
	if catalog, ok := n.tools.(ports.ToolCatalog); ok {
		return catalog.Tools()
	}
	names := n.tools.Names()
	out := make([]domain.Tool, 0, len(names))
	for _, name := range names {
		out = append(out, domain.Tool{Name: name})
	}
	return out
}
