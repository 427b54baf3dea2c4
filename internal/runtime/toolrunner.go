package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
)

// ToolRunnerNode dispatches the pending tool call to the registry.
// It makes no decisions.
type ToolRunnerNode struct {
	tools           ports.ToolRegistry
	promoteFailures bool
	now             func() time.Time
}

func NewToolRunnerNode(tools ports.ToolRegistry, promoteFailures bool) *ToolRunnerNode {
	return &ToolRunnerNode{tools: tools, promoteFailures: promoteFailures, now: time.Now}
}

func (n *ToolRunnerNode) Phase() domain.Phase { return domain.PhaseToolRunner }

func (n *ToolRunnerNode) Run(ctx context.Context, state *domain.RunState, ec domain.ExecContext) (*domain.Patch, error) {
	call, ok := state.PendingToolCall()
	if !ok || strings.TrimSpace(call.Tool) == "" {
		return nil, &domain.PreconditionError{Phase: ec.Phase, Missing: "a pending tool call"}
	}

	p := domain.NewPatch().
		DeleteDebug(domain.DebugPendingToolCall).
		GoTo(domain.PhasePlanner)

	sig, sigErr := ToolCallSignature(call, state.ChatID)

	var result domain.ToolResult
	started := n.now()
	if sigErr == nil && state.ToolSignatures[sig] {
		// Skipped calls are still recorded, as failures, without dispatch.
		result = domain.ToolResult{
			Error: fmt.Sprintf("skipped duplicate call to %s: an identical call was already attempted in this run", call.Tool),
		}
	} else {
		result = n.tools.ExecuteTool(ctx, call.Tool, call.Parameters, domain.ToolContext{ChatID: state.ChatID})
		if sigErr == nil {
			p.AddSignature(sig)
		}
	}
	p.AppendToolUsage(domain.ToolUsage{
		ToolName:   call.Tool,
		Input:      call.Parameters,
		Output:     result.Data,
		Success:    result.Success,
		Error:      result.Error,
		StartedAt:  started,
		FinishedAt: n.now(),
	})

	p.AppendMessages(message(domain.RoleToolResult, ec.Phase, formatToolResult(result), n.now()))

	if !result.Success && n.promoteFailures {
		p.SetError(fmt.Sprintf("tool %s failed: %s", call.Tool, result.Error))
	}
	return p, nil
}
