package runtime

import (
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
)

// RecoveryNode is the single sink for node failures and the only node that
// retires RunState.Error. Every branch clears it.
//
// A retry adds no counter of its own: the per-phase caps on planner and
// error_recovery are the only bound on retry loops.
type RecoveryNode struct {
	corrector ports.Corrector
}

func NewRecoveryNode(corrector ports.Corrector) *RecoveryNode {
	return &RecoveryNode{corrector: corrector}
}

func (n *RecoveryNode) Phase() domain.Phase { return domain.PhaseErrorRecovery }

func (n *RecoveryNode) Run(ctx context.Context, state *domain.RunState, ec domain.ExecContext) (*domain.Patch, error) {
	decision, err := n.corrector.Correct(ctx, ports.CorrectionInput{
		UserInput:        state.UserInput,
		Plan:             state.CurrentPlan,
		FailedTask:       state.CurrentTask,
		Error:            state.Error,
		ExecutionHistory: executionHistory(state),
	})
	if err != nil {
		return nil, fmt.Errorf("error correction failed: %w", err)
	}
	// A malformed decision must never be applied, even if a service let it through.
	if err := decision.Validate(); err != nil {
		return nil, fmt.Errorf("invalid correction decision: %w", err)
	}

	p := domain.NewPatch().
		ClearError().
		DeleteDebug(domain.DebugPendingToolCall)
	appendThought(p, ec.Phase, decision.Thought, ec.Timestamp)

	var action string
	switch decision.Decision {
	case domain.CorrectionRetry:
		action = "retrying the current step"
	case domain.CorrectionModifyPlan:
		p.SetPlan(decision.NewPlan).ClearTask()
		action = fmt.Sprintf("replacing the plan with %d new task(s)", len(decision.NewPlan))
	case domain.CorrectionContinue:
		plan := slices.DeleteFunc(slices.Clone(state.CurrentPlan), func(t string) bool {
			return t == state.CurrentTask
		})
		p.SetPlan(plan).ClearTask()
		action = "skipping the failed step"
		if state.CurrentTask != "" {
			action = fmt.Sprintf("skipping the failed step %q", state.CurrentTask)
		}
	}

	p.AppendMessages(message(domain.RoleAssistant, ec.Phase,
		fmt.Sprintf("Recovered from an error (%s): %s.", state.Error, action), ec.Timestamp))
	return p.GoTo(domain.PhasePlanner), nil
}
