package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
)

// ValidationNode checks the final answer before the run completes.
type ValidationNode struct {
	validator ports.Validator
}

func NewValidationNode(validator ports.Validator) *ValidationNode {
	return &ValidationNode{validator: validator}
}

func (n *ValidationNode) Phase() domain.Phase { return domain.PhaseValidation }

func (n *ValidationNode) Run(ctx context.Context, state *domain.RunState, ec domain.ExecContext) (*domain.Patch, error) {
	if state.FinalAnswer == "" {
		return nil, &domain.PreconditionError{Phase: ec.Phase, Missing: "a final answer"}
	}

	decision, err := n.validator.Validate(ctx, ports.ValidationInput{
		UserInput:   state.UserInput,
		FinalAnswer: state.FinalAnswer,
		History:     executionHistory(state),
	})
	if err != nil {
		return nil, fmt.Errorf("answer validation failed: %w", err)
	}
	if err := decision.Validate(); err != nil {
		return nil, fmt.Errorf("invalid validation decision: %w", err)
	}

	p := domain.NewPatch()
	appendThought(p, ec.Phase, decision.Thought, ec.Timestamp)

	if decision.IsValid {
		return p.
			AppendMessages(message(domain.RoleAssistant, ec.Phase, state.FinalAnswer, ec.Timestamp)).
			Complete().
			GoTo(domain.PhaseCompleted), nil
	}
	return p.
		SetFinalAnswer("").
		SetDebug(domain.DebugValidationFeedback, decision.Feedback).
		GoTo(domain.PhasePlanner), nil
}
