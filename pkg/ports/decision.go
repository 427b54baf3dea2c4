package ports

import (
	"context"

	"github.com/aretw0/agentgraph/pkg/domain"
)

// PlanInput is the context handed to the planning decision.
type PlanInput struct {
	UserInput string
	Plan      []string
	// ExecutionHistory is derived from the most recent tool result, if any.
	ExecutionHistory string
	WorkingMemory    string
	RetrievedMemory  string
	// Feedback carries a validation rejection from the previous step.
	Feedback string
}

// ToolCallInput is the context handed to the tool-call decision.
type ToolCallInput struct {
	Task           string
	UserInput      string
	AvailableTools []domain.Tool
}

// CorrectionInput is the context handed to the error-correction decision.
type CorrectionInput struct {
	UserInput        string
	Plan             []string
	FailedTask       string
	Error            string
	ExecutionHistory string
}

// ValidationInput is the context handed to the answer validation decision.
type ValidationInput struct {
	UserInput   string
	FinalAnswer string
	History     string
}

// Planner decides the next task or declares the plan complete.
type Planner interface {
	Plan(ctx context.Context, in PlanInput) (domain.PlanDecision, error)
}

// ToolCaller turns a task into a concrete tool call.
type ToolCaller interface {
	GenerateToolCall(ctx context.Context, in ToolCallInput) (domain.ToolCallDecision, error)
}

// Corrector chooses a corrective action after a failure.
// Implementations must never return a modify_plan decision with an empty plan.
type Corrector interface {
	Correct(ctx context.Context, in CorrectionInput) (domain.CorrectionDecision, error)
}

// Validator judges a final answer before the run completes.
type Validator interface {
	Validate(ctx context.Context, in ValidationInput) (domain.ValidationDecision, error)
}
