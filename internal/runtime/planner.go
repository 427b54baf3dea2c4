package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
)

// maxWorkingMemory bounds the running summary carried across iterations.
const maxWorkingMemory = 4000

// PlannerNode decides the next task or completes the run.
type PlannerNode struct {
	planner ports.Planner
}

func NewPlannerNode(planner ports.Planner) *PlannerNode {
	return &PlannerNode{planner: planner}
}

func (n *PlannerNode) Phase() domain.Phase { return domain.PhasePlanner }

func (n *PlannerNode) Run(ctx context.Context, state *domain.RunState, ec domain.ExecContext) (*domain.Patch, error) {
	p := domain.NewPatch()
	if !hasHumanMessage(state) {
		p.AppendMessages(message(domain.RoleHuman, ec.Phase, state.UserInput, ec.Timestamp))
	}

	feedback, _ := state.DebugInfo[domain.DebugValidationFeedback].(string)
	if feedback != "" {
		p.DeleteDebug(domain.DebugValidationFeedback)
	}

	decision, err := n.planner.Plan(ctx, ports.PlanInput{
		UserInput:        state.UserInput,
		Plan:             state.CurrentPlan,
		ExecutionHistory: executionHistory(state),
		WorkingMemory:    state.WorkingMemory,
		RetrievedMemory:  state.RetrievedMemory,
		Feedback:         feedback,
	})
	// The partial patch goes back with the error so the human message
	// keeps its place at the head of the log.
	if err != nil {
		return p, fmt.Errorf("planning failed: %w", err)
	}
	if err := decision.Validate(); err != nil {
		return p, fmt.Errorf("invalid plan decision: %w", err)
	}

	appendThought(p, ec.Phase, decision.Thought, ec.Timestamp)

	if decision.IsPlanComplete {
		answer := decision.FinalAnswer
		if answer == "" {
			answer = decision.Thought
		}
		p.SetPlan(nil).ClearTask().SetFinalAnswer(answer)
		if state.RequiresValidation {
			return p.GoTo(domain.PhaseValidation), nil
		}
		return p.
			AppendMessages(message(domain.RoleAssistant, ec.Phase, answer, ec.Timestamp)).
			Complete().
			GoTo(domain.PhaseCompleted), nil
	}

	return p.
		SetPlan(decision.Plan).
		SetTask(decision.NextTask).
		SetWorkingMemory(summarize(state.WorkingMemory, decision.NextTask, decision.Thought)).
		GoTo(domain.PhaseExecutor), nil
}

func hasHumanMessage(state *domain.RunState) bool {
	for _, m := range state.Messages {
		if m.Role == domain.RoleHuman {
			return true
		}
	}
	return false
}

// summarize appends one line to the working memory, keeping its tail.
func summarize(memory, task, thought string) string {
	line := "- " + task
	if thought != "" {
		line += ": " + thought
	}
	if memory != "" {
		memory += "\n"
	}
	memory += line
	if len(memory) > maxWorkingMemory {
		memory = memory[len(memory)-maxWorkingMemory:]
	}
	return memory
}
