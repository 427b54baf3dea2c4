package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecisions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		d       interface{ Validate() error }
		wantErr bool
	}{
		{name: "complete plan", d: PlanDecision{IsPlanComplete: true}},
		{name: "incomplete plan with task", d: PlanDecision{Plan: []string{"a"}, NextTask: "a"}},
		{name: "incomplete plan without task", d: PlanDecision{Plan: []string{"a"}}, wantErr: true},
		{name: "incomplete plan without tasks", d: PlanDecision{NextTask: "a"}, wantErr: true},
		{name: "tool call", d: ToolCallDecision{Tool: "listFiles"}},
		{name: "tool call without tool", d: ToolCallDecision{Tool: " "}, wantErr: true},
		{name: "retry", d: CorrectionDecision{Decision: CorrectionRetry}},
		{name: "continue", d: CorrectionDecision{Decision: CorrectionContinue}},
		{name: "modify plan", d: CorrectionDecision{Decision: CorrectionModifyPlan, NewPlan: []string{"x"}}},
		{name: "modify plan empty", d: CorrectionDecision{Decision: CorrectionModifyPlan}, wantErr: true},
		{name: "unknown correction", d: CorrectionDecision{Decision: "give_up"}, wantErr: true},
		{name: "valid answer", d: ValidationDecision{IsValid: true}},
		{name: "rejected without feedback", d: ValidationDecision{IsValid: false}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTypedErrors_Unwrap(t *testing.T) {
	var err error = &IterationLimitError{Scope: LimitPhase, Phase: PhasePlanner, Limit: 3}
	assert.ErrorIs(t, err, ErrIterationLimit)
	assert.Contains(t, err.Error(), "planner")

	err = &DecisionError{Kind: "plan", Attempts: 3, Err: errors.New("bad json")}
	assert.ErrorIs(t, err, ErrDecisionFailed)
	assert.Contains(t, err.Error(), "bad json")

	err = &TransitionError{From: PhaseExecutor, To: PhaseCompleted}
	assert.ErrorIs(t, err, ErrTransitionRejected)

	err = &PreconditionError{Phase: PhaseExecutor, Missing: "current task"}
	assert.ErrorIs(t, err, ErrPrecondition)
}
