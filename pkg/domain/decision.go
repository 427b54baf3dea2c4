package domain

import (
	"errors"
	"fmt"
	"strings"
)

// PlanDecision is the planner service's answer.
type PlanDecision struct {
	Thought        string   `json:"thought" mapstructure:"thought"`
	Plan           []string `json:"plan" mapstructure:"plan"`
	IsPlanComplete bool     `json:"isPlanComplete" mapstructure:"isPlanComplete"`
	NextTask       string   `json:"nextTask,omitempty" mapstructure:"nextTask"`
	FinalAnswer    string   `json:"finalAnswer,omitempty" mapstructure:"finalAnswer"`
}

func (d PlanDecision) Validate() error {
	if d.IsPlanComplete {
		return nil
	}
	if strings.TrimSpace(d.NextTask) == "" {
		return errors.New("an incomplete plan must name nextTask")
	}
	if len(d.Plan) == 0 {
		return errors.New("an incomplete plan must list at least one task")
	}
	return nil
}

// ToolCallDecision is the executor service's answer.
type ToolCallDecision struct {
	Thought    string         `json:"thought" mapstructure:"thought"`
	Tool       string         `json:"tool" mapstructure:"tool"`
	Parameters map[string]any `json:"parameters" mapstructure:"parameters"`
}

func (d ToolCallDecision) Validate() error {
	if strings.TrimSpace(d.Tool) == "" {
		return errors.New("tool is required")
	}
	return nil
}

// Call converts the decision into the handoff value for the tool runner.
func (d ToolCallDecision) Call() ToolCall {
	params := d.Parameters
	if params == nil {
		params = map[string]any{}
	}
	return ToolCall{Tool: d.Tool, Parameters: params}
}

// Correction names the corrective action chosen by error recovery.
type Correction string

const (
	CorrectionRetry      Correction = "retry"
	CorrectionModifyPlan Correction = "modify_plan"
	CorrectionContinue   Correction = "continue"
)

// CorrectionDecision is the error-correction service's answer.
type CorrectionDecision struct {
	Thought  string     `json:"thought" mapstructure:"thought"`
	Decision Correction `json:"decision" mapstructure:"decision"`
	NewPlan  []string   `json:"newPlan,omitempty" mapstructure:"newPlan"`
}

func (d CorrectionDecision) Validate() error {
	switch d.Decision {
	case CorrectionRetry, CorrectionContinue:
		return nil
	case CorrectionModifyPlan:
		if len(d.NewPlan) == 0 {
			return errors.New("modify_plan requires a non-empty newPlan")
		}
		return nil
	default:
		return fmt.Errorf("unknown decision %q", d.Decision)
	}
}

// ValidationDecision is the validation service's verdict on a final answer.
type ValidationDecision struct {
	Thought  string `json:"thought" mapstructure:"thought"`
	IsValid  bool   `json:"isValid" mapstructure:"isValid"`
	Feedback string `json:"feedback,omitempty" mapstructure:"feedback"`
}

func (d ValidationDecision) Validate() error {
	if !d.IsValid && strings.TrimSpace(d.Feedback) == "" {
		return errors.New("a rejected answer must carry feedback")
	}
	return nil
}
