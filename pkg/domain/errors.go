package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrIterationLimit is returned when a global or per-phase budget is exhausted.
	ErrIterationLimit = errors.New("iteration limit exceeded")
	// ErrPrecondition is returned when a node's required input is missing.
	ErrPrecondition = errors.New("precondition violation")
	// ErrDecisionFailed is returned when a decision service exhausts its repair attempts.
	ErrDecisionFailed = errors.New("decision service failure")
	// ErrTransitionRejected is returned when a node proposes an illegal phase change.
	ErrTransitionRejected = errors.New("transition rejected")
	// ErrRunCanceled is returned when the run's context is done.
	ErrRunCanceled = errors.New("run canceled")
	// ErrRecoveryFailed is returned when error recovery itself fails.
	ErrRecoveryFailed = errors.New("error recovery failed")
	// ErrSessionNotFound is returned when a chat id cannot be found in the store.
	ErrSessionNotFound = errors.New("session not found")
)

// LimitScope tells which budget was exhausted.
type LimitScope string

const (
	LimitGlobal LimitScope = "global"
	LimitPhase  LimitScope = "phase"
)

// IterationLimitError describes an exhausted iteration budget.
type IterationLimitError struct {
	Scope LimitScope
	Phase Phase
	Limit int
}

func (e *IterationLimitError) Error() string {
	if e.Scope == LimitGlobal {
		return fmt.Sprintf("global iteration limit of %d reached before %s", e.Limit, e.Phase)
	}
	return fmt.Sprintf("phase %s reached its iteration limit of %d", e.Phase, e.Limit)
}

func (e *IterationLimitError) Unwrap() error { return ErrIterationLimit }

// PreconditionError reports a node invoked without its required input.
type PreconditionError struct {
	Phase   Phase
	Missing string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s requires %s", e.Phase, e.Missing)
}

func (e *PreconditionError) Unwrap() error { return ErrPrecondition }

// DecisionError wraps the last defect of a decision service that gave up.
type DecisionError struct {
	Kind     string
	Attempts int
	Err      error
}

func (e *DecisionError) Error() string {
	return fmt.Sprintf("%s decision failed after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *DecisionError) Unwrap() []error { return []error{ErrDecisionFailed, e.Err} }

// TransitionError reports a phase change missing from the transition table.
type TransitionError struct {
	From Phase
	To   Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrTransitionRejected }
