package runtime

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"

	"github.com/aretw0/agentgraph/pkg/domain"
)

// execute runs one node under the iteration budgets and converts its
// outcome into a patch. It is the only place node errors become state.
//
// A non-nil error is returned only for fatal outcomes; the patch then
// already terminates the run.
func (e *Engine) execute(ctx context.Context, node Node, state *domain.RunState) (*domain.Patch, error) {
	phase := node.Phase()

	if err := e.admit(ctx, phase, state); err != nil {
		// A refused execution is still reported as a (zero-length) errored phase.
		e.sink.LogPhaseStart(ctx, state.ChatID, phase, state.Iteration)
		e.sink.TrackError(ctx, state.ChatID, phase, state.Iteration, err)
		e.sink.LogPhaseComplete(ctx, state.ChatID, phase, state.Iteration, err)
		return e.terminate(err), err
	}

	ec := domain.ExecContext{
		Timestamp: e.now(),
		Phase:     phase,
		ChatID:    state.ChatID,
		Iteration: state.Iteration,
	}

	e.sink.LogPhaseStart(ctx, ec.ChatID, phase, ec.Iteration)
	patch, err := e.runNode(ctx, node, state, ec)
	if err != nil {
		e.sink.TrackError(ctx, ec.ChatID, phase, ec.Iteration, err)
	}
	e.sink.LogPhaseComplete(ctx, ec.ChatID, phase, ec.Iteration, err)

	var fatal error
	switch {
	case err != nil && phase == domain.PhaseErrorRecovery:
		// Nothing else may retire the error, so a failing recovery ends the run.
		fatal = fmt.Errorf("%w: %w", domain.ErrRecoveryFailed, err)
		patch = keepMessages(patch, e.terminate(fatal))
	case err != nil:
		e.logger.Debug("node failed, routing to recovery", "chat_id", ec.ChatID, "phase", phase, "error", err)
		patch = keepMessages(patch, domain.NewPatch().SetError(err.Error()).GoTo(domain.PhaseErrorRecovery))
	case patch == nil:
		patch = domain.NewPatch()
	case patch.HasError() && patch.Next != domain.PhaseFailed:
		patch.Completed = nil
		patch.GoTo(domain.PhaseErrorRecovery)
	}

	patch.Executed = phase
	return patch, fatal
}

// keepMessages puts the messages a failed node already appended ahead of
// the replacement patch. Everything else the failed node proposed is dropped.
func keepMessages(failed, replacement *domain.Patch) *domain.Patch {
	if failed == nil || len(failed.Messages) == 0 {
		return replacement
	}
	replacement.Messages = append(slices.Clone(failed.Messages), replacement.Messages...)
	return replacement
}

// admit checks cancellation and both iteration budgets.
func (e *Engine) admit(ctx context.Context, phase domain.Phase, state *domain.RunState) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRunCanceled, err)
	}
	if state.Iteration >= state.MaxGraphIterations {
		return &domain.IterationLimitError{Scope: domain.LimitGlobal, Phase: phase, Limit: state.MaxGraphIterations}
	}
	if limit, capped := state.NodeCap(phase); capped && state.NodeIterations[phase] >= limit {
		return &domain.IterationLimitError{Scope: domain.LimitPhase, Phase: phase, Limit: limit}
	}
	return nil
}

// runNode calls the node, converting a panic into an error.
func (e *Engine) runNode(ctx context.Context, node Node, state *domain.RunState, ec domain.ExecContext) (patch *domain.Patch, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("node panicked", "chat_id", ec.ChatID, "phase", ec.Phase, "panic", r, "stack", string(debug.Stack()))
			patch = nil
			err = fmt.Errorf("%s node panicked: %v", ec.Phase, r)
		}
	}()
	return node.Run(ctx, state, ec)
}

// terminate builds the fatal patch ending a run.
func (e *Engine) terminate(err error) *domain.Patch {
	return domain.NewPatch().
		AppendMessages(e.failureMessage(err)).
		SetFailure(err.Error()).
		GoTo(domain.PhaseFailed)
}

func (e *Engine) failureMessage(err error) domain.Message {
	return domain.Message{
		Role:      domain.RoleAssistant,
		Content:   "The run stopped: " + err.Error(),
		Phase:     domain.PhaseFailed,
		Timestamp: e.now(),
	}
}
