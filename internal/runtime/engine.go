package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/agentgraph/internal/logging"
	"github.com/aretw0/agentgraph/internal/validator"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/observability"
	"github.com/aretw0/agentgraph/pkg/ports"
)

// Node is one executable step of the agent graph.
//
// Run must not mutate state; it returns the changes as a patch. Errors are
// returned, never swallowed: the engine turns them into state. A patch
// returned alongside an error contributes only its messages.
type Node interface {
	Phase() domain.Phase
	Run(ctx context.Context, state *domain.RunState, ec domain.ExecContext) (*domain.Patch, error)
}

// Services are the capabilities injected into the built-in nodes.
type Services struct {
	Planner    ports.Planner
	ToolCaller ports.ToolCaller
	Corrector  ports.Corrector
	// Validator is optional; without it the validation phase has no node.
	Validator ports.Validator
	Tools     ports.ToolRegistry
}

// Engine drives RunStates through the agent graph.
// It holds no per-run state and is safe for concurrent use on disjoint states.
type Engine struct {
	nodes       map[domain.Phase]Node
	transitions Transitions
	sink        *observability.Sink
	logger      *slog.Logger
	now         func() time.Time

	promoteToolFailures bool
}

// NewEngine creates an engine wired with the built-in nodes.
func NewEngine(svc Services, opts ...Option) (*Engine, error) {
	e := &Engine{
		nodes:       make(map[domain.Phase]Node),
		transitions: DefaultTransitions(),
		sink:        observability.NewSink(),
		logger:      logging.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := validator.ValidateTransitions(e.transitions); err != nil {
		return nil, fmt.Errorf("invalid transition table: %w", err)
	}

	defaults := []struct {
		phase domain.Phase
		build func() (Node, error)
	}{
		{domain.PhasePlanner, func() (Node, error) {
			if svc.Planner == nil {
				return nil, errors.New("planner service is required")
			}
			return NewPlannerNode(svc.Planner), nil
		}},
		{domain.PhaseExecutor, func() (Node, error) {
			if svc.ToolCaller == nil {
				return nil, errors.New("tool caller service is required")
			}
			return NewExecutorNode(svc.ToolCaller, svc.Tools), nil
		}},
		{domain.PhaseToolRunner, func() (Node, error) {
			if svc.Tools == nil {
				return nil, errors.New("tool registry is required")
			}
			return &ToolRunnerNode{tools: svc.Tools, promoteFailures: e.promoteToolFailures, now: e.now}, nil
		}},
		{domain.PhaseErrorRecovery, func() (Node, error) {
			if svc.Corrector == nil {
				return nil, errors.New("corrector service is required")
			}
			return NewRecoveryNode(svc.Corrector), nil
		}},
		{domain.PhaseValidation, func() (Node, error) {
			if svc.Validator == nil {
				return nil, nil
			}
			return NewValidationNode(svc.Validator), nil
		}},
	}
	for _, d := range defaults {
		if _, overridden := e.nodes[d.phase]; overridden {
			continue
		}
		n, err := d.build()
		if err != nil {
			return nil, fmt.Errorf("failed to build %s node: %w", d.phase, err)
		}
		if n != nil {
			e.nodes[d.phase] = n
		}
	}
	return e, nil
}

// Transitions returns a copy of the engine's transition table.
func (e *Engine) Transitions() Transitions {
	out := make(Transitions, len(e.transitions))
	for from := range e.transitions {
		out[from] = e.transitions.Targets(from)
	}
	return out
}

// HasNode reports whether a node is registered for phase.
func (e *Engine) HasNode(phase domain.Phase) bool {
	_, ok := e.nodes[phase]
	return ok
}

// Run executes steps until the state is completed or reaches a terminal
// phase. It returns an error only for fatal outcomes (exhausted budgets,
// cancellation, a failing recovery); the state is returned either way.
// Running a finished state is a no-op.
func (e *Engine) Run(ctx context.Context, state *domain.RunState) (*domain.RunState, error) {
	if state == nil {
		return nil, errors.New("nil run state")
	}
	for !Finished(state) {
		if _, err := e.Step(ctx, state); err != nil {
			return state, err
		}
	}
	return state, nil
}

// Step executes exactly one node and applies its patch to state.
// A step on a finished state is a no-op.
func (e *Engine) Step(ctx context.Context, state *domain.RunState) (*domain.RunState, error) {
	if state == nil {
		return nil, errors.New("nil run state")
	}
	if Finished(state) {
		return state, nil
	}

	phase := state.CurrentPhase
	if state.Error != "" && phase != domain.PhaseErrorRecovery {
		// A pending error always routes to recovery.
		e.logger.Debug("pending error routed to recovery", "chat_id", state.ChatID, "phase", phase)
		phase = domain.PhaseErrorRecovery
	}

	var (
		patch *domain.Patch
		fatal error
	)
	node, ok := e.nodes[phase]
	if !ok {
		patch, fatal = e.missingNode(state, phase)
	} else {
		e.logger.Debug("executing node", "chat_id", state.ChatID, "phase", phase, "iteration", state.Iteration)
		patch, fatal = e.execute(ctx, node, state)
		if fatal == nil {
			fatal = e.checkTransition(state, phase, patch)
		}
	}

	patch.Apply(state)

	if fatal != nil {
		e.logger.Error("run failed", "chat_id", state.ChatID, "phase", phase, "error", fatal)
		return state, fmt.Errorf("chat %s: %w", state.ChatID, fatal)
	}
	return state, nil
}

// Finished reports whether no further node will run for state.
func Finished(state *domain.RunState) bool {
	return state.Finished()
}

// checkTransition validates the phase proposed by patch. A patch without a
// proposal is checked as a move from the phase to itself. An illegal
// proposal, or one into a phase without a node, is replaced by a route to
// error recovery. It returns a fatal error when recovery itself proposed it.
func (e *Engine) checkTransition(state *domain.RunState, from domain.Phase, patch *domain.Patch) error {
	to := patch.Next
	if to == "" {
		// No proposal means staying put, which must be a legal edge too.
		to = from
	}
	legal := e.transitions.Valid(from, to) && (to.IsTerminal() || e.HasNode(to))
	if legal {
		return nil
	}

	terr := &domain.TransitionError{From: from, To: to}
	e.logger.Warn("transition rejected", "chat_id", state.ChatID, "from", from, "to", to)

	if from == domain.PhaseErrorRecovery || !e.transitions.Valid(from, domain.PhaseErrorRecovery) || !e.HasNode(domain.PhaseErrorRecovery) {
		err := fmt.Errorf("%w: %w", domain.ErrRecoveryFailed, terr)
		patch.Completed = nil
		patch.FinalAnswer = nil
		patch.AppendMessages(e.failureMessage(terr)).SetFailure(err.Error()).GoTo(domain.PhaseFailed)
		return err
	}

	// The node's appends and counters stand; its completion does not.
	patch.Completed = nil
	patch.FinalAnswer = nil
	patch.SetError(terr.Error()).GoTo(domain.PhaseErrorRecovery)
	return nil
}

// missingNode handles a current phase that has no registered node.
func (e *Engine) missingNode(state *domain.RunState, phase domain.Phase) (*domain.Patch, error) {
	terr := &domain.TransitionError{From: state.CurrentPhase, To: phase}
	e.logger.Warn("no node registered for phase", "chat_id", state.ChatID, "phase", phase)
	if phase == domain.PhaseErrorRecovery || !e.HasNode(domain.PhaseErrorRecovery) {
		err := fmt.Errorf("%w: no node registered for phase %s", domain.ErrRecoveryFailed, phase)
		return domain.NewPatch().
			AppendMessages(e.failureMessage(err)).
			SetFailure(err.Error()).
			GoTo(domain.PhaseFailed), err
	}
	return domain.NewPatch().
		SetError(fmt.Sprintf("no node registered for phase %s: %v", phase, terr)).
		GoTo(domain.PhaseErrorRecovery), nil
}
