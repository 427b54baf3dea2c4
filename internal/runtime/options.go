package runtime

import (
	"log/slog"
	"time"

	"github.com/aretw0/agentgraph/pkg/observability"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSink sets the observability sink that times every node execution.
func WithSink(sink *observability.Sink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithTransitions replaces the transition table.
func WithTransitions(t Transitions) Option {
	return func(e *Engine) {
		if t != nil {
			e.transitions = t
		}
	}
}

// WithNode registers a node for its phase, replacing the built-in one.
func WithNode(n Node) Option {
	return func(e *Engine) {
		if n != nil {
			e.nodes[n.Phase()] = n
		}
	}
}

// WithToolFailurePromotion turns failed tool results into run errors so they
// are handled by error recovery instead of the planner.
func WithToolFailurePromotion(enabled bool) Option {
	return func(e *Engine) {
		e.promoteToolFailures = enabled
	}
}

// WithClock overrides the time source used for messages and audit records.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
