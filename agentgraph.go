package agentgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/aretw0/agentgraph/internal/logging"
	"github.com/aretw0/agentgraph/internal/presentation/graph"
	"github.com/aretw0/agentgraph/internal/runtime"
	"github.com/aretw0/agentgraph/pkg/decision"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/observability"
	"github.com/aretw0/agentgraph/pkg/ports"
	"github.com/aretw0/agentgraph/pkg/registry"
)

// Engine is the high-level entry point of the library.
// It wires the decision services, the tool registry and the observability
// sink into the internal runtime and exposes a turn-oriented API.
type Engine struct {
	runtime  *runtime.Engine
	registry *registry.Registry
	sink     *observability.Sink
	logger   *slog.Logger

	completer          decision.Completer
	repairAttempts     int
	limits             domain.Limits
	requiresValidation bool
	promoteFailures    bool
	dispatchers        []ports.EventDispatcher
	collector          ports.PerformanceCollector
}

var _ ports.GraphRunner = (*Engine)(nil)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithCompleter sets the language model behind every decision. Required.
func WithCompleter(c decision.Completer) Option {
	return func(e *Engine) {
		e.completer = c
	}
}

// WithRegistry injects a tool registry. Tools may be registered on it after
// the engine is built.
func WithRegistry(r *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithLimits sets the iteration budgets of new runs.
func WithLimits(l domain.Limits) Option {
	return func(e *Engine) {
		e.limits = l
	}
}

// WithValidation routes the final answer of new runs through validation.
func WithValidation(enabled bool) Option {
	return func(e *Engine) {
		e.requiresValidation = enabled
	}
}

// WithRepairAttempts bounds the repair completions spent on a malformed
// decision.
func WithRepairAttempts(n int) Option {
	return func(e *Engine) {
		e.repairAttempts = n
	}
}

// WithToolFailurePromotion sends failed tool results to error recovery.
func WithToolFailurePromotion(enabled bool) Option {
	return func(e *Engine) {
		e.promoteFailures = enabled
	}
}

// WithEventDispatcher adds a destination for phase events.
func WithEventDispatcher(d ports.EventDispatcher) Option {
	return func(e *Engine) {
		if d != nil {
			e.dispatchers = append(e.dispatchers, d)
		}
	}
}

// WithCollector records phase durations, e.g. into Prometheus.
func WithCollector(c ports.PerformanceCollector) Option {
	return func(e *Engine) {
		e.collector = c
	}
}

// New builds an Engine.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:         logging.NewNop(),
		limits:         domain.DefaultLimits(),
		repairAttempts: decision.DefaultMaxRepairAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.completer == nil {
		return nil, errors.New("a completer is required")
	}
	if e.registry == nil {
		e.registry = registry.NewRegistry(registry.WithLogger(e.logger))
	}

	svc, err := decision.New(e.completer,
		decision.WithLogger(e.logger),
		decision.WithMaxRepairAttempts(e.repairAttempts),
	)
	if err != nil {
		return nil, err
	}

	sinkOpts := []observability.SinkOption{observability.WithLogger(e.logger)}
	if len(e.dispatchers) > 0 {
		sinkOpts = append(sinkOpts, observability.WithDispatcher(observability.NewMultiDispatcher(e.dispatchers...)))
	}
	if e.collector != nil {
		sinkOpts = append(sinkOpts, observability.WithCollector(e.collector))
	}
	e.sink = observability.NewSink(sinkOpts...)

	e.runtime, err = runtime.NewEngine(runtime.Services{
		Planner:    svc,
		ToolCaller: svc,
		Corrector:  svc,
		Validator:  svc,
		Tools:      e.registry,
	},
		runtime.WithLogger(e.logger),
		runtime.WithSink(e.sink),
		runtime.WithToolFailurePromotion(e.promoteFailures),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build runtime: %w", err)
	}
	return e, nil
}

// NewChatID returns a fresh, lexically sortable conversation id.
func NewChatID() string {
	return ulid.Make().String()
}

// NewRun creates the state of a new turn with the engine's budgets.
// An empty chatID is replaced by a generated one.
func (e *Engine) NewRun(chatID, userInput string, opts ...domain.StateOption) *domain.RunState {
	if chatID == "" {
		chatID = NewChatID()
	}
	opts = append([]domain.StateOption{domain.WithRequiresValidation(e.requiresValidation)}, opts...)
	return domain.NewRunState(userInput, chatID, e.limits, opts...)
}

// Run drives state until it finishes. The state is returned even on error.
func (e *Engine) Run(ctx context.Context, state *domain.RunState) (*domain.RunState, error) {
	return e.runtime.Run(ctx, state)
}

// Step executes exactly one node.
func (e *Engine) Step(ctx context.Context, state *domain.RunState) (*domain.RunState, error) {
	return e.runtime.Step(ctx, state)
}

// Ask runs a complete turn for userInput and returns the finished state.
func (e *Engine) Ask(ctx context.Context, chatID, userInput string, opts ...domain.StateOption) (*domain.RunState, error) {
	return e.Run(ctx, e.NewRun(chatID, userInput, opts...))
}

// Registry returns the tool registry used by the engine.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Graph renders the engine's transition table as a Mermaid diagram.
// A non-nil state highlights the phases it visited.
func (e *Engine) Graph(state *domain.RunState) string {
	var overlay *graph.GraphOverlay
	if state != nil {
		overlay = graph.OverlayFromState(state)
	}
	t := e.runtime.Transitions()
	for _, p := range t.Phases() {
		if p.IsNode() && !e.runtime.HasNode(p) {
			if overlay == nil {
				overlay = &graph.GraphOverlay{}
			}
			overlay.Disabled = append(overlay.Disabled, p)
		}
	}
	return graph.GenerateMermaid(t, overlay)
}

// Close releases the observability sink.
func (e *Engine) Close() {
	e.sink.Close()
}
