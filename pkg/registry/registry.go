package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/agentgraph/internal/logging"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ToolFunction defines the signature for a tool implementation.
// It receives a context and a map of arguments, and returns a result or error.
type ToolFunction func(ctx context.Context, args map[string]any) (any, error)

// ErrToolNotFound is returned by Execute for unknown tools.
var ErrToolNotFound = errors.New("tool not found")

type entry struct {
	def    domain.Tool
	fn     ToolFunction
	schema *jsonschema.Schema
}

// Registry manages the available tools. It implements ports.ToolRegistry.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*entry
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates a new empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		tools:  make(map[string]*entry),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool to the registry, compiling its parameter schema if
// one is given. If a tool with the same name exists, it is overwritten.
func (r *Registry) Register(def domain.Tool, fn ToolFunction) error {
	if strings.TrimSpace(def.Name) == "" {
		return errors.New("tool name is required")
	}
	if fn == nil {
		return fmt.Errorf("tool %s has no implementation", def.Name)
	}
	e := &entry{def: def, fn: fn}
	if len(def.Parameters) > 0 {
		schema, err := compileSchema(def.Name, def.Parameters)
		if err != nil {
			return fmt.Errorf("invalid parameter schema for tool %s: %w", def.Name, err)
		}
		e.schema = schema
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = e
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(def domain.Tool, fn ToolFunction) {
	if err := r.Register(def, fn); err != nil {
		panic(err)
	}
}

// Execute looks up a tool by name, validates the arguments and executes it.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if args == nil {
		args = map[string]any{}
	}
	if e.schema != nil {
		if err := validate(e.schema, args); err != nil {
			return nil, fmt.Errorf("invalid parameters for %s: %w", name, err)
		}
	}
	return e.fn(ctx, args)
}

// ExecuteTool implements ports.ToolRegistry. It never returns an error and
// never panics; every failure is encoded in the result.
func (r *Registry) ExecuteTool(ctx context.Context, name string, params map[string]any, tc domain.ToolContext) (result domain.ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked", "tool", name, "chat_id", tc.ChatID, "panic", rec)
			result = domain.ToolResult{Success: false, Error: fmt.Sprintf("tool %s panicked: %v", name, rec)}
		}
	}()

	data, err := r.Execute(WithToolContext(ctx, tc), name, params)
	if err != nil {
		r.logger.Debug("tool failed", "tool", name, "chat_id", tc.ChatID, "error", err)
		return domain.ToolResult{Success: false, Error: err.Error()}
	}
	return domain.ToolResult{Success: true, Data: data}
}

// Names lists the registered tools sorted by name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Tools describes the registered tools sorted by name.
func (r *Registry) Tools() []domain.Tool {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Tool, 0, len(names))
	for _, name := range names {
		if e, ok := r.tools[name]; ok {
			out = append(out, e.def)
		}
	}
	return out
}

type toolContextKey struct{}

// WithToolContext attaches the calling run's identity to ctx.
func WithToolContext(ctx context.Context, tc domain.ToolContext) context.Context {
	return context.WithValue(ctx, toolContextKey{}, tc)
}

// ToolContextFrom returns the run identity attached by ExecuteTool.
func ToolContextFrom(ctx context.Context) (domain.ToolContext, bool) {
	tc, ok := ctx.Value(toolContextKey{}).(domain.ToolContext)
	return tc, ok
}

func compileSchema(name string, params map[string]any) (*jsonschema.Schema, error) {
	doc, err := toJSONValue(params)
	if err != nil {
		return nil, err
	}
	url := name + ".schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

func validate(schema *jsonschema.Schema, args map[string]any) error {
	v, err := toJSONValue(args)
	if err != nil {
		return err
	}
	return schema.Validate(v)
}

// toJSONValue normalizes a Go value into the form produced by decoding JSON,
// which is what the schema validator expects.
func toJSONValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(raw))
}
