package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/aretw0/agentgraph/internal/logging"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/registry"
)

// DefaultGracePeriod is how long a canceled process may take to exit after
// SIGTERM before it is killed.
const DefaultGracePeriod = 5 * time.Second

// ErrNotRegistered is returned when executing a command that is not on the
// allow-list.
var ErrNotRegistered = errors.New("process tool not registered")

var argKeyPattern = regexp.MustCompile(`[^A-Z0-9_]`)

// Runner executes allow-listed local processes as tools.
// Arguments are passed as AGENT_ARG_<KEY> environment variables, never as
// command-line flags.
type Runner struct {
	registry map[string]ProcessConfig
	baseDir  string
	grace    time.Duration
	logger   *slog.Logger
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(tools map[string]ProcessConfig) RunnerOption {
	return func(r *Runner) {
		for name, tool := range tools {
			tool.Name = name
			r.registry[name] = tool
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithGracePeriod overrides DefaultGracePeriod.
func WithGracePeriod(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.grace = d
	}
}

func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]ProcessConfig),
		grace:    DefaultGracePeriod,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = ProcessConfig{Name: name, Command: command, Args: args}
}

// RegisterAll exposes every allow-listed command as a tool of reg.
func (r *Runner) RegisterAll(reg *registry.Registry) error {
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		cfg := r.registry[name]
		desc := cfg.Description
		if desc == "" {
			desc = "Runs " + cfg.Command
		}
		def := domain.Tool{Name: name, Description: desc, Parameters: cfg.Parameters}
		if err := reg.Register(def, r.Function(name)); err != nil {
			return fmt.Errorf("failed to register process tool %s: %w", name, err)
		}
	}
	return nil
}

// Function returns a registry.ToolFunction running the named command.
func (r *Runner) Function(name string) registry.ToolFunction {
	return func(ctx context.Context, args map[string]any) (any, error) {
		return r.Execute(ctx, name, args)
	}
}

// Execute runs the named command and returns its output. Output that parses
// as a JSON object or array is returned decoded; anything else is returned
// as trimmed text.
func (r *Runner) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	proc, ok := r.registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	if proc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, proc.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir
	cmd.Cancel = func() error {
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = r.grace

	env := cmd.Environ()
	for k, v := range proc.Environment {
		env = append(env, k+"="+v)
	}
	env = append(env, argsEnv(args)...)
	if tc, ok := registry.ToolContextFrom(ctx); ok && tc.ChatID != "" {
		env = append(env, "AGENT_CHAT_ID="+tc.ChatID)
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.logger.Debug("process tool finished", "tool", name, "duration", time.Since(start), "error", err)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		return nil, fmt.Errorf("execution failed: %w. Stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return decodeOutput(stdout.String()), nil
}

// argsEnv serializes arguments as AGENT_ARG_<KEY>=<value>. Scalars are
// formatted directly, anything else as JSON.
func argsEnv(args map[string]any) []string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	env := make([]string, 0, len(args))
	for _, k := range keys {
		var val string
		switch v := args[k].(type) {
		case string, int, int64, float64, bool:
			val = fmt.Sprintf("%v", v)
		case nil:
			val = ""
		default:
			if raw, err := json.Marshal(v); err == nil {
				val = string(raw)
			} else {
				val = fmt.Sprintf("%v", v)
			}
		}
		key := argKeyPattern.ReplaceAllString(strings.ToUpper(k), "_")
		env = append(env, fmt.Sprintf("AGENT_ARG_%s=%s", key, val))
	}
	return env
}

func decodeOutput(output string) any {
	trimmed := strings.TrimSpace(output)
	if (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")) {
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded
		}
	}
	return trimmed
}
