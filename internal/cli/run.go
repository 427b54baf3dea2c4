package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/agentgraph"
	"github.com/aretw0/agentgraph/internal/presentation/tui"
	"github.com/aretw0/agentgraph/internal/sanitize"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
	"github.com/aretw0/agentgraph/pkg/session"
)

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	ConfigPath string
	Input      string
	// ChatID resumes or names the conversation. Empty starts a new one.
	ChatID string
	// Fresh deletes the stored run of ChatID first.
	Fresh bool
	// Trace prints one line per executed step.
	Trace bool
	// JSON prints the finished state as JSON instead of rendered text.
	JSON  bool
	Debug bool
	// Validate overrides the configured validation setting when non-nil.
	Validate *bool
	Memory   string
}

// Execute runs one turn and writes the outcome to out.
func Execute(ctx context.Context, opts RunOptions, out io.Writer) error {
	input, err := sanitize.Input(opts.Input, sanitize.DefaultMaxInputSize)
	if err != nil {
		return err
	}

	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.Validate != nil {
		cfg.Validation.Enabled = *opts.Validate
	}
	logger, err := NewLogger(cfg.Log, opts.Debug)
	if err != nil {
		return err
	}

	sigCtx := NewSignalContext(ctx)
	defer sigCtx.Cancel()

	stack, err := NewStack(sigCtx, cfg, logger, session.WithResumeNotice(
		func(chatID string, resumed *domain.RunState, dropped string) {
			printSystemMessage(out, "Chat '%s' has an unfinished run at '%s'; resuming it instead of %q.", chatID, resumed.CurrentPhase, dropped)
		}))
	if err != nil {
		return err
	}
	defer stack.Close()

	chatID := opts.ChatID
	if chatID == "" {
		chatID = agentgraph.NewChatID()
	}
	if opts.Fresh {
		if err := stack.Sessions.Delete(sigCtx, chatID); err != nil {
			return err
		}
	}

	r := tui.NewRenderer(out)
	var runner ports.GraphRunner = stack.Engine
	if opts.Trace {
		runner = &tracingRunner{engine: stack.Engine, render: r, out: out}
	}

	var stateOpts []domain.StateOption
	if opts.Memory != "" {
		stateOpts = append(stateOpts, domain.WithRetrievedMemory(opts.Memory))
	}
	start := func() *domain.RunState {
		return stack.Engine.NewRun(chatID, input, stateOpts...)
	}
	state, runErr := stack.Sessions.Turn(sigCtx, chatID, start, runner)
	if state == nil {
		return handleExecutionError(runErr)
	}

	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(state); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, r.Result(state))
		logCompletion(out, state, runErr, sigCtx.Signal(), !opts.Debug && runErr == nil)
	}
	return handleExecutionError(runErr)
}

// tracingRunner drives the run step by step and prints each step's diff.
type tracingRunner struct {
	engine *agentgraph.Engine
	render *tui.Renderer
	out    io.Writer
}

func (t *tracingRunner) Step(ctx context.Context, state *domain.RunState) (*domain.RunState, error) {
	prev := state.Snapshot()
	next, err := t.engine.Step(ctx, state)
	if line := t.render.Trace(domain.Diff(prev, next)); line != "" {
		fmt.Fprintln(t.out, line)
	}
	return next, err
}

func (t *tracingRunner) Run(ctx context.Context, state *domain.RunState) (*domain.RunState, error) {
	for !state.Finished() {
		if _, err := t.Step(ctx, state); err != nil {
			return state, err
		}
	}
	return state, nil
}
