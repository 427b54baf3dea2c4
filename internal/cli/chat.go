package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/agentgraph"
	"github.com/aretw0/agentgraph/internal/presentation/tui"
	"github.com/aretw0/agentgraph/internal/sanitize"
	"github.com/aretw0/agentgraph/pkg/domain"
)

// ChatOptions configures the interactive chat command.
type ChatOptions struct {
	ConfigPath string
	ChatID     string
	Debug      bool
	NoBanner   bool
}

// RunChat reads one user message per line from in and runs a turn for each.
// The previous final answer is handed to the next turn as retrieved memory.
func RunChat(ctx context.Context, opts ChatOptions, in io.Reader, out io.Writer) error {
	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	logger, err := NewLogger(cfg.Log, opts.Debug)
	if err != nil {
		return err
	}

	sigCtx := NewSignalContext(ctx)
	defer sigCtx.Cancel()

	stack, err := NewStack(sigCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	if !opts.NoBanner && tui.IsTerminal(out) {
		tui.PrintBanner(out, agentgraph.Version)
	}

	chatID := opts.ChatID
	if chatID == "" {
		chatID = agentgraph.NewChatID()
	}
	r := tui.NewRenderer(out)

	var previous string
	if state, err := stack.Sessions.Load(sigCtx, chatID); err == nil {
		previous = state.FinalAnswer
		printSystemMessage(out, "Resuming chat '%s' at '%s'.", chatID, state.CurrentPhase)
	} else if errors.Is(err, domain.ErrSessionNotFound) {
		printSystemMessage(out, "Chat '%s' started. Type 'exit' to quit.", chatID)
	} else {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-sigCtx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, "> ")
		var line string
		select {
		case <-sigCtx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			printSystemMessage(out, "Bye!")
			return nil
		}

		input, err := sanitize.Input(line, sanitize.DefaultMaxInputSize)
		if err != nil {
			printSystemMessage(out, "%v", err)
			continue
		}
		memory := previous
		start := func() *domain.RunState {
			var opts []domain.StateOption
			if memory != "" {
				opts = append(opts, domain.WithRetrievedMemory("Previous answer: "+memory))
			}
			return stack.Engine.NewRun(chatID, input, opts...)
		}

		state, runErr := stack.Sessions.Turn(sigCtx, chatID, start, stack.Engine)
		if state != nil {
			fmt.Fprintln(out, r.Result(state))
			if state.IsCompleted {
				previous = state.FinalAnswer
			}
		}
		if runErr != nil {
			if isInterrupted(runErr) {
				logCompletion(out, state, runErr, sigCtx.Signal(), false)
				return nil
			}
			logger.Warn("turn failed", "chat_id", chatID, "error", runErr)
		}
	}
}
