package cli

import (
	"fmt"
	"io"

	"github.com/aretw0/agentgraph/internal/logging"
	"github.com/aretw0/agentgraph/internal/runtime"
	"github.com/aretw0/agentgraph/internal/validator"
)

// Validate checks a project without calling any model: the configuration,
// the tool definitions, the provider settings and the transition table.
func Validate(configPath string, out io.Writer) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := NewCompleter(cfg.Provider); err != nil {
		return err
	}
	tools, err := NewToolRegistry(cfg.Tools, logging.NewNop())
	if err != nil {
		return fmt.Errorf("tools: %w", err)
	}
	if err := validator.ValidateTransitions(runtime.DefaultTransitions()); err != nil {
		return fmt.Errorf("transition table: %w", err)
	}

	printSystemMessage(out, "✓ configuration ok (provider %s, store %s)", cfg.Provider.Kind, cfg.Store.Kind)
	printSystemMessage(out, "✓ %d tools: %v", len(tools.Names()), tools.Names())
	return nil
}
