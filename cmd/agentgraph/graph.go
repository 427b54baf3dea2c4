package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/agentgraph/internal/cli"
	"github.com/aretw0/agentgraph/internal/logging"
	"github.com/aretw0/agentgraph/internal/presentation/graph"
	"github.com/aretw0/agentgraph/internal/runtime"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the agent graph as a Mermaid diagram",
	Long:  `Outputs a Mermaid diagram (graph TD) of the phase transition table. With --chat the phases visited by that stored run are highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		chatID, _ := cmd.Flags().GetString("chat")

		var overlay *graph.GraphOverlay
		if chatID != "" {
			cfg, err := cli.LoadConfig(configPath(cmd))
			if err != nil {
				return err
			}
			p, err := cli.OpenPersistence(cmd.Context(), cfg, logging.NewNop())
			if err != nil {
				return err
			}
			defer p.Close()
			state, err := p.Sessions.Load(cmd.Context(), chatID)
			if err != nil {
				return fmt.Errorf("chat %s: %w", chatID, err)
			}
			overlay = graph.OverlayFromState(state)
		}

		fmt.Print(graph.GenerateMermaid(runtime.DefaultTransitions(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("chat", "", "Highlight the phases visited by a stored run")
}
