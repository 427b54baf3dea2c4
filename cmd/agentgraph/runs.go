package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/agentgraph/internal/cli"
	"github.com/aretw0/agentgraph/internal/logging"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage stored runs",
	Long:  `List, inspect and remove the runs kept by the configured store.`,
}

var runsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored chat ids",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openPersistence(cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		ids, err := p.Sessions.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing runs: %w", err)
		}
		if len(ids) == 0 {
			fmt.Println("No stored runs found.")
			return nil
		}
		for _, id := range ids {
			fmt.Println("- " + id)
		}
		return nil
	},
}

var runsInspectCmd = &cobra.Command{
	Use:   "inspect <chat-id>",
	Short: "Print the stored state of a run as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openPersistence(cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		state, err := p.Sessions.Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("loading run '%s': %w", args[0], err)
		}
		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var runsRmCmd = &cobra.Command{
	Use:   "rm <chat-id>...",
	Short: "Remove one or more stored runs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openPersistence(cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		failed := 0
		for _, id := range args {
			if err := p.Sessions.Delete(cmd.Context(), id); err != nil {
				fmt.Printf("Error removing '%s': %v\n", id, err)
				failed++
				continue
			}
			fmt.Printf("Removed run '%s'\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d run(s) could not be removed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsLsCmd)
	runsCmd.AddCommand(runsInspectCmd)
	runsCmd.AddCommand(runsRmCmd)
}

func openPersistence(cmd *cobra.Command) (*cli.Persistence, error) {
	cfg, err := cli.LoadConfig(configPath(cmd))
	if err != nil {
		return nil, err
	}
	return cli.OpenPersistence(cmd.Context(), cfg, logging.NewNop())
}
