package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/agentgraph/internal/cli"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration, the tools and the graph without calling a model",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Validate(configPath(cmd), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
