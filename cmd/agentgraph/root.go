package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agentgraph",
	Short: "agentgraph runs a plan, act and recover agent loop over your tools",
	Long: `agentgraph drives an AI coding assistant through a bounded graph of phases:
planner, executor, tool runner, validation and error recovery.

Tools are external commands listed in tools.yaml. Decisions come from the
configured model provider (anthropic, openai or a scripted replay).`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to agentgraph.yaml (defaults apply when empty)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging on stderr")
}

func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		if _, err := os.Stat("agentgraph.yaml"); err == nil {
			return "agentgraph.yaml"
		}
	}
	return path
}

func debugFlag(cmd *cobra.Command) bool {
	debug, _ := cmd.Flags().GetBool("debug")
	return debug
}
