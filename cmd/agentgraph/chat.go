package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/agentgraph/internal/cli"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat, one turn per line",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.ChatOptions{
			ConfigPath: configPath(cmd),
			Debug:      debugFlag(cmd),
		}
		opts.ChatID, _ = cmd.Flags().GetString("chat")
		opts.NoBanner, _ = cmd.Flags().GetBool("no-banner")
		return cli.RunChat(cmd.Context(), opts, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("chat", "", "Chat id to resume")
	chatCmd.Flags().Bool("no-banner", false, "Do not print the startup banner")
}
