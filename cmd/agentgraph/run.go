package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/agentgraph/internal/cli"
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Run one turn for a request and print the answer",
	Long: `Runs the agent graph until the request is answered or a budget is exhausted.
With --chat the run is stored and an unfinished run of that chat is resumed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.RunOptions{
			ConfigPath: configPath(cmd),
			Input:      strings.Join(args, " "),
			Debug:      debugFlag(cmd),
		}
		opts.ChatID, _ = cmd.Flags().GetString("chat")
		opts.Fresh, _ = cmd.Flags().GetBool("fresh")
		opts.Trace, _ = cmd.Flags().GetBool("trace")
		opts.JSON, _ = cmd.Flags().GetBool("json")
		opts.Memory, _ = cmd.Flags().GetString("memory")
		if cmd.Flags().Changed("validate") {
			v, _ := cmd.Flags().GetBool("validate")
			opts.Validate = &v
		}
		return cli.Execute(cmd.Context(), opts, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("chat", "", "Chat id to store the run under")
	runCmd.Flags().Bool("fresh", false, "Discard the stored run of --chat first")
	runCmd.Flags().Bool("trace", false, "Print one line per executed step")
	runCmd.Flags().Bool("json", false, "Print the finished run state as JSON")
	runCmd.Flags().Bool("validate", false, "Validate the final answer before completing")
	runCmd.Flags().String("memory", "", "Retrieved memory text handed to the planner")
}
