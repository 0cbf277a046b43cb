package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/hireflow/cmd/hireflow/commands"
	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/logger"
)

var rootCmd = &cobra.Command{
	Use:   "hireflow",
	Short: "hireflow - job post workflow engine",
	Long: `hireflow - Job post workflow engine.

Moves job posts through review, publication and closure under role-based
permissions, with an append-only audit log and a scheduler for timed
publish and expiry.

Available commands:
  am     - Manage hireflow configuration ("I am")
  auth   - Issue API tokens
  db     - Manage the job post database
  jobs   - Create job posts and apply workflow actions
  pulse  - Run or trigger the publish/expiry scheduler
  server - Start the HTTP and WebSocket API

Examples:
  hireflow am show                          # Show current configuration
  hireflow jobs create --employer emp-1 --title "Go engineer"
  hireflow jobs apply <id> approve --notes "looks good"
  hireflow pulse scan                       # Run one scheduler pass
  hireflow server                           # Start the API server`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		verbosity, _ := cmd.Flags().GetCount("verbose")
		logger.SetVerbosity(verbosity)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	commands.BindConfigFlag(rootCmd)
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit structured JSON logs")

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.AuthCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.PulseCmd)
	rootCmd.AddCommand(commands.ServerCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintln(os.Stderr, "Hint:", hint)
		}
		os.Exit(1)
	}
}
