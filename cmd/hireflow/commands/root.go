package commands

import "github.com/spf13/cobra"

// configPath is set by the root --config flag. Empty means the normal
// search order in am.Load.
var configPath string

// BindConfigFlag registers --config on cmd and every subcommand
func BindConfigFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to am.toml (default: search system, user and project locations)")
}
