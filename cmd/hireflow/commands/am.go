package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/hireflow/am"
	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/sym"
)

// AmCmd groups configuration commands
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: sym.AM + " Manage hireflow configuration",
	Long: sym.AM + ` am - Manage hireflow configuration ("I am")

Configuration sources (later overrides earlier):
  1. Built-in defaults
  2. /etc/hireflow/am.toml
  3. ~/.hireflow/am.toml
  4. ./am.toml (searched upward from the working directory)
  5. HIREFLOW_* environment variables

Examples:
  hireflow am show                 # Show effective configuration
  hireflow am show --format yaml
  hireflow am where                # Show which source set each value
  hireflow am init                 # Write a starter ./am.toml`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runAmShow,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where each setting comes from",
	RunE:  runAmWhere,
}

var amInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the effective configuration to a file",
	Long: `Write the effective configuration as TOML, by default to ./am.toml.
An existing file is kept as a numbered backup (.back1 is the newest).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAmInit,
}

var (
	amFormat      string
	amShowSecrets bool
)

const maskedSecret = "********"

func init() {
	amShowCmd.Flags().StringVar(&amFormat, "format", "toml", "Output format: toml, json, yaml")
	amShowCmd.Flags().BoolVar(&amShowSecrets, "show-secrets", false, "Print secrets instead of masking them")
	AmCmd.AddCommand(amShowCmd, amValidateCmd, amWhereCmd, amInitCmd)
}

// masked returns a copy of cfg with secrets replaced
func masked(cfg *am.Config) *am.Config {
	c := *cfg
	for _, s := range []*string{&c.Auth.JWTSecret, &c.Database.DSN, &c.Notify.AMQPURL, &c.Redis.Password} {
		if *s != "" {
			*s = maskedSecret
		}
	}
	return &c
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !amShowSecrets {
		cfg = masked(cfg)
	}
	data, err := am.Render(cfg, amFormat)
	if err != nil {
		return err
	}
	if amFormat != "json" {
		fmt.Fprintln(cmd.OutOrStdout(), "# hireflow configuration")
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	pterm.Success.Println("Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	if path := am.ActiveConfigFile(); path != "" {
		pterm.Info.Printf("Active config file: %s\n", path)
	} else {
		pterm.Info.Println("No config file found; using defaults and environment")
	}

	data := pterm.TableData{{"Key", "Value", "Source", "From"}}
	for _, s := range am.Introspect() {
		data = append(data, []string{s.Key, fmt.Sprint(s.Value), string(s.Source), s.SourcePath})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func runAmInit(cmd *cobra.Command, args []string) error {
	path := am.ConfigFileName
	if len(args) == 1 {
		path = args[0]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", path)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	existed := false
	if _, err := os.Stat(abs); err == nil {
		existed = true
	}
	if err := am.Save(cfg, abs); err != nil {
		return err
	}
	if existed {
		pterm.Success.Printf("Updated %s (previous version kept as %s.back1)\n", abs, abs)
	} else {
		pterm.Success.Printf("Wrote %s\n", abs)
	}
	return nil
}
