package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/hireflow/am"
	"github.com/teranos/hireflow/db"
	"github.com/teranos/hireflow/logger"
	"github.com/teranos/hireflow/sym"
	"github.com/teranos/hireflow/workflow"
)

// DbCmd groups database commands
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: sym.DB + " Manage the hireflow database",
	Long: sym.DB + ` db - Manage the job post database

Examples:
  hireflow db migrate     # Apply pending migrations
  hireflow db stats       # Count job posts per status`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job post counts per status",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd, dbStatsCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// openStore migrates as part of opening
	_, closeStore, err := openStore(cmd.Context(), cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.Database.Driver == am.DriverPostgres {
		pterm.Success.Println("PostgreSQL schema is up to date")
		return nil
	}

	path := cfg.GetDatabasePath()
	database, err := db.Open(path, nil)
	if err != nil {
		return err
	}
	defer database.Close()
	versions, err := db.AppliedVersions(database)
	if err != nil {
		return err
	}
	pterm.Success.Printf("%s is up to date (%d migrations applied)\n", path, len(versions))
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cmd.Context(), cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer closeStore()

	counts, err := store.CountByStatus(cmd.Context())
	if err != nil {
		return err
	}

	data := pterm.TableData{{"Status", "Job posts"}}
	total := 0
	for _, st := range workflow.AllStatuses() {
		data = append(data, []string{string(st), pterm.Sprint(counts[st])})
		total += counts[st]
	}
	data = append(data, []string{"total", pterm.Sprint(total)})

	pterm.DefaultSection.Printf("%s Job posts by status", sym.DB)
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
