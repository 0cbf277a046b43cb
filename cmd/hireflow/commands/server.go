package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/hireflow/am"
	"github.com/teranos/hireflow/auth"
	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/logger"
	"github.com/teranos/hireflow/pulse/schedule"
	"github.com/teranos/hireflow/server"
	"github.com/teranos/hireflow/sym"
)

// shutdownTimeout bounds the graceful drain after the first interrupt
const shutdownTimeout = 15 * time.Second

// ServerCmd starts the HTTP API together with the automation scheduler
var ServerCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"serve"},
	Short:   "Start the hireflow API server",
	Long: `Start the job post workflow API.

The server exposes workflow actions, history and stats under /api, streams
applied transitions on /ws/events and, unless pulse is disabled, runs the
automation scheduler in the same process. Edits to the active config file
are picked up without a restart.`,
	RunE: runServer,
}

var (
	serverPort    int
	serverNoPulse bool
)

func init() {
	ServerCmd.Flags().IntVar(&serverPort, "port", 0, "Port to listen on (overrides config)")
	ServerCmd.Flags().BoolVar(&serverNoPulse, "no-pulse", false, "Do not run the automation scheduler")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	jwtManager, err := auth.NewJWTManager(cfg.Auth)
	if err != nil {
		return err
	}
	if jwtManager.GeneratedSecret() {
		pterm.Warning.Println("No auth.jwt_secret configured; generated a random one. Tokens will not survive a restart.")
	}

	var ticker *schedule.Ticker
	if cfg.Pulse.Enabled() && !serverNoPulse {
		ticker = b.newTicker(cfg.Pulse.TickerConfig())
		ticker.Start(ctx)
		defer ticker.Stop()
	}

	deps := server.Deps{
		Engine:         b.engine,
		Auth:           auth.NewMiddleware(jwtManager, logger.Logger),
		Posts:          b.store,
		Events:         b.events,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger.Logger,
	}
	if ticker != nil {
		deps.Pulse = ticker
	}
	srv, err := server.New(deps)
	if err != nil {
		return err
	}

	if watcher := watchConfig(ticker); watcher != nil {
		defer watcher.Stop()
	}

	port := cfg.GetServerPort()
	if serverPort != 0 {
		port = serverPort
	}
	printBanner(cfg, port, ticker != nil)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(port)
	}()

	select {
	case err := <-errChan:
		return errors.Wrap(err, "server stopped")
	case <-ctx.Done():
	}

	pterm.Info.Println("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	pterm.Success.Println("Server stopped cleanly")
	return nil
}

// watchConfig hot-reloads scheduler settings from the active config file.
// It returns nil when there is no file to watch.
func watchConfig(ticker *schedule.Ticker) *am.ConfigWatcher {
	path := configPath
	load := am.ReloadAll
	if path != "" {
		load = func() (*am.Config, error) { return am.LoadFromFile(configPath) }
	} else {
		path = am.ActiveConfigFile()
	}
	if path == "" {
		return nil
	}

	watcher, err := am.NewConfigWatcher(path, load, logger.AddConfigSymbol(logger.Logger))
	if err != nil {
		logger.Logger.Warnw("Config hot reload disabled", logger.FieldPath, path, logger.FieldError, err)
		return nil
	}
	watcher.OnReload(func(cfg *am.Config) error {
		if ticker == nil {
			return nil
		}
		if !cfg.Pulse.Enabled() {
			logger.PulseWarnw("Pulse cannot be disabled without a restart; keeping current schedule")
			return nil
		}
		ticker.UpdateConfig(cfg.Pulse.TickerConfig())
		return nil
	})
	watcher.Start()
	return watcher
}

func printBanner(cfg *am.Config, port int, pulse bool) {
	pterm.DefaultHeader.WithFullWidth().Println("hireflow")
	store := cfg.GetDatabasePath()
	if cfg.Database.Driver == am.DriverPostgres {
		store = "postgres"
	}
	rows := pterm.TableData{
		{"API", pterm.Sprintf("http://localhost:%d/api", port)},
		{"Events", pterm.Sprintf("ws://localhost:%d/ws/events", port)},
		{sym.DB + " Store", store},
	}
	if pulse {
		rows = append(rows, []string{sym.Pulse + " Pulse", pterm.Sprintf("every %ds", cfg.Pulse.TickerIntervalSeconds)})
	} else {
		rows = append(rows, []string{sym.Pulse + " Pulse", "disabled"})
	}
	pterm.DefaultTable.WithData(rows).Render()
	pterm.Info.Println("Press Ctrl+C to stop")
}
