package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/pulse/schedule"
	"github.com/teranos/hireflow/sym"
	"github.com/teranos/hireflow/workflow"
)

// PulseCmd groups automation scheduler commands
var PulseCmd = &cobra.Command{
	Use:   "pulse",
	Short: sym.Pulse + " Run the automation scheduler",
	Long: sym.Pulse + ` Pulse - the automation scheduler.

Each tick publishes approved job posts whose scheduled publish date has
arrived and expires active posts past their expiry date. Both run as the
system actor through the workflow engine, so every change is audited.

When redis.addr is configured, replicas share a lease and only one scans
per tick.

Examples:
  hireflow pulse start                # Run the scheduler in the foreground
  hireflow pulse scan                 # Run one scan now and print the result
  hireflow pulse scan --at 2026-12-01T00:00:00Z`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var pulseStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the scheduler until interrupted",
	RunE:  runPulseStart,
}

var pulseScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single scan",
	RunE:  runPulseScan,
}

var pulseScanAt string

func init() {
	pulseScanCmd.Flags().StringVar(&pulseScanAt, "at", "", "Evaluate due dates at this RFC3339 time instead of now")
	PulseCmd.AddCommand(pulseStartCmd, pulseScanCmd)
}

func runPulseStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Pulse.Enabled() {
		return errors.New("pulse is disabled (pulse.ticker_interval_seconds = 0)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	tickerCfg := cfg.Pulse.TickerConfig()
	ticker := b.newTicker(tickerCfg)
	if watcher := watchConfig(ticker); watcher != nil {
		defer watcher.Stop()
	}
	ticker.Start(ctx)

	pterm.Success.Printf("%s Pulse scheduler started\n", sym.Pulse)
	pterm.Printf("  Interval:   %v\n", ticker.Config().Interval)
	pterm.Printf("  Batch size: %d\n", tickerCfg.BatchSize)
	pterm.Printf("  Rate limit: %.1f/s\n", tickerCfg.MaxTransitionsPerSecond)
	pterm.Printf("\n%s Press Ctrl+C to stop\n\n", sym.Pulse)

	<-ctx.Done()

	ticker.Stop()
	stats := ticker.GetStats()
	pterm.Success.Printf("%s Pulse stopped after %d ticks (%d published, %d expired, %d failed)\n",
		sym.PulseClose, stats.TicksSinceStart, stats.TotalPublished, stats.TotalExpired, stats.TotalFailed)
	return nil
}

func runPulseScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if pulseScanAt != "" {
		now, err = time.Parse(time.RFC3339, pulseScanAt)
		if err != nil {
			return errors.Wrapf(err, "invalid --at %q", pulseScanAt)
		}
	}

	// Echo each automated transition as the scan commits it
	echo := workflow.EmitterFunc(func(_ context.Context, ev workflow.Event) error {
		pterm.Printf("  %s %s %s: %s %s %s\n", sym.Pulse, ev.JobPostID, ev.Action, ev.FromStatus, sym.SO, ev.ToStatus)
		return nil
	})

	ctx := cmd.Context()
	b, err := openBackend(ctx, cfg, echo)
	if err != nil {
		return err
	}
	defer b.Close()

	tickerCfg := cfg.Pulse.TickerConfig()
	if !cfg.Pulse.Enabled() {
		tickerCfg = schedule.DefaultTickerConfig()
	}
	res, err := b.newTicker(tickerCfg).Scan(ctx, now)
	if err != nil {
		return err
	}
	if res.LeaseMiss {
		pterm.Warning.Println("Another replica holds the scheduler lease; nothing scanned")
		return nil
	}
	return printScanResult(res)
}

func printScanResult(res schedule.ScanResult) error {
	return pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"At", "Published", "Expired", "Skipped", "Failed"},
		{
			res.At.Format(time.RFC3339),
			pterm.Sprint(res.Published),
			pterm.Sprint(res.Expired),
			pterm.Sprint(res.Skipped),
			pterm.Sprint(res.Failed),
		},
	}).Render()
}
