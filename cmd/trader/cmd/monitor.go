package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/internal/display"
	"github.com/rustyeddy/papertrader/metrics"
	"github.com/rustyeddy/papertrader/monitor"
	"github.com/rustyeddy/papertrader/performance"
	"github.com/rustyeddy/papertrader/pricing"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Replay prices through a paper account with risk monitoring",
	Long: `Seed a paper account from the config's paper section, replay a price
file through it and run the risk monitor at every timestamp.

The price file has rows of time,symbol,price with RFC3339 times.

Examples:
  trader monitor -c trader.yaml -p prices.csv
  trader monitor -c trader.yaml -p prices.csv --from 2024-03-01 --to 2024-03-31 --auto-exit`,
	RunE: runMonitor,
}

var (
	monitorPrices   string
	monitorFrom     string
	monitorTo       string
	monitorAutoExit bool
	monitorRiskFree float64
)

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().StringVarP(&monitorPrices, "prices", "p", "", "CSV price file (required)")
	monitorCmd.Flags().StringVar(&monitorFrom, "from", "", "first day to replay (YYYY-MM-DD)")
	monitorCmd.Flags().StringVar(&monitorTo, "to", "", "last day to replay (YYYY-MM-DD)")
	monitorCmd.Flags().BoolVar(&monitorAutoExit, "auto-exit", false, "close positions when an exit signal fires (also risk_monitoring.auto_exit)")
	monitorCmd.Flags().Float64Var(&monitorRiskFree, "risk-free", 0.04, "annual risk-free rate for the Sharpe ratio")
	monitorCmd.MarkFlagRequired("prices")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	from, to, err := replayWindow(monitorFrom, monitorTo)
	if err != nil {
		return err
	}

	feed, err := pricing.OpenCSVFeed(monitorPrices, from, to)
	if err != nil {
		return fmt.Errorf("open prices: %w", err)
	}
	defer feed.Close()

	coord, err := newCoordinator()
	if err != nil {
		return err
	}

	j, err := cfg.OpenJournal()
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	acct := newPaperAccount("PAPER-REPLAY")

	tracker := performance.NewTracker(cfg.Portfolio.InitialCapital, monitorRiskFree)
	runner := monitor.New(coord, acct, acct.Quotes(), monitor.Options{
		AutoExit: monitorAutoExit || cfg.RiskMonitoring.AutoExit,
		Journal:  j,
		Metrics:  metrics.NewRecorder(nil),
		Tracker:  tracker,
		Log:      log,
	})

	steps, err := runner.Replay(ctx, feed, acct.Quotes())
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Replayed %d steps from %s\n\n", steps, monitorPrices)
	display.Summary(out, coord.Summary())
	display.Positions(out, coord.PositionRisks())
	display.Performance(out, tracker.Metrics(time.Time{}, time.Time{}))
	fmt.Fprintf(out, "Realized P&L: $%.2f\n", acct.RealizedPnL())
	return nil
}

// replayWindow turns optional YYYY-MM-DD bounds into a [from, to) window
// covering whole days.
func replayWindow(fromDay, toDay string) (time.Time, time.Time, error) {
	var from, to time.Time
	if fromDay != "" {
		start, _, err := dayBounds(time.UTC, fromDay)
		if err != nil {
			return from, to, fmt.Errorf("from: %w", err)
		}
		from = start
	}
	if toDay != "" {
		_, end, err := dayBounds(time.UTC, toDay)
		if err != nil {
			return from, to, fmt.Errorf("to: %w", err)
		}
		to = end
	}
	return from, to, nil
}
