package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/internal/display"
	"github.com/rustyeddy/papertrader/risk"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check one position for a stop-loss, take-profit or trailing-stop exit",
	Long: `Evaluate a single position against the configured exit thresholds.

Examples:
  trader check -s AAPL --entry 150 --current 144 --shares 100
  trader check -s NVDA --entry 400 --current 430 --peak 460 --shares 10 --days 12`,
	RunE: runCheck,
}

var (
	checkSymbol  string
	checkEntry   float64
	checkCurrent float64
	checkPeak    float64
	checkShares  int
	checkDays    int
	checkJSON    bool
)

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkSymbol, "symbol", "s", "", "symbol (required)")
	checkCmd.Flags().Float64Var(&checkEntry, "entry", 0, "entry price (required)")
	checkCmd.Flags().Float64Var(&checkCurrent, "current", 0, "current price (required)")
	checkCmd.Flags().Float64Var(&checkPeak, "peak", 0, "highest price since entry (defaults to max of entry and current)")
	checkCmd.Flags().IntVar(&checkShares, "shares", 0, "share count")
	checkCmd.Flags().IntVar(&checkDays, "days", 0, "days held")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the signal as JSON")
	checkCmd.MarkFlagRequired("symbol")
	checkCmd.MarkFlagRequired("entry")
	checkCmd.MarkFlagRequired("current")
}

func runCheck(cmd *cobra.Command, args []string) error {
	if checkEntry <= 0 || checkCurrent <= 0 {
		return fmt.Errorf("entry and current prices must be positive")
	}

	coord, err := newCoordinator()
	if err != nil {
		return err
	}

	pr := risk.NewPositionRisk(checkSymbol, checkEntry, checkCurrent, checkShares, checkPeak, checkDays)
	sig := coord.CheckPositionRisk(pr)

	if checkJSON {
		return writeJSON(cmd, map[string]interface{}{"position": pr, "signal": sig})
	}

	out := cmd.OutOrStdout()
	display.Positions(out, []risk.PositionRisk{pr})
	if sig == nil {
		fmt.Fprintln(out, "No exit signal")
		return nil
	}
	display.Signals(out, []risk.ExitSignal{*sig})
	return nil
}
