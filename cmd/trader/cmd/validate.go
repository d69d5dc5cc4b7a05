package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/broker/paper"
	"github.com/rustyeddy/papertrader/internal/display"
	"github.com/rustyeddy/papertrader/risk"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate target weights against the allocation limits",
	Long: `Run the weight validator and print the adjusted allocation.

Weights come from -w as SYMBOL=WEIGHT pairs or from a YAML/JSON map file.

Examples:
  trader validate -w AAPL=0.40,MSFT=0.30,Cash=0.30
  trader validate -f weights.yaml --json`,
	RunE: runValidate,
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Screen proposed orders against the position cap and minimum trade value",
	Long: `Evaluate a YAML/JSON list of orders against the portfolio.

Without --held, current holdings come from the config's paper positions
marked to --prices, and their account equity is the default portfolio value.

Example file:
  - {symbol: AAPL, action: BUY, estimated_value: 5000}
  - {symbol: MSFT, action: SELL, shares: 10}

Example:
  trader orders -f orders.yaml --value 100000 --held AAPL=15000 --prices MSFT=310`,
	RunE: runOrders,
}

var (
	validateWeights string
	validateFile    string
	validateJSON    bool

	ordersFile   string
	ordersValue  float64
	ordersHeld   string
	ordersPrices string
	ordersJSON   bool
)

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(ordersCmd)

	validateCmd.Flags().StringVarP(&validateWeights, "weights", "w", "", "comma separated SYMBOL=WEIGHT pairs")
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "", "YAML or JSON file with a symbol to weight map")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "print the result as JSON")

	ordersCmd.Flags().StringVarP(&ordersFile, "file", "f", "", "YAML or JSON order list (required)")
	ordersCmd.Flags().Float64Var(&ordersValue, "value", 0, "portfolio value (defaults to initial capital)")
	ordersCmd.Flags().StringVar(&ordersHeld, "held", "", "current position values as SYMBOL=VALUE pairs (default: paper positions)")
	ordersCmd.Flags().StringVar(&ordersPrices, "prices", "", "prices as SYMBOL=PRICE pairs for share-sized orders")
	ordersCmd.Flags().BoolVar(&ordersJSON, "json", false, "print decisions as JSON")
	ordersCmd.MarkFlagRequired("file")
}

func runValidate(cmd *cobra.Command, args []string) error {
	var (
		w   risk.Weights
		err error
	)
	switch {
	case validateFile != "":
		w, err = loadWeightsFile(validateFile)
	case validateWeights != "":
		w, err = parsePairs(validateWeights)
	default:
		return fmt.Errorf("either -w or -f is required")
	}
	if err != nil {
		return err
	}

	coord, err := newCoordinator()
	if err != nil {
		return err
	}
	res := coord.ValidateWeights(w)

	if validateJSON {
		return writeJSON(cmd, res)
	}
	display.CheckResult(cmd.OutOrStdout(), res)
	return nil
}

func runOrders(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(ordersFile)
	if err != nil {
		return fmt.Errorf("read orders: %w", err)
	}
	var orders []broker.Order
	if err := yaml.Unmarshal(data, &orders); err != nil {
		return fmt.Errorf("parse orders: %w", err)
	}
	for i, o := range orders {
		a, err := broker.ParseOrderAction(string(o.Action))
		if err == nil {
			orders[i].Action = a
		}
	}

	held, err := parsePairs(ordersHeld)
	if err != nil {
		return fmt.Errorf("held: %w", err)
	}
	prices, err := parsePairs(ordersPrices)
	if err != nil {
		return fmt.Errorf("prices: %w", err)
	}

	value := ordersValue
	if len(held) == 0 && len(cfg.Paper.Positions) > 0 {
		var equity float64
		held, equity, err = paperHoldings(cmd.Context(), prices)
		if err != nil {
			return err
		}
		if value == 0 {
			value = equity
		}
	}
	if value == 0 {
		value = cfg.Portfolio.InitialCapital
	}

	coord, err := newCoordinator()
	if err != nil {
		return err
	}
	decisions := coord.EvaluateOrders(orders, value, held, prices)

	if ordersJSON {
		return writeJSON(cmd, decisions)
	}
	display.Orders(cmd.OutOrStdout(), decisions)
	return nil
}

// parsePairs reads "A=1,B=2". An empty string yields an empty map.
func parsePairs(s string) (map[string]float64, error) {
	out := make(map[string]float64)
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, part := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("expected SYMBOL=VALUE, got %q", part)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[strings.TrimSpace(k)] = f
	}
	return out, nil
}

func loadWeightsFile(path string) (risk.Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}
	var w risk.Weights
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse weights: %w", err)
	}
	return w, nil
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// paperHoldings marks the configured paper positions to prices and returns
// their market values with the account equity.
func paperHoldings(ctx context.Context, prices map[string]float64) (map[string]float64, float64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	acct := newPaperAccount("PAPER-ORDERS")
	acct.Quotes().SetPrices(prices, time.Now())

	positions, err := acct.Positions(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("paper positions: %w", err)
	}
	a, err := acct.Account(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("paper account: %w", err)
	}
	return broker.Values(positions), a.Equity, nil
}

func newPaperAccount(id string) *paper.Account {
	acct := paper.New(id, cfg.Paper.Cash, nil)
	for _, p := range cfg.Paper.Positions {
		acct.Seed(p.Symbol, p.Shares, p.AvgCost)
	}
	return acct
}
