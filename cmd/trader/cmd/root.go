package cmd

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/config"
	"github.com/rustyeddy/papertrader/internal/logger"
	"github.com/rustyeddy/papertrader/risk"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "Risk monitoring and circuit breakers for paper trading",
	Long: `Trader guards a paper-trading portfolio.

It provides tools for:
  - Validating target weights against position, exposure and cash limits
  - Checking positions for stop-loss, take-profit and trailing-stop exits
  - Replaying prices through a paper account with the circuit breaker armed
  - Serving the risk state over HTTP with Prometheus metrics
  - Querying the risk event journal`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	cfgPath    string
	envPath    string
	logLevel   string
	prettyLogs bool

	cfg *config.Config
	log zerolog.Logger
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (YAML or JSON); defaults are used when empty")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", "", ".env file with TRADER_* overrides (default ./.env if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty", false, "human readable logs")
}

func setup(cmd *cobra.Command, args []string) error {
	var files []string
	if envPath != "" {
		files = append(files, envPath)
	}
	if err := config.LoadEnv(files...); err != nil {
		return err
	}

	if cfgPath != "" {
		c, err := config.LoadFromFile(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
	} else {
		cfg = config.Default()
		cfg.ApplyEnv()
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if prettyLogs {
		cfg.Logging.Pretty = true
	}
	log = logger.New(logger.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})
	logger.SetGlobalLogger(log)
	return nil
}

func newCoordinator() (*risk.Coordinator, error) {
	c, err := risk.NewCoordinator(cfg.RiskConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("risk config: %w", err)
	}
	return c, nil
}
