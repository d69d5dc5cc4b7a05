package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/risk"
)

// Environment overrides, read after the file.
const (
	EnvLogLevel   = "TRADER_LOG_LEVEL"
	EnvJournalDB  = "TRADER_JOURNAL_DB"
	EnvServerAddr = "TRADER_SERVER_ADDR"
)

// Config represents the complete risk engine configuration
type Config struct {
	Portfolio      PortfolioConfig      `json:"portfolio" yaml:"portfolio"`
	RiskMonitoring RiskMonitoringConfig `json:"risk_monitoring" yaml:"risk_monitoring"`
	Journal        JournalConfig        `json:"journal" yaml:"journal"`
	Logging        LoggingConfig        `json:"logging" yaml:"logging"`
	Server         ServerConfig         `json:"server" yaml:"server"`
	Paper          PaperConfig          `json:"paper" yaml:"paper"`
}

// PortfolioConfig contains allocation limits
type PortfolioConfig struct {
	InitialCapital  float64 `json:"initial_capital" yaml:"initial_capital"`
	MaxPositionSize float64 `json:"max_position_size" yaml:"max_position_size"`
	MinPositionSize float64 `json:"min_position_size" yaml:"min_position_size"`
	CashBuffer      float64 `json:"cash_buffer" yaml:"cash_buffer"`
}

// RiskMonitoringConfig contains intraday exit and circuit breaker thresholds
type RiskMonitoringConfig struct {
	MaxTotalExposure float64  `json:"max_total_exposure" yaml:"max_total_exposure"`
	StopLossPct      float64  `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TakeProfitPct    float64  `json:"take_profit_pct" yaml:"take_profit_pct"`
	TrailingStopPct  *float64 `json:"trailing_stop_pct,omitempty" yaml:"trailing_stop_pct,omitempty"`
	DailyLossLimit   float64  `json:"daily_loss_limit" yaml:"daily_loss_limit"`
	MaxDrawdown      float64  `json:"max_drawdown" yaml:"max_drawdown"`
	CheckInterval    string   `json:"check_interval" yaml:"check_interval"` // e.g. "1m", "30s"
	AutoExit         bool     `json:"auto_exit" yaml:"auto_exit"`
}

// ParseInterval converts CheckInterval to a duration. Empty means one minute.
func (r RiskMonitoringConfig) ParseInterval() (time.Duration, error) {
	if r.CheckInterval == "" {
		return time.Minute, nil
	}
	return time.ParseDuration(r.CheckInterval)
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	EventsFile string `json:"events_file,omitempty" yaml:"events_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// PaperConfig seeds the in-memory paper account used by monitor replays.
type PaperConfig struct {
	Cash      float64           `json:"cash" yaml:"cash"`
	Positions []broker.Position `json:"positions,omitempty" yaml:"positions,omitempty"`
}

// LoadFromFile loads configuration from a file (JSON or YAML), then applies
// environment overrides.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadEnv reads a .env file into the process environment when one exists.
// Variables already set are left alone.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from TRADER_* variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvJournalDB); v != "" {
		c.Journal.Type = "sqlite"
		c.Journal.DBPath = v
	}
	if v := os.Getenv(EnvServerAddr); v != "" {
		c.Server.Addr = v
	}
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.RiskConfig().Validate(); err != nil {
		return err
	}
	if _, err := c.RiskMonitoring.ParseInterval(); err != nil {
		return fmt.Errorf("risk_monitoring.check_interval: %w", err)
	}
	switch c.Journal.Type {
	case "none":
	case "csv":
		if c.Journal.EventsFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal events_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}
	if c.Paper.Cash < 0 {
		return fmt.Errorf("paper.cash must not be negative")
	}
	for _, p := range c.Paper.Positions {
		if p.Symbol == "" || p.Shares <= 0 || p.AvgCost <= 0 {
			return fmt.Errorf("paper position %q needs positive shares and avg_cost", p.Symbol)
		}
	}
	return nil
}

// RiskConfig maps the file sections onto the coordinator configuration.
func (c *Config) RiskConfig() risk.Config {
	rc := risk.Config{
		MaxPositionSize:       c.Portfolio.MaxPositionSize,
		MinPositionSize:       c.Portfolio.MinPositionSize,
		MaxTotalExposure:      c.RiskMonitoring.MaxTotalExposure,
		CashBuffer:            c.Portfolio.CashBuffer,
		StopLossPct:           c.RiskMonitoring.StopLossPct,
		TakeProfitPct:         c.RiskMonitoring.TakeProfitPct,
		DailyLossLimit:        c.RiskMonitoring.DailyLossLimit,
		MaxDrawdown:           c.RiskMonitoring.MaxDrawdown,
		InitialPortfolioValue: c.Portfolio.InitialCapital,
	}
	if c.RiskMonitoring.TrailingStopPct != nil {
		v := *c.RiskMonitoring.TrailingStopPct
		rc.TrailingStopPct = &v
	}
	return rc
}

// OpenJournal opens the configured journal backend.
func (c *Config) OpenJournal() (journal.Journal, error) {
	switch c.Journal.Type {
	case "sqlite":
		return journal.NewSQLite(c.Journal.DBPath)
	case "csv":
		return journal.NewCSV(c.Journal.EventsFile, c.Journal.EquityFile)
	case "none", "":
		return journal.Discard{}, nil
	default:
		return nil, fmt.Errorf("unknown journal type %q", c.Journal.Type)
	}
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	rc := risk.DefaultConfig()
	return &Config{
		Portfolio: PortfolioConfig{
			InitialCapital:  rc.InitialPortfolioValue,
			MaxPositionSize: rc.MaxPositionSize,
			MinPositionSize: rc.MinPositionSize,
			CashBuffer:      rc.CashBuffer,
		},
		RiskMonitoring: RiskMonitoringConfig{
			MaxTotalExposure: rc.MaxTotalExposure,
			StopLossPct:      rc.StopLossPct,
			TakeProfitPct:    rc.TakeProfitPct,
			DailyLossLimit:   rc.DailyLossLimit,
			MaxDrawdown:      rc.MaxDrawdown,
			CheckInterval:    "1m",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./papertrader.sqlite",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Paper: PaperConfig{
			Cash: rc.InitialPortfolioValue,
		},
	}
}
