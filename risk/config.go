package risk

import "fmt"

// ValidatorConfig holds the static limits of a WeightValidator.
type ValidatorConfig struct {
	// Allocation limits
	MaxPositionSize  float64 // 0.20
	MaxTotalExposure float64 // 0.90
	MinCashReserve   float64 // 0.05

	// Position exits
	StopLossPct     float64  // 0.08
	TakeProfitPct   float64  // 0.25
	TrailingStopPct *float64 // 0.05, nil disables
}

// DefaultValidatorConfig returns the limits used by a stand-alone validator.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MaxPositionSize:  0.20,
		MaxTotalExposure: 0.90,
		MinCashReserve:   0.05,
		StopLossPct:      0.08,
		TakeProfitPct:    0.25,
		TrailingStopPct:  floatPtr(0.05),
	}
}

// Validate checks the allocation limits and exit thresholds.
func (c ValidatorConfig) Validate() error {
	if c.MaxPositionSize <= 0 || c.MaxPositionSize > 1 {
		return newConfigError("max_position_size", c.MaxPositionSize, "must be in (0, 1]")
	}
	if c.MaxTotalExposure <= 0 || c.MaxTotalExposure > 1 {
		return newConfigError("max_total_exposure", c.MaxTotalExposure, "must be in (0, 1]")
	}
	if c.MinCashReserve < 0 || c.MinCashReserve >= 1 {
		return newConfigError("min_cash_reserve", c.MinCashReserve, "must be in [0, 1)")
	}
	if c.MaxTotalExposure+c.MinCashReserve > 1 {
		return fmt.Errorf("%w: max_total_exposure (%g) + min_cash_reserve (%g) cannot exceed 1.0",
			ErrInvalidConfig, c.MaxTotalExposure, c.MinCashReserve)
	}
	return validateExits(c.StopLossPct, c.TakeProfitPct, c.TrailingStopPct)
}

func validateExits(stopLoss, takeProfit float64, trailing *float64) error {
	if stopLoss <= 0 {
		return newConfigError("stop_loss_pct", stopLoss, "must be positive")
	}
	if takeProfit <= 0 {
		return newConfigError("take_profit_pct", takeProfit, "must be positive")
	}
	if trailing != nil && *trailing < 0 {
		return newConfigError("trailing_stop_pct", *trailing, "must not be negative")
	}
	return nil
}

// Config holds every threshold of a Coordinator.
type Config struct {
	// Allocation
	MaxPositionSize  float64 // 0.20
	MinPositionSize  float64 // 0.02, reported only
	MaxTotalExposure float64 // 0.95
	CashBuffer       float64 // 0.05

	// Position exits
	StopLossPct     float64  // 0.03
	TakeProfitPct   float64  // 0.10
	TrailingStopPct *float64 // nil disables

	// Circuit breaker
	DailyLossLimit float64 // 0.02
	MaxDrawdown    float64 // 0.05

	InitialPortfolioValue float64 // 100000
}

// DefaultConfig returns the coordinator defaults.
func DefaultConfig() Config {
	return Config{
		MaxPositionSize:       0.20,
		MinPositionSize:       0.02,
		MaxTotalExposure:      0.95,
		CashBuffer:            0.05,
		StopLossPct:           0.03,
		TakeProfitPct:         0.10,
		DailyLossLimit:        0.02,
		MaxDrawdown:           0.05,
		InitialPortfolioValue: 100000,
	}
}

// ValidatorConfig projects the allocation and exit thresholds onto the
// static validator.
func (c Config) ValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MaxPositionSize:  c.MaxPositionSize,
		MaxTotalExposure: c.MaxTotalExposure,
		MinCashReserve:   c.CashBuffer,
		StopLossPct:      c.StopLossPct,
		TakeProfitPct:    c.TakeProfitPct,
		TrailingStopPct:  c.TrailingStopPct,
	}
}

// Validate checks every threshold.
func (c Config) Validate() error {
	if err := c.ValidatorConfig().Validate(); err != nil {
		return err
	}
	if c.MinPositionSize < 0 || c.MinPositionSize > c.MaxPositionSize {
		return newConfigError("min_position_size", c.MinPositionSize, "must be in [0, max_position_size]")
	}
	if c.DailyLossLimit <= 0 || c.DailyLossLimit > 1 {
		return newConfigError("daily_loss_limit", c.DailyLossLimit, "must be in (0, 1]")
	}
	if c.MaxDrawdown <= 0 || c.MaxDrawdown > 1 {
		return newConfigError("max_drawdown", c.MaxDrawdown, "must be in (0, 1]")
	}
	if c.InitialPortfolioValue <= 0 {
		return newConfigError("initial_portfolio_value", c.InitialPortfolioValue, "must be positive")
	}
	return nil
}
