package risk

import (
	"fmt"
	"time"
)

// PortfolioState tracks portfolio value against its peak and the start of
// the trading day.
type PortfolioState struct {
	PortfolioValue  float64   `json:"portfolio_value"`
	PeakValue       float64   `json:"peak_value"`
	DailyStartValue float64   `json:"daily_start_value"`
	PeakTime        time.Time `json:"peak_time"`
}

// DrawdownFromPeak is zero or negative, 0 when the peak is 0.
func (s PortfolioState) DrawdownFromPeak() float64 {
	if s.PeakValue == 0 {
		return 0
	}
	return (s.PortfolioValue - s.PeakValue) / s.PeakValue
}

// DailyPnLPct is the change since the daily baseline, 0 when the baseline is 0.
func (s PortfolioState) DailyPnLPct() float64 {
	if s.DailyStartValue == 0 {
		return 0
	}
	return (s.PortfolioValue - s.DailyStartValue) / s.DailyStartValue
}

// PortfolioMetrics is a snapshot of the portfolio monitor.
type PortfolioMetrics struct {
	PortfolioValue          float64 `json:"portfolio_value"`
	PeakValue               float64 `json:"peak_value"`
	DailyStartValue         float64 `json:"daily_start_value"`
	DailyPnLPct             float64 `json:"daily_pnl_pct"`
	DrawdownFromPeak        float64 `json:"drawdown_from_peak"`
	CircuitBreakerTriggered bool    `json:"circuit_breaker_triggered"`
}

// PortfolioMonitor owns the circuit breaker. Once tripped the breaker stays
// active until ResetDailyStart.
type PortfolioMonitor struct {
	state          PortfolioState
	dailyLossLimit float64
	maxDrawdown    float64

	triggered bool
	reason    string

	now func() time.Time
}

func NewPortfolioMonitor(initialValue, dailyLossLimit, maxDrawdown float64) (*PortfolioMonitor, error) {
	if initialValue <= 0 {
		return nil, newConfigError("initial_portfolio_value", initialValue, "must be positive")
	}
	if dailyLossLimit <= 0 || dailyLossLimit > 1 {
		return nil, newConfigError("daily_loss_limit", dailyLossLimit, "must be in (0, 1]")
	}
	if maxDrawdown <= 0 || maxDrawdown > 1 {
		return nil, newConfigError("max_drawdown", maxDrawdown, "must be in (0, 1]")
	}

	m := &PortfolioMonitor{
		dailyLossLimit: dailyLossLimit,
		maxDrawdown:    maxDrawdown,
		now:            time.Now,
	}
	m.state = PortfolioState{
		PortfolioValue:  initialValue,
		PeakValue:       initialValue,
		DailyStartValue: initialValue,
		PeakTime:        m.now(),
	}
	return m, nil
}

// UpdateValue records the current portfolio value and ratchets the peak.
func (m *PortfolioMonitor) UpdateValue(v float64) {
	m.state.PortfolioValue = v
	if v > m.state.PeakValue {
		m.state.PeakValue = v
		m.state.PeakTime = m.now()
	}
}

// ResetDailyStart makes the current value the daily baseline and clears the
// breaker. Call it at the start of each trading session.
func (m *PortfolioMonitor) ResetDailyStart() {
	m.state.DailyStartValue = m.state.PortfolioValue
	m.triggered = false
	m.reason = ""
}

// CheckCircuitBreaker trips the breaker when the daily loss or drawdown limit
// is reached. It never clears an already tripped breaker.
func (m *PortfolioMonitor) CheckCircuitBreaker() bool {
	if pnl := m.state.DailyPnLPct(); pnl <= -m.dailyLossLimit {
		m.trip(fmt.Sprintf("Daily loss limit exceeded: %.2f%% (limit: %.2f%%)",
			100*pnl, -100*m.dailyLossLimit))
		return true
	}

	if dd := m.state.DrawdownFromPeak(); dd <= -m.maxDrawdown {
		m.trip(fmt.Sprintf("Maximum drawdown exceeded: %.2f%% from peak $%.2f (limit: %.2f%%)",
			100*dd, m.state.PeakValue, -100*m.maxDrawdown))
		return true
	}

	return false
}

func (m *PortfolioMonitor) trip(reason string) {
	m.triggered = true
	m.reason = reason
}

// Triggered reports whether the breaker is active.
func (m *PortfolioMonitor) Triggered() bool {
	return m.triggered
}

// Reason returns the text of the last trip, if the breaker is active.
func (m *PortfolioMonitor) Reason() (string, bool) {
	return m.reason, m.triggered
}

func (m *PortfolioMonitor) State() PortfolioState {
	return m.state
}

func (m *PortfolioMonitor) Metrics() PortfolioMetrics {
	return PortfolioMetrics{
		PortfolioValue:          m.state.PortfolioValue,
		PeakValue:               m.state.PeakValue,
		DailyStartValue:         m.state.DailyStartValue,
		DailyPnLPct:             m.state.DailyPnLPct(),
		DrawdownFromPeak:        m.state.DrawdownFromPeak(),
		CircuitBreakerTriggered: m.triggered,
	}
}
