package risk

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/papertrader/broker"
)

// Thresholds is the threshold block reported in a Summary.
type Thresholds struct {
	StopLossPct    float64 `json:"stop_loss_pct"`
	TakeProfitPct  float64 `json:"take_profit_pct"`
	DailyLossLimit float64 `json:"daily_loss_limit"`
	MaxDrawdown    float64 `json:"max_drawdown"`
}

// Summary is the coordinator status snapshot.
type Summary struct {
	PositionsTracked     int        `json:"positions_tracked"`
	PortfolioValue       float64    `json:"portfolio_value"`
	DailyPnLPct          float64    `json:"daily_pnl_pct"`
	DrawdownFromPeak     float64    `json:"drawdown_from_peak"`
	CircuitBreakerActive bool       `json:"circuit_breaker_active"`
	CircuitBreakerReason *string    `json:"circuit_breaker_reason"`
	Thresholds           Thresholds `json:"thresholds"`
}

// Coordinator combines the static validator with the position and portfolio
// monitors behind a single lock. It is safe for concurrent use.
type Coordinator struct {
	mu sync.Mutex

	cfg       Config
	validator *WeightValidator
	positions *PositionMonitor
	portfolio *PortfolioMonitor
	log       zerolog.Logger
}

func NewCoordinator(cfg Config, log zerolog.Logger) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	validator, err := NewWeightValidator(cfg.ValidatorConfig(), log)
	if err != nil {
		return nil, err
	}
	positions, err := NewPositionMonitor(MonitorThresholds{
		StopLossPct:     cfg.StopLossPct,
		TakeProfitPct:   cfg.TakeProfitPct,
		TrailingStopPct: cfg.TrailingStopPct,
	})
	if err != nil {
		return nil, err
	}
	portfolio, err := NewPortfolioMonitor(cfg.InitialPortfolioValue, cfg.DailyLossLimit, cfg.MaxDrawdown)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		cfg:       cfg,
		validator: validator,
		positions: positions,
		portfolio: portfolio,
		log:       log.With().Str("component", "risk_coordinator").Logger(),
	}
	c.log.Info().
		Float64("stop_loss_pct", cfg.StopLossPct).
		Float64("take_profit_pct", cfg.TakeProfitPct).
		Float64("daily_loss_limit", cfg.DailyLossLimit).
		Float64("max_drawdown", cfg.MaxDrawdown).
		Float64("initial_value", cfg.InitialPortfolioValue).
		Msg("risk coordinator initialized")
	return c, nil
}

// setClock replaces the time source of every component.
func (c *Coordinator) setClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validator.now = now
	c.positions.now = now
	c.portfolio.now = now
}

func (c *Coordinator) Config() Config {
	return c.cfg
}

// Pre-trade validation

func (c *Coordinator) ValidateWeights(w Weights) RiskCheckResult {
	return c.validator.ValidateWeights(w)
}

func (c *Coordinator) ValidateOrders(orders []broker.Order, portfolioValue float64, currentPositions, prices map[string]float64) []broker.Order {
	return c.validator.ValidateOrders(orders, portfolioValue, currentPositions, prices)
}

func (c *Coordinator) EvaluateOrders(orders []broker.Order, portfolioValue float64, currentPositions, prices map[string]float64) []OrderDecision {
	return c.validator.EvaluateOrders(orders, portfolioValue, currentPositions, prices)
}

// CheckPositionRisk applies the exit thresholds to a caller-built snapshot.
// Live monitoring goes through CheckAllPositions.
func (c *Coordinator) CheckPositionRisk(p PositionRisk) *ExitSignal {
	return c.validator.CheckPositionRisk(p)
}

func (c *Coordinator) AllocationMetrics(w Weights) AllocationMetrics {
	return c.validator.AllocationMetrics(w)
}

// Position monitoring

// StartPosition begins tracking a freshly opened position.
func (c *Coordinator) StartPosition(symbol string, entryPrice float64, shares int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions.AddPosition(symbol, entryPrice, shares, time.Time{})
}

func (c *Coordinator) ClosePosition(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions.RemovePosition(symbol)
}

func (c *Coordinator) UpdatePrices(prices map[string]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions.UpdatePrices(prices)
}

func (c *Coordinator) CheckAllPositions() []ExitSignal {
	c.mu.Lock()
	defer c.mu.Unlock()

	signals := c.positions.CheckAllPositions()
	for _, s := range signals {
		c.log.Info().
			Str("symbol", s.Symbol).
			Str("trigger", string(s.TriggerType)).
			Float64("price", s.CurrentPrice).
			Msg(s.Reason)
	}
	return signals
}

func (c *Coordinator) PositionRisks() []PositionRisk {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positions.PositionRisks()
}

// TrackedSymbols lists the monitored symbols in lexical order.
func (c *Coordinator) TrackedSymbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positions.Symbols()
}

// SyncPositions reconciles tracking with broker holdings. Symbols no longer
// held are dropped, new holdings start tracking at their average cost, and
// symbols present on both sides keep their entry and peak.
func (c *Coordinator) SyncPositions(held []broker.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()

	actual := make(map[string]struct{}, len(held))
	for _, p := range held {
		actual[p.Symbol] = struct{}{}
	}

	tracked := c.positions.Symbols()
	trackedSet := make(map[string]struct{}, len(tracked))
	for _, sym := range tracked {
		trackedSet[sym] = struct{}{}
		if _, ok := actual[sym]; !ok {
			c.positions.RemovePosition(sym)
			c.log.Info().Str("symbol", sym).Msg("position no longer held, stopped tracking")
		}
	}

	for _, p := range held {
		if _, ok := trackedSet[p.Symbol]; ok {
			continue
		}
		c.positions.AddPosition(p.Symbol, p.AvgCost, p.Shares, time.Time{})
		c.log.Info().
			Str("symbol", p.Symbol).
			Float64("entry", p.AvgCost).
			Int("shares", p.Shares).
			Msg("started tracking position")
	}
}

// Portfolio monitoring

func (c *Coordinator) UpdatePortfolioValue(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.portfolio.UpdateValue(v)
}

// ResetDailyTracking starts a new session baseline and clears the breaker.
func (c *Coordinator) ResetDailyTracking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.portfolio.ResetDailyStart()
	c.log.Info().
		Float64("daily_start_value", c.portfolio.State().DailyStartValue).
		Msg("daily tracking reset")
}

func (c *Coordinator) CheckCircuitBreaker() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	tripped := c.portfolio.CheckCircuitBreaker()
	if tripped {
		reason, _ := c.portfolio.Reason()
		c.log.Warn().Msg(reason)
	}
	return tripped
}

// BreakerStatus is the outcome of EvaluateCircuitBreaker.
type BreakerStatus struct {
	Active bool
	// Tripped is set only on the check that moved the breaker from
	// inactive to active.
	Tripped bool
	Reason  string
}

// EvaluateCircuitBreaker runs the breaker check and reports the transition
// under a single lock, so concurrent callers see at most one trip.
func (c *Coordinator) EvaluateCircuitBreaker() BreakerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	was := c.portfolio.Triggered()
	c.portfolio.CheckCircuitBreaker()
	st := BreakerStatus{Active: c.portfolio.Triggered()}
	st.Reason, _ = c.portfolio.Reason()
	st.Tripped = st.Active && !was
	if st.Tripped {
		c.log.Warn().Msg(st.Reason)
	}
	return st
}

func (c *Coordinator) IsCircuitBreakerActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.portfolio.Triggered()
}

func (c *Coordinator) CircuitBreakerReason() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.portfolio.Reason()
}

func (c *Coordinator) PortfolioMetrics() PortfolioMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.portfolio.Metrics()
}

// Summary snapshots positions and portfolio under one lock.
func (c *Coordinator) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.portfolio.Metrics()
	s := Summary{
		PositionsTracked:     c.positions.Len(),
		PortfolioValue:       m.PortfolioValue,
		DailyPnLPct:          m.DailyPnLPct,
		DrawdownFromPeak:     m.DrawdownFromPeak,
		CircuitBreakerActive: m.CircuitBreakerTriggered,
		Thresholds: Thresholds{
			StopLossPct:    c.cfg.StopLossPct,
			TakeProfitPct:  c.cfg.TakeProfitPct,
			DailyLossLimit: c.cfg.DailyLossLimit,
			MaxDrawdown:    c.cfg.MaxDrawdown,
		},
	}
	if reason, ok := c.portfolio.Reason(); ok {
		s.CircuitBreakerReason = &reason
	}
	return s
}
