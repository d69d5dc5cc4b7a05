package risk

import (
	"time"
)

// CashSymbol is the reserved weight key holding uninvested capital.
const CashSymbol = "Cash"

// Weights maps a symbol (or CashSymbol) to a fraction of portfolio value.
type Weights map[string]float64

// Clone returns an independent copy of w.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Invested sums every weight except cash.
func (w Weights) Invested() float64 {
	var sum float64
	for k, v := range w {
		if k == CashSymbol {
			continue
		}
		sum += v
	}
	return sum
}

// Total sums every weight including cash.
func (w Weights) Total() float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum
}

// RiskAction is the verdict of a weight validation.
type RiskAction string

const (
	ActionApprove        RiskAction = "approve"
	ActionAdjust         RiskAction = "adjust"
	ActionReject         RiskAction = "reject"
	ActionReduceExposure RiskAction = "reduce_exposure"
	ActionHaltTrading    RiskAction = "halt_trading"
)

// TriggerType names the rule that produced an ExitSignal.
type TriggerType string

const (
	TriggerStopLoss     TriggerType = "stop_loss"
	TriggerTakeProfit   TriggerType = "take_profit"
	TriggerTrailingStop TriggerType = "trailing_stop"
)

// RiskCheckResult is returned by ValidateWeights.
type RiskCheckResult struct {
	Action          RiskAction `json:"action"`
	IsCompliant     bool       `json:"is_compliant"`
	OriginalWeights Weights    `json:"original_weights"`
	AdjustedWeights Weights    `json:"adjusted_weights"`
	Violations      []string   `json:"violations"`
	Adjustments     []string   `json:"adjustments"`
	Message         string     `json:"message"`
	Timestamp       time.Time  `json:"timestamp"`
}

// PositionRisk is a point-in-time risk view of one holding.
// Build it with NewPositionRisk so the derived fields are consistent.
type PositionRisk struct {
	Symbol           string  `json:"symbol"`
	EntryPrice       float64 `json:"entry_price"`
	CurrentPrice     float64 `json:"current_price"`
	Shares           int     `json:"shares"`
	PnLPct           float64 `json:"pnl_pct"`
	PeakPrice        float64 `json:"peak_price"`
	DrawdownFromPeak float64 `json:"drawdown_from_peak"`
	DaysHeld         int     `json:"days_held"`
}

// NewPositionRisk computes PnLPct and DrawdownFromPeak once. A peak below
// max(entry, current) is raised to that value.
func NewPositionRisk(symbol string, entry, current float64, shares int, peak float64, daysHeld int) PositionRisk {
	floor := entry
	if current > floor {
		floor = current
	}
	if peak < floor {
		peak = floor
	}

	pr := PositionRisk{
		Symbol:       symbol,
		EntryPrice:   entry,
		CurrentPrice: current,
		Shares:       shares,
		PeakPrice:    peak,
		DaysHeld:     daysHeld,
	}
	if entry > 0 {
		pr.PnLPct = (current - entry) / entry
	}
	if peak > 0 {
		pr.DrawdownFromPeak = (current - peak) / peak
	}
	return pr
}

// ExitSignal recommends closing a whole position.
type ExitSignal struct {
	ID           string      `json:"id"`
	Symbol       string      `json:"symbol"`
	Shares       int         `json:"shares"`
	Reason       string      `json:"reason"`
	TriggerType  TriggerType `json:"trigger_type"`
	CurrentPrice float64     `json:"current_price"`
	Timestamp    time.Time   `json:"timestamp"`
}

// Manager is the capability shared by the static validator and the
// coordinator.
type Manager interface {
	ValidateWeights(w Weights) RiskCheckResult
	CheckPositionRisk(p PositionRisk) *ExitSignal
}

// CheckPositions runs m.CheckPositionRisk over positions and keeps the
// signals, in input order.
func CheckPositions(m Manager, positions []PositionRisk) []ExitSignal {
	var out []ExitSignal
	for _, p := range positions {
		if sig := m.CheckPositionRisk(p); sig != nil {
			out = append(out, *sig)
		}
	}
	return out
}

// ValidateAndAdjust returns the adjusted weights together with the result.
func ValidateAndAdjust(m Manager, w Weights) (Weights, RiskCheckResult) {
	res := m.ValidateWeights(w)
	return res.AdjustedWeights, res
}

func floatPtr(v float64) *float64 { return &v }
