package risk

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/papertrader/internal/id"
)

const (
	// limitTolerance absorbs float noise so already-adjusted weights validate
	// clean on a second pass.
	limitTolerance = 1e-9

	// sumTolerance is how far the adjusted weights may drift from 1.0 before
	// the residual is booked to cash.
	sumTolerance = 1e-6
)

// WeightValidator enforces static allocation limits and position exits.
// It holds no mutable state and is safe for concurrent use.
type WeightValidator struct {
	cfg ValidatorConfig
	log zerolog.Logger
	now func() time.Time
}

func NewWeightValidator(cfg ValidatorConfig, log zerolog.Logger) (*WeightValidator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	v := &WeightValidator{
		cfg: cfg,
		log: log.With().Str("component", "weight_validator").Logger(),
		now: time.Now,
	}
	v.log.Debug().
		Float64("max_position_size", cfg.MaxPositionSize).
		Float64("max_total_exposure", cfg.MaxTotalExposure).
		Float64("min_cash_reserve", cfg.MinCashReserve).
		Msg("weight validator initialized")
	return v, nil
}

// Config returns the limits the validator was built with.
func (v *WeightValidator) Config() ValidatorConfig {
	return v.cfg
}

// ValidateWeights applies the position cap, the exposure cap and the cash
// floor in that order, each on the output of the previous one. The input map
// is never modified.
func (v *WeightValidator) ValidateWeights(w Weights) RiskCheckResult {
	res := RiskCheckResult{
		OriginalWeights: w.Clone(),
		Timestamp:       v.now(),
	}

	if bad := invalidWeights(w); len(bad) > 0 {
		res.Action = ActionReject
		res.AdjustedWeights = w.Clone()
		res.Violations = bad
		res.Message = "Invalid weights: " + strings.Join(bad, "; ")
		v.log.Warn().Strs("violations", bad).Msg("weights rejected")
		return res
	}

	adjusted := w.Clone()
	var violations, adjustments []string

	// 1: single position cap, excess moves to cash
	maxPos := v.cfg.MaxPositionSize
	capped := 0
	for _, sym := range sortedSymbols(adjusted) {
		wt := adjusted[sym]
		if wt <= maxPos+limitTolerance {
			continue
		}
		adjusted[sym] = maxPos
		adjusted[CashSymbol] += wt - maxPos
		capped++
		violations = append(violations,
			fmt.Sprintf("%s weight %.1f%% exceeds limit %.1f%%", sym, 100*wt, 100*maxPos))
	}
	if capped > 0 {
		adjustments = append(adjustments,
			fmt.Sprintf("Capped %d position(s) at %.0f%%", capped, 100*maxPos))
		v.log.Info().Int("capped", capped).Msg("position size violations")
	}

	// 2: total exposure cap, proportional scale
	maxExp := v.cfg.MaxTotalExposure
	if exposure := adjusted.Invested(); exposure > maxExp+limitTolerance {
		scaleInvested(adjusted, maxExp/exposure)
		adjusted[CashSymbol] = 1 - adjusted.Invested()

		violations = append(violations,
			fmt.Sprintf("Total exposure %.1f%% exceeds limit %.1f%%", 100*exposure, 100*maxExp))
		adjustments = append(adjustments,
			fmt.Sprintf("Scaled exposure from %.1f%% to %.1f%%", 100*exposure, 100*maxExp))
		v.log.Info().
			Float64("from", exposure).
			Float64("to", maxExp).
			Msg("exposure violation")
	}

	// 3: cash floor, shrink invested weights
	minCash := v.cfg.MinCashReserve
	cash := adjusted[CashSymbol]
	if invested := adjusted.Invested(); cash < minCash-limitTolerance && invested > 0 {
		target := math.Min(invested, 1-minCash)
		scaleInvested(adjusted, target/invested)
		adjusted[CashSymbol] = math.Max(minCash, 1-adjusted.Invested())

		violations = append(violations,
			fmt.Sprintf("Cash %.1f%% below minimum %.1f%%", 100*cash, 100*minCash))
		adjustments = append(adjustments,
			fmt.Sprintf("Increased cash reserve to %.0f%%", 100*minCash))
		v.log.Info().
			Float64("from", cash).
			Float64("to", minCash).
			Msg("cash reserve violation")
	}

	if total := adjusted.Total(); math.Abs(total-1) > sumTolerance {
		adjusted[CashSymbol] += 1 - total
	}

	res.AdjustedWeights = adjusted
	res.Violations = violations
	res.Adjustments = adjustments
	res.IsCompliant = true
	if len(violations) == 0 {
		res.Action = ActionApprove
		res.Message = "All risk checks passed"
	} else {
		res.Action = ActionAdjust
		res.Message = "Risk adjustments: " + strings.Join(adjustments, "; ")
	}
	return res
}

// CheckPositionRisk returns the first exit rule that fires, in the order
// stop-loss, take-profit, trailing stop.
func (v *WeightValidator) CheckPositionRisk(p PositionRisk) *ExitSignal {
	return v.checkPosition(p)
}

func (v *WeightValidator) checkPosition(p PositionRisk) *ExitSignal {
	var (
		trigger TriggerType
		reason  string
	)

	switch {
	case p.PnLPct < -v.cfg.StopLossPct:
		trigger = TriggerStopLoss
		reason = fmt.Sprintf("Stop-loss triggered (%.1f%% loss)", 100*p.PnLPct)
	case p.PnLPct > v.cfg.TakeProfitPct:
		trigger = TriggerTakeProfit
		reason = fmt.Sprintf("Take-profit triggered (%.1f%% gain)", 100*p.PnLPct)
	case v.cfg.TrailingStopPct != nil && p.DrawdownFromPeak < -*v.cfg.TrailingStopPct:
		trigger = TriggerTrailingStop
		reason = fmt.Sprintf("Trailing stop (%.1f%% from peak $%.2f)", 100*p.DrawdownFromPeak, p.PeakPrice)
	default:
		return nil
	}

	v.log.Info().
		Str("symbol", p.Symbol).
		Str("trigger", string(trigger)).
		Msg(reason)

	return &ExitSignal{
		ID:           id.New(),
		Symbol:       p.Symbol,
		Shares:       p.Shares,
		Reason:       reason,
		TriggerType:  trigger,
		CurrentPrice: p.CurrentPrice,
		Timestamp:    v.now(),
	}
}

// AllocationMetrics summarises the concentration of w.
type AllocationMetrics struct {
	TotalExposure         float64 `json:"total_exposure"`
	CashWeight            float64 `json:"cash_weight"`
	PositionCount         int     `json:"position_count"`
	MaxPositionWeight     float64 `json:"max_position_weight"`
	HerfindahlIndex       float64 `json:"herfindahl_index"`
	CompliantPositionSize bool    `json:"compliant_position_size"`
	CompliantExposure     bool    `json:"compliant_exposure"`
	CompliantCash         bool    `json:"compliant_cash"`
}

// AllocationMetrics computes exposure and concentration for w.
func (v *WeightValidator) AllocationMetrics(w Weights) AllocationMetrics {
	var m AllocationMetrics
	for sym, wt := range w {
		if sym == CashSymbol {
			m.CashWeight = wt
			continue
		}
		m.PositionCount++
		m.TotalExposure += wt
		m.HerfindahlIndex += wt * wt
		if m.PositionCount == 1 || wt > m.MaxPositionWeight {
			m.MaxPositionWeight = wt
		}
	}
	m.CompliantPositionSize = m.MaxPositionWeight <= v.cfg.MaxPositionSize
	m.CompliantExposure = m.TotalExposure <= v.cfg.MaxTotalExposure
	m.CompliantCash = m.CashWeight >= v.cfg.MinCashReserve
	return m
}

func invalidWeights(w Weights) []string {
	var bad []string
	symbols := sortedSymbols(w)
	if _, ok := w[CashSymbol]; ok {
		symbols = append(symbols, CashSymbol)
	}
	for _, sym := range symbols {
		wt := w[sym]
		if math.IsNaN(wt) || math.IsInf(wt, 0) {
			bad = append(bad, fmt.Sprintf("%s weight is not a finite number", sym))
			continue
		}
		if wt < 0 {
			bad = append(bad, fmt.Sprintf("%s weight %.1f%% is negative", sym, 100*wt))
		}
	}
	return bad
}

func scaleInvested(w Weights, factor float64) {
	for sym := range w {
		if sym != CashSymbol {
			w[sym] *= factor
		}
	}
}

// sortedSymbols returns the non-cash symbols of w in lexical order.
func sortedSymbols(w Weights) []string {
	out := make([]string, 0, len(w))
	for sym := range w {
		if sym != CashSymbol {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}
