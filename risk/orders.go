package risk

import (
	"fmt"
	"math"

	"github.com/rustyeddy/papertrader/broker"
)

// MinTradeValue is the smallest order value worth sending.
const MinTradeValue = 100.0

type Violation struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// OrderDecision is the pre-trade verdict for one order.
type OrderDecision struct {
	Order           broker.Order `json:"order"`
	Allowed         bool         `json:"allowed"`
	Violations      []Violation  `json:"violations,omitempty"`
	OrderValue      float64      `json:"order_value"`
	ProjectedWeight float64      `json:"projected_weight"`
}

func (d *OrderDecision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// EvaluateOrders checks each order independently against the position cap
// and the minimum trade value. currentPositions holds market values by
// symbol; prices is only used to value orders that carry shares but no
// estimated value.
func (v *WeightValidator) EvaluateOrders(
	orders []broker.Order,
	portfolioValue float64,
	currentPositions map[string]float64,
	prices map[string]float64,
) []OrderDecision {
	out := make([]OrderDecision, 0, len(orders))
	for _, o := range orders {
		out = append(out, v.evaluateOrder(o, portfolioValue, currentPositions, prices))
	}
	return out
}

func (v *WeightValidator) evaluateOrder(
	o broker.Order,
	portfolioValue float64,
	currentPositions map[string]float64,
	prices map[string]float64,
) OrderDecision {
	d := OrderDecision{Order: o, Allowed: true}

	value := o.EstimatedValue
	if value == 0 && o.Shares != 0 {
		value = float64(o.Shares) * prices[o.Symbol]
	}
	d.OrderValue = math.Abs(value)

	current := currentPositions[o.Symbol]
	var projected float64
	switch o.Action {
	case broker.Buy:
		projected = current + d.OrderValue
	case broker.Sell:
		projected = math.Max(0, current-d.OrderValue)
	default:
		d.add("UNKNOWN_ACTION", fmt.Sprintf("unknown order action %q", o.Action))
		v.log.Warn().
			Str("symbol", o.Symbol).
			Str("action", string(o.Action)).
			Msg("unknown order action, skipping")
		return d
	}

	if portfolioValue > 0 {
		d.ProjectedWeight = projected / portfolioValue
	}

	if d.ProjectedWeight > v.cfg.MaxPositionSize {
		d.add("POSITION_TOO_LARGE",
			fmt.Sprintf("projected weight %.1f%% exceeds max %.1f%%",
				100*d.ProjectedWeight, 100*v.cfg.MaxPositionSize))
		v.log.Warn().
			Str("symbol", o.Symbol).
			Float64("projected_weight", d.ProjectedWeight).
			Float64("limit", v.cfg.MaxPositionSize).
			Msg("order rejected: position would exceed max size")
		return d
	}

	if d.OrderValue < MinTradeValue {
		d.add("TRADE_TOO_SMALL",
			fmt.Sprintf("trade value $%.2f below minimum $%.2f", d.OrderValue, MinTradeValue))
		v.log.Debug().
			Str("symbol", o.Symbol).
			Float64("value", d.OrderValue).
			Msg("order skipped: trade value too small")
	}

	return d
}

// ValidateOrders returns the orders that pass EvaluateOrders, in input order.
func (v *WeightValidator) ValidateOrders(
	orders []broker.Order,
	portfolioValue float64,
	currentPositions map[string]float64,
	prices map[string]float64,
) []broker.Order {
	decisions := v.EvaluateOrders(orders, portfolioValue, currentPositions, prices)
	approved := make([]broker.Order, 0, len(orders))
	for _, d := range decisions {
		if d.Allowed {
			approved = append(approved, d.Order)
		}
	}

	if rejected := len(orders) - len(approved); rejected > 0 {
		v.log.Info().
			Int("approved", len(approved)).
			Int("rejected", rejected).
			Msg("order validation")
	}
	return approved
}
