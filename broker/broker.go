package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrPositionNotFound = errors.New("position not found")

// Broker is the brokerage surface the risk monitor needs: holdings, account
// value and the ability to flatten a position after an exit signal.
type Broker interface {
	Positions(ctx context.Context) ([]Position, error)
	Account(ctx context.Context) (Account, error)
	ClosePosition(ctx context.Context, symbol string) error
}

// Position is one broker holding.
type Position struct {
	Symbol      string  `json:"symbol" yaml:"symbol"`
	Shares      int     `json:"shares" yaml:"shares"`
	AvgCost     float64 `json:"avg_cost" yaml:"avg_cost"`
	MarketValue float64 `json:"market_value" yaml:"market_value,omitempty"`
}

type Account struct {
	ID       string  `json:"id"`
	Currency string  `json:"currency"`
	Cash     float64 `json:"cash"`
	Equity   float64 `json:"equity"`
}

// Values returns position market values keyed by symbol.
func Values(positions []Position) map[string]float64 {
	out := make(map[string]float64, len(positions))
	for _, p := range positions {
		out[p.Symbol] = p.MarketValue
	}
	return out
}

// OrderAction is the side of an order.
type OrderAction string

const (
	Buy  OrderAction = "BUY"
	Sell OrderAction = "SELL"
)

// ParseOrderAction accepts buy/sell in any case.
func ParseOrderAction(s string) (OrderAction, error) {
	switch a := OrderAction(strings.ToUpper(strings.TrimSpace(s))); a {
	case Buy, Sell:
		return a, nil
	default:
		return a, fmt.Errorf("unknown order action %q", s)
	}
}

// Order is a proposed trade awaiting pre-trade checks.
type Order struct {
	Symbol         string      `json:"symbol" yaml:"symbol"`
	Action         OrderAction `json:"action" yaml:"action"`
	Shares         int         `json:"shares,omitempty" yaml:"shares,omitempty"`
	EstimatedValue float64     `json:"estimated_value" yaml:"estimated_value"`
}
