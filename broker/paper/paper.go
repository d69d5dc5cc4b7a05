package paper

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/pricing"
)

type holding struct {
	shares  int
	avgCost float64
}

// Account is an in-memory long-only brokerage account marked to the
// prices in a QuoteStore. Closes fill at the latest quote.
type Account struct {
	mu       sync.Mutex
	id       string
	cash     float64
	realized float64
	holdings map[string]*holding
	quotes   *pricing.QuoteStore
}

var _ broker.Broker = (*Account)(nil)

func New(id string, cash float64, quotes *pricing.QuoteStore) *Account {
	if quotes == nil {
		quotes = pricing.NewQuoteStore()
	}
	return &Account{
		id:       id,
		cash:     cash,
		holdings: make(map[string]*holding),
		quotes:   quotes,
	}
}

func (a *Account) Quotes() *pricing.QuoteStore {
	return a.quotes
}

// Seed books an existing holding without touching cash.
func (a *Account) Seed(symbol string, shares int, avgCost float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.holdings[symbol] = &holding{shares: shares, avgCost: avgCost}
}

func (a *Account) Positions(ctx context.Context) ([]broker.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positionsLocked(), nil
}

func (a *Account) positionsLocked() []broker.Position {
	out := make([]broker.Position, 0, len(a.holdings))
	for sym, h := range a.holdings {
		out = append(out, broker.Position{
			Symbol:      sym,
			Shares:      h.shares,
			AvgCost:     h.avgCost,
			MarketValue: float64(h.shares) * a.markLocked(sym, h),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// markLocked prices a holding at its quote, or at cost when unquoted.
func (a *Account) markLocked(symbol string, h *holding) float64 {
	if q, err := a.quotes.Get(symbol); err == nil && q.Price() > 0 {
		return q.Price()
	}
	return h.avgCost
}

func (a *Account) Account(ctx context.Context) (broker.Account, error) {
	if err := ctx.Err(); err != nil {
		return broker.Account{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	equity := a.cash
	for _, p := range a.positionsLocked() {
		equity += p.MarketValue
	}
	return broker.Account{
		ID:       a.id,
		Currency: "USD",
		Cash:     a.cash,
		Equity:   equity,
	}, nil
}

// ClosePosition sells the whole holding at the latest quote.
func (a *Account) ClosePosition(ctx context.Context, symbol string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	h, ok := a.holdings[symbol]
	if !ok {
		return fmt.Errorf("close %s: %w", symbol, broker.ErrPositionNotFound)
	}
	q, err := a.quotes.Get(symbol)
	if err != nil {
		return fmt.Errorf("close %s: %w", symbol, err)
	}

	price := q.Price()
	a.cash += float64(h.shares) * price
	a.realized += float64(h.shares) * (price - h.avgCost)
	delete(a.holdings, symbol)
	return nil
}

// RealizedPnL is the profit booked by ClosePosition so far.
func (a *Account) RealizedPnL() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.realized
}
