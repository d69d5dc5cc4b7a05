package pricing

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNoQuote = errors.New("price not found")

// Source supplies the latest price per symbol. Symbols without a quote are
// left out of the result.
type Source interface {
	Quotes(ctx context.Context, symbols []string) (map[string]float64, error)
}

type Quote struct {
	Symbol string
	Time   time.Time
	Bid    float64
	Ask    float64
	Last   float64
}

// Price is the last trade, falling back to the bid/ask midpoint.
func (q Quote) Price() float64 {
	if q.Last != 0 {
		return q.Last
	}
	if q.Bid == 0 && q.Ask == 0 {
		return 0
	}
	return (q.Bid + q.Ask) / 2
}

// QuoteStore keeps the latest quote per symbol.
type QuoteStore struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewQuoteStore() *QuoteStore {
	return &QuoteStore{quotes: make(map[string]Quote)}
}

// Set stores q unless a newer quote for the same symbol is already held.
func (s *QuoteStore) Set(q Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.quotes[q.Symbol]; ok && q.Time.Before(cur.Time) {
		return
	}
	s.quotes[q.Symbol] = q
}

// SetPrices stores last prices stamped with ts.
func (s *QuoteStore) SetPrices(prices map[string]float64, ts time.Time) {
	for sym, p := range prices {
		s.Set(Quote{Symbol: sym, Time: ts, Last: p})
	}
}

func (s *QuoteStore) Get(symbol string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[symbol]
	if !ok {
		return Quote{}, ErrNoQuote
	}
	return q, nil
}

func (s *QuoteStore) Quotes(ctx context.Context, symbols []string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		if q, ok := s.quotes[sym]; ok {
			if p := q.Price(); p > 0 {
				out[sym] = p
			}
		}
	}
	return out, nil
}
