package journal

import "time"

// EventKind classifies a journaled risk event.
type EventKind string

const (
	KindExitSignal     EventKind = "exit_signal"
	KindPositionClosed EventKind = "position_closed"
	KindCircuitBreaker EventKind = "circuit_breaker"
	KindDailyReset     EventKind = "daily_reset"
	KindWeightCheck    EventKind = "weight_check"
	KindOrderRejected  EventKind = "order_rejected"
)

// EventRecord is one risk decision worth keeping.
type EventRecord struct {
	EventID string
	Kind    EventKind
	Symbol  string
	Trigger string
	Shares  int
	Price   float64
	Reason  string
	Time    time.Time
}

// EquitySnapshot is the portfolio monitor state at a point in time.
type EquitySnapshot struct {
	Time           time.Time
	PortfolioValue float64
	PeakValue      float64
	DailyPnLPct    float64
	Drawdown       float64
	BreakerActive  bool
}

type Journal interface {
	RecordEvent(EventRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Discard is a Journal that drops everything.
type Discard struct{}

func (Discard) RecordEvent(EventRecord) error     { return nil }
func (Discard) RecordEquity(EquitySnapshot) error { return nil }
func (Discard) Close() error                      { return nil }
