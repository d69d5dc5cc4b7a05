package risk

import (
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/papertrader/internal/id"
)

// PositionState is the live tracking record for one open position.
type PositionState struct {
	Symbol       string    `json:"symbol"`
	EntryPrice   float64   `json:"entry_price"`
	EntryTime    time.Time `json:"entry_time"`
	CurrentPrice float64   `json:"current_price"`
	Shares       int       `json:"shares"`
	PeakPrice    float64   `json:"peak_price"`
	PeakTime     time.Time `json:"peak_time"`
}

// UpdatePrice records a new price and ratchets the peak.
func (s *PositionState) UpdatePrice(price float64, ts time.Time) {
	s.CurrentPrice = price
	if price > s.PeakPrice {
		s.PeakPrice = price
		s.PeakTime = ts
	}
}

// Risk converts the state into a PositionRisk as of now.
func (s *PositionState) Risk(now time.Time) PositionRisk {
	days := 0
	if !s.EntryTime.IsZero() {
		days = int(now.Sub(s.EntryTime).Hours() / 24)
	}
	return NewPositionRisk(s.Symbol, s.EntryPrice, s.CurrentPrice, s.Shares, s.PeakPrice, days)
}

// MonitorThresholds configures a PositionMonitor.
type MonitorThresholds struct {
	StopLossPct     float64  // 0.03
	TakeProfitPct   float64  // 0.10
	TrailingStopPct *float64 // nil disables
}

func DefaultMonitorThresholds() MonitorThresholds {
	return MonitorThresholds{StopLossPct: 0.03, TakeProfitPct: 0.10}
}

// PositionMonitor tracks open positions and their peaks. It is not safe for
// concurrent use; the Coordinator serialises access.
type PositionMonitor struct {
	th        MonitorThresholds
	positions map[string]*PositionState
	now       func() time.Time
}

func NewPositionMonitor(th MonitorThresholds) (*PositionMonitor, error) {
	if err := validateExits(th.StopLossPct, th.TakeProfitPct, th.TrailingStopPct); err != nil {
		return nil, err
	}
	return &PositionMonitor{
		th:        th,
		positions: make(map[string]*PositionState),
		now:       time.Now,
	}, nil
}

func (m *PositionMonitor) Thresholds() MonitorThresholds {
	return m.th
}

// AddPosition starts tracking symbol, replacing any existing record. A zero
// entryTime means now.
func (m *PositionMonitor) AddPosition(symbol string, entryPrice float64, shares int, entryTime time.Time) {
	if entryTime.IsZero() {
		entryTime = m.now()
	}
	m.positions[symbol] = &PositionState{
		Symbol:       symbol,
		EntryPrice:   entryPrice,
		EntryTime:    entryTime,
		CurrentPrice: entryPrice,
		Shares:       shares,
		PeakPrice:    entryPrice,
		PeakTime:     entryTime,
	}
}

// RemovePosition stops tracking symbol. Unknown symbols are ignored.
func (m *PositionMonitor) RemovePosition(symbol string) {
	delete(m.positions, symbol)
}

// UpdatePrices applies the prices of tracked symbols and ignores the rest.
func (m *PositionMonitor) UpdatePrices(prices map[string]float64) {
	ts := m.now()
	for sym, p := range prices {
		if st, ok := m.positions[sym]; ok {
			st.UpdatePrice(p, ts)
		}
	}
}

// CheckPosition evaluates the exit rules for one tracked symbol.
func (m *PositionMonitor) CheckPosition(symbol string) *ExitSignal {
	st, ok := m.positions[symbol]
	if !ok {
		return nil
	}
	pr := st.Risk(m.now())

	var (
		trigger TriggerType
		reason  string
	)
	switch {
	case pr.PnLPct < -m.th.StopLossPct:
		trigger = TriggerStopLoss
		reason = fmt.Sprintf("Stop-loss triggered: %.2f%% loss (threshold: %.2f%%)",
			100*pr.PnLPct, -100*m.th.StopLossPct)
	case pr.PnLPct > m.th.TakeProfitPct:
		trigger = TriggerTakeProfit
		reason = fmt.Sprintf("Take-profit triggered: %.2f%% gain (threshold: %.2f%%)",
			100*pr.PnLPct, 100*m.th.TakeProfitPct)
	case m.th.TrailingStopPct != nil && pr.DrawdownFromPeak < -*m.th.TrailingStopPct:
		trigger = TriggerTrailingStop
		reason = fmt.Sprintf("Trailing stop triggered: %.2f%% from peak $%.2f (threshold: %.2f%%)",
			100*pr.DrawdownFromPeak, pr.PeakPrice, -100*(*m.th.TrailingStopPct))
	default:
		return nil
	}

	return &ExitSignal{
		ID:           id.New(),
		Symbol:       symbol,
		Shares:       st.Shares,
		Reason:       reason,
		TriggerType:  trigger,
		CurrentPrice: st.CurrentPrice,
		Timestamp:    m.now(),
	}
}

// CheckAllPositions returns one signal per triggered position, ordered by
// symbol.
func (m *PositionMonitor) CheckAllPositions() []ExitSignal {
	var out []ExitSignal
	for _, sym := range m.Symbols() {
		if sig := m.CheckPosition(sym); sig != nil {
			out = append(out, *sig)
		}
	}
	return out
}

// PositionRisks snapshots every tracked position, ordered by symbol.
func (m *PositionMonitor) PositionRisks() []PositionRisk {
	now := m.now()
	out := make([]PositionRisk, 0, len(m.positions))
	for _, sym := range m.Symbols() {
		out = append(out, m.positions[sym].Risk(now))
	}
	return out
}

// Position returns a copy of the tracked state for symbol.
func (m *PositionMonitor) Position(symbol string) (PositionState, bool) {
	st, ok := m.positions[symbol]
	if !ok {
		return PositionState{}, false
	}
	return *st, true
}

// Symbols lists tracked symbols in lexical order.
func (m *PositionMonitor) Symbols() []string {
	out := make([]string, 0, len(m.positions))
	for sym := range m.positions {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (m *PositionMonitor) Len() int {
	return len(m.positions)
}
