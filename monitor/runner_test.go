package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/broker/paper"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/metrics"
	"github.com/rustyeddy/papertrader/performance"
	"github.com/rustyeddy/papertrader/pricing"
	"github.com/rustyeddy/papertrader/risk"
)

var t0 = time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)

type memJournal struct {
	mu     sync.Mutex
	events []journal.EventRecord
	equity []journal.EquitySnapshot
}

func (j *memJournal) RecordEvent(e journal.EventRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, e)
	return nil
}

func (j *memJournal) RecordEquity(s journal.EquitySnapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.equity = append(j.equity, s)
	return nil
}

func (j *memJournal) Close() error { return nil }

func (j *memJournal) kinds() []journal.EventKind {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]journal.EventKind, 0, len(j.events))
	for _, e := range j.events {
		out = append(out, e.Kind)
	}
	return out
}

type fixture struct {
	coord   *risk.Coordinator
	acct    *paper.Account
	journal *memJournal
	clock   time.Time
	runner  *Runner
}

func newFixture(t *testing.T, cash float64, autoExit bool, tracker *performance.Tracker, rec *metrics.Recorder) *fixture {
	t.Helper()

	coord, err := risk.NewCoordinator(risk.DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)

	f := &fixture{
		coord:   coord,
		acct:    paper.New("PAPER-1", cash, nil),
		journal: &memJournal{},
		clock:   t0,
	}
	f.runner = New(coord, f.acct, f.acct.Quotes(), Options{
		AutoExit: autoExit,
		Journal:  f.journal,
		Metrics:  rec,
		Tracker:  tracker,
		Log:      zerolog.Nop(),
		Now:      func() time.Time { return f.clock },
	})
	return f
}

func (f *fixture) mark(prices map[string]float64) {
	f.acct.Quotes().SetPrices(prices, f.clock)
}

func TestStepAutoExitsOnStopLoss(t *testing.T) {
	f := newFixture(t, 90000, true, nil, nil)
	f.acct.Seed("AAPL", 100, 100)
	f.mark(map[string]float64{"AAPL": 100})

	res, err := f.runner.Step(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Signals)
	assert.Equal(t, 100000.0, res.PortfolioValue)
	assert.Equal(t, []string{"AAPL"}, f.coord.TrackedSymbols())

	f.clock = f.clock.Add(time.Minute)
	f.mark(map[string]float64{"AAPL": 96})

	res, err = f.runner.Step(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Signals, 1)
	assert.Equal(t, risk.TriggerStopLoss, res.Signals[0].TriggerType)
	assert.Equal(t, []string{"AAPL"}, res.Closed)
	assert.Empty(t, f.coord.TrackedSymbols())

	held, err := f.acct.Positions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, held)
	assert.InDelta(t, -400, f.acct.RealizedPnL(), 1e-9)

	assert.Equal(t, []journal.EventKind{journal.KindExitSignal, journal.KindPositionClosed}, f.journal.kinds())
	assert.Len(t, f.journal.equity, 2)
	assert.Equal(t, res.Signals[0].ID, f.journal.events[0].EventID)
}

func TestStepWithoutAutoExitKeepsPosition(t *testing.T) {
	f := newFixture(t, 90000, false, nil, nil)
	f.acct.Seed("AAPL", 100, 100)
	f.mark(map[string]float64{"AAPL": 111})

	res, err := f.runner.Step(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Signals, 1)
	assert.Equal(t, risk.TriggerTakeProfit, res.Signals[0].TriggerType)
	assert.Empty(t, res.Closed)
	assert.Equal(t, []string{"AAPL"}, f.coord.TrackedSymbols())
}

func TestStepTripsBreakerOnce(t *testing.T) {
	rec := metrics.NewRecorder(nil)
	f := newFixture(t, 0, false, nil, rec)
	f.acct.Seed("AAPL", 1000, 100)
	f.mark(map[string]float64{"AAPL": 97})

	res, err := f.runner.Step(context.Background())
	require.NoError(t, err)
	assert.True(t, res.BreakerTripped)
	assert.Empty(t, res.Signals, "a 3% loss does not cross the strict stop-loss")
	assert.True(t, f.coord.IsCircuitBreakerActive())

	f.clock = f.clock.Add(time.Minute)
	res, err = f.runner.Step(context.Background())
	require.NoError(t, err)
	assert.False(t, res.BreakerTripped, "already active")

	assert.Equal(t, []journal.EventKind{journal.KindCircuitBreaker}, f.journal.kinds())
	assert.Contains(t, f.journal.events[0].Reason, "Daily loss limit exceeded")
	assert.True(t, f.journal.equity[1].BreakerActive)

	summary := f.coord.Summary()
	assert.True(t, summary.CircuitBreakerActive)
	assert.Equal(t, 1, summary.PositionsTracked)

	n, err := testutil.GatherAndCount(rec.Registry(), "papertrader_circuit_breaker_trips_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStepRollsDailyBaseline(t *testing.T) {
	tracker := performance.NewTracker(100000, 0.04)
	f := newFixture(t, 50000, false, tracker, nil)
	f.acct.Seed("AAPL", 500, 100)
	f.mark(map[string]float64{"AAPL": 100})

	res, err := f.runner.Step(context.Background())
	require.NoError(t, err)
	assert.False(t, res.DayReset)

	f.clock = f.clock.Add(2 * time.Hour)
	f.mark(map[string]float64{"AAPL": 98})
	res, err = f.runner.Step(context.Background())
	require.NoError(t, err)
	assert.False(t, res.DayReset)
	assert.InDelta(t, -0.01, f.coord.PortfolioMetrics().DailyPnLPct, 1e-12)

	f.clock = f.clock.Add(24 * time.Hour)
	f.mark(map[string]float64{"AAPL": 98.5})
	res, err = f.runner.Step(context.Background())
	require.NoError(t, err)
	assert.True(t, res.DayReset)

	pm := f.coord.PortfolioMetrics()
	assert.Equal(t, 99000.0, pm.DailyStartValue, "baseline is the prior day's close")
	assert.Equal(t, 99250.0, pm.PortfolioValue)

	hist := tracker.History()
	require.Len(t, hist, 1)
	assert.Equal(t, 99000.0, hist[0].PortfolioValue)
	assert.Equal(t, 50000.0, hist[0].Cash)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), hist[0].Date)

	f.runner.FinishDay()
	require.Len(t, tracker.History(), 2)
	assert.Contains(t, f.journal.kinds(), journal.KindDailyReset)
}

type failingBroker struct {
	broker.Broker
	err error
}

func (b failingBroker) Positions(context.Context) ([]broker.Position, error) { return nil, b.err }

func TestStepBrokerErrorAborts(t *testing.T) {
	coord, err := risk.NewCoordinator(risk.DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)

	boom := errors.New("boom")
	r := New(coord, failingBroker{err: boom}, pricing.NewQuoteStore(), Options{Log: zerolog.Nop()})
	_, err = r.Step(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, DefaultInterval, r.interval)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, 100000, false, nil, nil)
	f.runner.interval = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := f.runner.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotEmpty(t, f.journal.equity)
}
