// Package monitor drives the risk coordinator from a broker and a price source.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/internal/id"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/metrics"
	"github.com/rustyeddy/papertrader/performance"
	"github.com/rustyeddy/papertrader/pricing"
	"github.com/rustyeddy/papertrader/risk"
)

const DefaultInterval = time.Minute

type Options struct {
	Interval time.Duration

	// AutoExit closes positions at the broker when an exit signal fires.
	AutoExit bool

	Journal journal.Journal
	Metrics *metrics.Recorder
	Tracker *performance.Tracker
	Log     zerolog.Logger

	// Now supplies the step clock. Replays point it at the feed time.
	Now func() time.Time
}

// StepResult reports what a single pass did.
type StepResult struct {
	Time           time.Time         `json:"time"`
	PortfolioValue float64           `json:"portfolio_value"`
	Signals        []risk.ExitSignal `json:"signals"`
	Closed         []string          `json:"closed,omitempty"`
	BreakerTripped bool              `json:"breaker_tripped"`
	DayReset       bool              `json:"day_reset"`
}

type Runner struct {
	coord  *risk.Coordinator
	broker broker.Broker
	prices pricing.Source

	interval time.Duration
	autoExit bool
	journal  journal.Journal
	metrics  *metrics.Recorder
	tracker  *performance.Tracker
	log      zerolog.Logger
	now      func() time.Time

	day      time.Time
	lastAcct broker.Account
	seen     bool
}

func New(coord *risk.Coordinator, b broker.Broker, src pricing.Source, opts Options) *Runner {
	r := &Runner{
		coord:    coord,
		broker:   b,
		prices:   src,
		interval: opts.Interval,
		autoExit: opts.AutoExit,
		journal:  opts.Journal,
		metrics:  opts.Metrics,
		tracker:  opts.Tracker,
		log:      opts.Log.With().Str("component", "monitor").Logger(),
		now:      opts.Now,
	}
	if r.interval <= 0 {
		r.interval = DefaultInterval
	}
	if r.journal == nil {
		r.journal = journal.Discard{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Step runs one monitoring pass: sync holdings, mark prices, revalue the
// portfolio, check the breaker, then evaluate exits. Broker and price
// failures abort the pass. Journal and close failures are joined into the
// returned error after the pass completes.
func (r *Runner) Step(ctx context.Context) (StepResult, error) {
	now := r.now()
	res := StepResult{Time: now}

	held, err := r.broker.Positions(ctx)
	if err != nil {
		return res, fmt.Errorf("positions: %w", err)
	}
	r.coord.SyncPositions(held)

	var errs []error

	if r.rollDay(now) {
		res.DayReset = true
		errs = append(errs, r.journal.RecordEvent(journal.EventRecord{
			EventID: id.At(now),
			Kind:    journal.KindDailyReset,
			Price:   r.coord.PortfolioMetrics().DailyStartValue,
			Reason:  "New trading day",
			Time:    now,
		}))
	}

	quotes, err := r.prices.Quotes(ctx, r.coord.TrackedSymbols())
	if err != nil {
		return res, fmt.Errorf("quotes: %w", err)
	}
	r.coord.UpdatePrices(quotes)

	acct, err := r.broker.Account(ctx)
	if err != nil {
		return res, fmt.Errorf("account: %w", err)
	}
	r.lastAcct = acct
	r.coord.UpdatePortfolioValue(acct.Equity)
	res.PortfolioValue = acct.Equity

	if st := r.coord.EvaluateCircuitBreaker(); st.Tripped {
		res.BreakerTripped = true
		if r.metrics != nil {
			r.metrics.RecordBreakerTrip()
		}
		errs = append(errs, r.journal.RecordEvent(journal.EventRecord{
			EventID: id.At(now),
			Kind:    journal.KindCircuitBreaker,
			Price:   acct.Equity,
			Reason:  st.Reason,
			Time:    now,
		}))
	}

	res.Signals = r.coord.CheckAllPositions()
	for _, sig := range res.Signals {
		if r.metrics != nil {
			r.metrics.RecordExitSignal(sig)
		}
		errs = append(errs, r.journal.RecordEvent(journal.EventRecord{
			EventID: sig.ID,
			Kind:    journal.KindExitSignal,
			Symbol:  sig.Symbol,
			Trigger: string(sig.TriggerType),
			Shares:  sig.Shares,
			Price:   sig.CurrentPrice,
			Reason:  sig.Reason,
			Time:    now,
		}))

		if !r.autoExit {
			continue
		}
		if err := r.broker.ClosePosition(ctx, sig.Symbol); err != nil {
			r.log.Error().Err(err).Str("symbol", sig.Symbol).Msg("close position failed")
			errs = append(errs, fmt.Errorf("close %s: %w", sig.Symbol, err))
			continue
		}
		r.coord.ClosePosition(sig.Symbol)
		res.Closed = append(res.Closed, sig.Symbol)
		errs = append(errs, r.journal.RecordEvent(journal.EventRecord{
			EventID: id.At(now),
			Kind:    journal.KindPositionClosed,
			Symbol:  sig.Symbol,
			Trigger: string(sig.TriggerType),
			Shares:  sig.Shares,
			Price:   sig.CurrentPrice,
			Reason:  sig.Reason,
			Time:    now,
		}))
	}

	if len(res.Closed) > 0 {
		if acct, err := r.broker.Account(ctx); err == nil {
			r.lastAcct = acct
		}
	}

	pm := r.coord.PortfolioMetrics()
	errs = append(errs, r.journal.RecordEquity(journal.EquitySnapshot{
		Time:           now,
		PortfolioValue: pm.PortfolioValue,
		PeakValue:      pm.PeakValue,
		DailyPnLPct:    pm.DailyPnLPct,
		Drawdown:       pm.DrawdownFromPeak,
		BreakerActive:  pm.CircuitBreakerTriggered,
	}))

	if r.metrics != nil {
		r.metrics.ObserveSummary(r.coord.Summary())
		r.metrics.ObservePortfolio(pm)
		r.metrics.ObservePositions(r.coord.PositionRisks())
	}

	r.log.Debug().
		Float64("value", res.PortfolioValue).
		Int("signals", len(res.Signals)).
		Int("closed", len(res.Closed)).
		Msg("step")

	if err := errors.Join(errs...); err != nil {
		r.log.Error().Err(err).Msg("step completed with errors")
		return res, err
	}
	return res, nil
}

// rollDay resets the daily baseline when now falls on a later calendar day
// than the previous step. The closing account of the previous day is handed
// to the performance tracker first.
func (r *Runner) rollDay(now time.Time) bool {
	day := truncateDay(now)
	if !r.seen {
		r.seen = true
		r.day = day
		return false
	}
	if !day.After(r.day) {
		return false
	}

	r.recordDay()
	r.coord.ResetDailyTracking()
	r.day = day
	return true
}

func (r *Runner) recordDay() {
	if r.tracker == nil || r.lastAcct.Equity == 0 {
		return
	}
	r.tracker.RecordDaily(r.day, r.lastAcct.Equity, r.lastAcct.Cash, r.lastAcct.Equity-r.lastAcct.Cash, nil)
}

// FinishDay records the current day into the tracker. Call it once after the
// final step of a replay.
func (r *Runner) FinishDay() {
	if r.seen {
		r.recordDay()
	}
}

// Run steps immediately and then on every interval until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info().Dur("interval", r.interval).Bool("auto_exit", r.autoExit).Msg("monitor started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Step(ctx); err != nil {
			r.log.Warn().Err(err).Msg("monitor step failed")
		}

		select {
		case <-ctx.Done():
			r.log.Info().Msg("monitor stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
