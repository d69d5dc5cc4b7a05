package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

type CSVJournal struct {
	events *csv.Writer
	equity *csv.Writer
	vf, ef *os.File
}

var _ Journal = (*CSVJournal)(nil)

func NewCSV(eventsPath, equityPath string) (*CSVJournal, error) {
	vf, err := os.Create(eventsPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		_ = vf.Close()
		return nil, err
	}

	vw := csv.NewWriter(vf)
	ew := csv.NewWriter(ef)

	if err := vw.Write([]string{"event_id", "kind", "symbol", "trigger", "shares", "price", "reason", "time"}); err != nil {
		return nil, err
	}
	if err := ew.Write([]string{"time", "portfolio_value", "peak_value", "daily_pnl_pct", "drawdown", "breaker_active"}); err != nil {
		return nil, err
	}

	vw.Flush()
	if err := vw.Error(); err != nil {
		return nil, err
	}
	ew.Flush()
	if err := ew.Error(); err != nil {
		return nil, err
	}

	return &CSVJournal{vw, ew, vf, ef}, nil
}

func (j *CSVJournal) RecordEvent(e EventRecord) error {
	err := j.events.Write([]string{
		e.EventID,
		string(e.Kind),
		e.Symbol,
		e.Trigger,
		strconv.Itoa(e.Shares),
		f(e.Price),
		e.Reason,
		e.Time.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	j.events.Flush()
	return j.events.Error()
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	err := j.equity.Write([]string{
		e.Time.UTC().Format(time.RFC3339),
		f(e.PortfolioValue),
		f(e.PeakValue),
		f(e.DailyPnLPct),
		f(e.Drawdown),
		strconv.FormatBool(e.BreakerActive),
	})
	if err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) Close() error {
	j.events.Flush()
	if err := j.events.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}

	if err := j.vf.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
