package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

var _ Journal = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordEvent(e EventRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO events
		(event_id, kind, symbol, trigger_type, shares, price, reason, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, string(e.Kind), e.Symbol, e.Trigger, e.Shares, e.Price, e.Reason, e.Time.UTC(),
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, portfolio_value, peak_value, daily_pnl_pct, drawdown, breaker_active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Time.UTC(), e.PortfolioValue, e.PeakValue, e.DailyPnLPct, e.Drawdown, e.BreakerActive,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
