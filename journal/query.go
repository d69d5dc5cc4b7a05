package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const eventColumns = `event_id, kind, symbol, trigger_type, shares, price, reason, time`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (EventRecord, error) {
	var (
		rec  EventRecord
		kind string
	)
	err := s.Scan(
		&rec.EventID,
		&kind,
		&rec.Symbol,
		&rec.Trigger,
		&rec.Shares,
		&rec.Price,
		&rec.Reason,
		&rec.Time,
	)
	rec.Kind = EventKind(kind)
	return rec, err
}

// GetEvent returns a single event by ID.
func (j *SQLite) GetEvent(eventID string) (EventRecord, error) {
	row := j.db.QueryRow(`SELECT `+eventColumns+` FROM events WHERE event_id = ?`, eventID)

	rec, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EventRecord{}, fmt.Errorf("event %q not found", eventID)
		}
		return EventRecord{}, err
	}
	return rec, nil
}

// ListEventsBetween returns events whose time is within [start, end).
func (j *SQLite) ListEventsBetween(start, end time.Time) ([]EventRecord, error) {
	rows, err := j.db.Query(`
		SELECT `+eventColumns+`
		FROM events
		WHERE time >= ? AND time < ?
		ORDER BY time ASC, event_id ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquityBetween returns snapshots whose time is within [start, end).
func (j *SQLite) ListEquityBetween(start, end time.Time) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT time, portfolio_value, peak_value, daily_pnl_pct, drawdown, breaker_active
		FROM equity
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var rec EquitySnapshot
		if err := rows.Scan(
			&rec.Time,
			&rec.PortfolioValue,
			&rec.PeakValue,
			&rec.DailyPnLPct,
			&rec.Drawdown,
			&rec.BreakerActive,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
