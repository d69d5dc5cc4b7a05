package journal

const Schema = `
CREATE TABLE IF NOT EXISTS events (
	event_id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	symbol TEXT NOT NULL,
	trigger_type TEXT NOT NULL,
	shares INTEGER NOT NULL,
	price REAL NOT NULL,
	reason TEXT NOT NULL,
	time DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_time ON events(time);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	portfolio_value REAL NOT NULL,
	peak_value REAL NOT NULL,
	daily_pnl_pct REAL NOT NULL,
	drawdown REAL NOT NULL,
	breaker_active INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
