package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()

	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	eventsPath := filepath.Join(dir, "events.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(eventsPath, equityPath)
	require.NoError(t, err)

	at := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	require.NoError(t, j.RecordEvent(EventRecord{
		EventID: "E1",
		Kind:    KindExitSignal,
		Symbol:  "AAPL",
		Trigger: "take_profit",
		Shares:  10,
		Price:   111,
		Reason:  "Take-profit triggered: 11.00% gain (threshold: 10.00%)",
		Time:    at,
	}))
	require.NoError(t, j.RecordEquity(EquitySnapshot{
		Time:           at,
		PortfolioValue: 101000,
		PeakValue:      101000,
		DailyPnLPct:    0.01,
	}))
	require.NoError(t, j.Close())

	events := readCSV(t, eventsPath)
	require.Len(t, events, 2)
	assert.Equal(t, []string{"event_id", "kind", "symbol", "trigger", "shares", "price", "reason", "time"}, events[0])
	assert.Equal(t, []string{
		"E1", "exit_signal", "AAPL", "take_profit", "10", "111.000000",
		"Take-profit triggered: 11.00% gain (threshold: 10.00%)", "2024-01-02T15:04:05Z",
	}, events[1])

	equity := readCSV(t, equityPath)
	require.Len(t, equity, 2)
	assert.Equal(t, []string{"time", "portfolio_value", "peak_value", "daily_pnl_pct", "drawdown", "breaker_active"}, equity[0])
	assert.Equal(t, []string{"2024-01-02T15:04:05Z", "101000.000000", "101000.000000", "0.010000", "0.000000", "false"}, equity[1])
}

func TestCSVJournalBadPath(t *testing.T) {
	t.Parallel()

	_, err := NewCSV(filepath.Join(t.TempDir(), "missing", "events.csv"), "equity.csv")
	assert.Error(t, err)
}
