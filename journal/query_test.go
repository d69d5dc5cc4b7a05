package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEvent(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	at := time.Date(2024, 4, 10, 15, 30, 0, 0, time.UTC)
	want := EventRecord{
		EventID: "01HV0000000000000000000001",
		Kind:    KindExitSignal,
		Symbol:  "AAPL",
		Trigger: "stop_loss",
		Shares:  10,
		Price:   96.5,
		Reason:  "Stop-loss triggered: -3.50% loss (threshold: -3.00%)",
		Time:    at,
	}
	require.NoError(t, j.RecordEvent(want))

	got, err := j.GetEvent(want.EventID)
	require.NoError(t, err)

	assert.Equal(t, want.EventID, got.EventID)
	assert.Equal(t, want.Kind, got.Kind)
	assert.Equal(t, want.Symbol, got.Symbol)
	assert.Equal(t, want.Trigger, got.Trigger)
	assert.Equal(t, want.Shares, got.Shares)
	assert.InDelta(t, want.Price, got.Price, 1e-9)
	assert.Equal(t, want.Reason, got.Reason)
	assert.True(t, got.Time.Equal(want.Time))
}

func TestGetEventNotFound(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	_, err := j.GetEvent("nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListEventsBetween(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	day := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	events := []EventRecord{
		{EventID: "E0", Kind: KindExitSignal, Symbol: "AAPL", Time: day.Add(-time.Minute)},
		{EventID: "E2", Kind: KindCircuitBreaker, Time: day.Add(15 * time.Hour)},
		{EventID: "E1", Kind: KindExitSignal, Symbol: "MSFT", Time: day.Add(10 * time.Hour)},
		{EventID: "E3", Kind: KindDailyReset, Time: day.Add(24 * time.Hour)},
	}
	for _, e := range events {
		require.NoError(t, j.RecordEvent(e))
	}

	got, err := j.ListEventsBetween(day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "E1", got[0].EventID)
	assert.Equal(t, "E2", got[1].EventID)

	none, err := j.ListEventsBetween(day.Add(48*time.Hour), day.Add(72*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}
