package monitor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/performance"
	"github.com/rustyeddy/papertrader/pricing"
	"github.com/rustyeddy/papertrader/risk"
)

const replayCSV = `time,symbol,price
2024-03-04T14:30:00Z,AAPL,100
2024-03-04T14:30:00Z,MSFT,200
2024-03-04T15:30:00Z,AAPL,104
2024-03-04T16:30:00Z,AAPL,111
2024-03-05T14:30:00Z,MSFT,190
2024-03-05T15:30:00Z,MSFT,193
`

func TestReplayStepsPerTimestamp(t *testing.T) {
	tracker := performance.NewTracker(100000, 0.04)
	f := newFixture(t, 70000, true, tracker, nil)
	f.acct.Seed("AAPL", 100, 100)
	f.acct.Seed("MSFT", 100, 200)

	feed := pricing.NewCSVFeed(strings.NewReader(replayCSV), time.Time{}, time.Time{})
	steps, err := f.runner.Replay(context.Background(), feed, f.acct.Quotes())
	require.NoError(t, err)
	assert.Equal(t, 5, steps)

	assert.Empty(t, f.coord.TrackedSymbols(), "AAPL hit take-profit and MSFT hit stop-loss")
	assert.InDelta(t, 1100-1000, f.acct.RealizedPnL(), 1e-9)

	var triggers []string
	for _, e := range f.journal.events {
		if e.Kind == journal.KindPositionClosed {
			triggers = append(triggers, e.Symbol+":"+e.Trigger)
		}
	}
	assert.Equal(t, []string{"AAPL:" + string(risk.TriggerTakeProfit), "MSFT:" + string(risk.TriggerStopLoss)}, triggers)
	assert.Contains(t, f.journal.kinds(), journal.KindDailyReset)

	hist := tracker.History()
	require.Len(t, hist, 2, "one record per replayed day")
	assert.Equal(t, 4, hist[0].Date.Day())
	assert.Equal(t, 5, hist[1].Date.Day())
}

func TestReplayFeedError(t *testing.T) {
	f := newFixture(t, 100000, false, nil, nil)
	feed := pricing.NewCSVFeed(strings.NewReader("2024-03-04T14:30:00Z,AAPL,abc\n"), time.Time{}, time.Time{})

	_, err := f.runner.Replay(context.Background(), feed, f.acct.Quotes())
	assert.ErrorContains(t, err, "feed")
}
