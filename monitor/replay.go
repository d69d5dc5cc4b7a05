package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/papertrader/pricing"
)

// QuoteFeed yields quotes in time order; ok is false once exhausted.
type QuoteFeed interface {
	Next() (q pricing.Quote, ok bool, err error)
}

// Replay loads quotes from feed into store and steps once per distinct
// timestamp, with the step clock following the feed. The final day is
// recorded into the tracker before returning.
func (r *Runner) Replay(ctx context.Context, feed QuoteFeed, store *pricing.QuoteStore) (int, error) {
	var (
		cur     time.Time
		pending bool
		steps   int
	)
	r.now = func() time.Time { return cur }

	step := func() error {
		if _, err := r.Step(ctx); err != nil {
			return fmt.Errorf("step at %s: %w", cur.Format(time.RFC3339), err)
		}
		steps++
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return steps, err
		}
		q, ok, err := feed.Next()
		if err != nil {
			return steps, fmt.Errorf("feed: %w", err)
		}
		if !ok {
			break
		}
		if pending && !q.Time.Equal(cur) {
			if err := step(); err != nil {
				return steps, err
			}
		}
		cur = q.Time
		store.Set(q)
		pending = true
	}

	if pending {
		if err := step(); err != nil {
			return steps, err
		}
	}
	r.FinishDay()
	return steps, nil
}
