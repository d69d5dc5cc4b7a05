package pricing

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// CSVFeed replays quotes from a file with rows of
//
//	time,symbol,price
//
// where time is RFC3339. A header row is allowed. Blank symbols are skipped.
type CSVFeed struct {
	f    io.Closer
	r    *csv.Reader
	from time.Time
	to   time.Time

	sawFirst bool
}

func OpenCSVFeed(path string, from, to time.Time) (*CSVFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	feed := NewCSVFeed(f, from, to)
	feed.f = f
	return feed, nil
}

// NewCSVFeed reads from r. Zero from/to leave that side of the window open.
func NewCSVFeed(r io.Reader, from, to time.Time) *CSVFeed {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return &CSVFeed{r: cr, from: from, to: to}
}

func (f *CSVFeed) Close() error {
	if f.f != nil {
		return f.f.Close()
	}
	return nil
}

// Next returns the next quote inside the window; ok is false at EOF.
func (f *CSVFeed) Next() (Quote, bool, error) {
	for {
		row, err := f.r.Read()
		if err == io.EOF {
			return Quote{}, false, nil
		}
		if err != nil {
			return Quote{}, false, err
		}
		if len(row) == 0 {
			continue
		}

		if !f.sawFirst {
			f.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}
		if len(row) < 3 {
			return Quote{}, false, fmt.Errorf("expected time,symbol,price: %v", row)
		}

		q, ok, err := parseQuoteRow(row)
		if err != nil {
			return Quote{}, false, err
		}
		if !ok || !inRange(q.Time, f.from, f.to) {
			continue
		}
		return q, true, nil
	}
}

func parseQuoteRow(row []string) (Quote, bool, error) {
	ts := strings.TrimSpace(row[0])
	sym := strings.TrimSpace(row[1])
	if ts == "" || sym == "" {
		return Quote{}, false, nil
	}

	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Quote{}, false, fmt.Errorf("bad time %q: %w", ts, err)
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
	if err != nil {
		return Quote{}, false, fmt.Errorf("bad price %q: %w", row[2], err)
	}
	if price <= 0 {
		return Quote{}, false, fmt.Errorf("non-positive price %v for %s", price, sym)
	}
	return Quote{Symbol: sym, Time: t, Last: price}, true, nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
