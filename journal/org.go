package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatEventOrg renders one event as an Org-mode heading with a
// properties drawer.
func FormatEventOrg(e EventRecord) string {
	var b strings.Builder

	title := string(e.Kind)
	if e.Symbol != "" {
		title += ": " + e.Symbol
	}
	fmt.Fprintf(&b, "** %s (%s)\n", title, shortID(e.EventID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ID: %s\n", e.EventID)
	fmt.Fprintf(&b, ":KIND: %s\n", e.Kind)
	if e.Symbol != "" {
		fmt.Fprintf(&b, ":SYMBOL: %s\n", e.Symbol)
	}
	if e.Trigger != "" {
		fmt.Fprintf(&b, ":TRIGGER: %s\n", e.Trigger)
	}
	if e.Shares != 0 {
		fmt.Fprintf(&b, ":SHARES: %d\n", e.Shares)
	}
	if e.Price != 0 {
		fmt.Fprintf(&b, ":PRICE: %.2f\n", e.Price)
	}
	fmt.Fprintf(&b, ":TIME: %s\n", e.Time.UTC().Format(time.RFC3339))
	b.WriteString(":END:\n")
	if e.Reason != "" {
		b.WriteString(e.Reason)
		b.WriteString("\n")
	}
	return b.String()
}

// FormatEventsOrg renders events under a single top-level heading.
func FormatEventsOrg(events []EventRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "* Risk events (%d)\n", len(events))
	for _, e := range events {
		b.WriteString(FormatEventOrg(e))
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
