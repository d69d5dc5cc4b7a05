// Package display renders risk state as terminal tables.
package display

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/performance"
	"github.com/rustyeddy/papertrader/risk"
)

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

func pct(v float64) string    { return fmt.Sprintf("%+.2f%%", v*100) }
func money(v float64) string  { return fmt.Sprintf("$%.2f", v) }
func weight(v float64) string { return fmt.Sprintf("%.2f%%", v*100) }

// Summary prints the coordinator summary as a two column table.
func Summary(w io.Writer, s risk.Summary) {
	t := newTable(w, "RISK SUMMARY")

	breaker := "inactive"
	if s.CircuitBreakerActive {
		breaker = "ACTIVE"
		if s.CircuitBreakerReason != nil {
			breaker += ": " + *s.CircuitBreakerReason
		}
	}

	t.AppendRows([]table.Row{
		{"Portfolio Value", money(s.PortfolioValue)},
		{"Daily P&L", pct(s.DailyPnLPct)},
		{"Drawdown", pct(s.DrawdownFromPeak)},
		{"Positions Tracked", s.PositionsTracked},
		{"Circuit Breaker", breaker},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Stop Loss", weight(s.Thresholds.StopLossPct)},
		{"Take Profit", weight(s.Thresholds.TakeProfitPct)},
		{"Daily Loss Limit", weight(s.Thresholds.DailyLossLimit)},
		{"Max Drawdown", weight(s.Thresholds.MaxDrawdown)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, Align: text.AlignLeft},
	})
	t.Render()
}

func Positions(w io.Writer, risks []risk.PositionRisk) {
	t := newTable(w, "POSITIONS")
	t.AppendHeader(table.Row{"Symbol", "Shares", "Entry", "Current", "Peak", "P&L", "From Peak", "Days"})
	for _, p := range risks {
		t.AppendRow(table.Row{
			p.Symbol, p.Shares, money(p.EntryPrice), money(p.CurrentPrice), money(p.PeakPrice),
			pct(p.PnLPct), pct(p.DrawdownFromPeak), p.DaysHeld,
		})
	}
	if len(risks) == 0 {
		t.AppendRow(table.Row{"(none)"})
	}
	t.SetColumnConfigs(rightAligned(2, 8))
	t.Render()
}

func Signals(w io.Writer, signals []risk.ExitSignal) {
	t := newTable(w, "EXIT SIGNALS")
	t.AppendHeader(table.Row{"Symbol", "Trigger", "Shares", "Price", "Reason"})
	for _, s := range signals {
		t.AppendRow(table.Row{s.Symbol, string(s.TriggerType), s.Shares, money(s.CurrentPrice), s.Reason})
	}
	if len(signals) == 0 {
		t.AppendRow(table.Row{"(none)"})
	}
	t.Render()
}

// CheckResult prints original and adjusted weights side by side followed by
// violations and adjustments.
func CheckResult(w io.Writer, res risk.RiskCheckResult) {
	t := newTable(w, fmt.Sprintf("WEIGHT CHECK: %s", strings.ToUpper(string(res.Action))))
	t.AppendHeader(table.Row{"Symbol", "Original", "Adjusted", "Change"})

	symbols := make(map[string]struct{})
	for s := range res.OriginalWeights {
		symbols[s] = struct{}{}
	}
	for s := range res.AdjustedWeights {
		symbols[s] = struct{}{}
	}
	keys := make([]string, 0, len(symbols))
	for s := range symbols {
		keys = append(keys, s)
	}
	sort.Strings(keys)

	for _, s := range keys {
		o, a := res.OriginalWeights[s], res.AdjustedWeights[s]
		t.AppendRow(table.Row{s, weight(o), weight(a), pct(a - o)})
	}
	t.AppendFooter(table.Row{"Total", weight(res.OriginalWeights.Total()), weight(res.AdjustedWeights.Total()), ""})
	t.SetColumnConfigs(rightAligned(2, 4))
	t.Render()

	for _, v := range res.Violations {
		fmt.Fprintf(w, "  violation:  %s\n", v)
	}
	for _, a := range res.Adjustments {
		fmt.Fprintf(w, "  adjustment: %s\n", a)
	}
	fmt.Fprintln(w, res.Message)
}

func Orders(w io.Writer, decisions []risk.OrderDecision) {
	t := newTable(w, "ORDER CHECK")
	t.AppendHeader(table.Row{"Symbol", "Action", "Value", "Projected", "Result"})
	for _, d := range decisions {
		result := "approved"
		if !d.Allowed {
			codes := make([]string, 0, len(d.Violations))
			for _, v := range d.Violations {
				codes = append(codes, v.Code)
			}
			result = strings.Join(codes, ", ")
		}
		t.AppendRow(table.Row{d.Order.Symbol, string(d.Order.Action), money(d.OrderValue), weight(d.ProjectedWeight), result})
	}
	t.Render()
}

func Performance(w io.Writer, m performance.Metrics) {
	t := newTable(w, "PERFORMANCE")
	t.AppendRows([]table.Row{
		{"Days", m.NumDays},
		{"Current Value", money(m.CurrentValue)},
		{"Total Return", pct(m.TotalReturn)},
		{"Total P&L", money(m.TotalPnL)},
		{"Sharpe Ratio", fmt.Sprintf("%.2f", m.SharpeRatio)},
		{"Max Drawdown", pct(m.MaxDrawdown)},
		{"Win Rate", weight(m.WinRate)},
		{"Daily Mean", pct(m.DailyReturnsMean)},
		{"Daily Std Dev", weight(m.DailyReturnsStd)},
		{"Peak Value", money(m.PeakValue)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, Align: text.AlignLeft},
		{Number: 2, WidthMin: 14, Align: text.AlignRight},
	})
	t.Render()
}

func Events(w io.Writer, events []journal.EventRecord) {
	t := newTable(w, fmt.Sprintf("RISK EVENTS (%d)", len(events)))
	t.AppendHeader(table.Row{"Time", "Kind", "Symbol", "Trigger", "Price", "Reason"})
	for _, e := range events {
		t.AppendRow(table.Row{
			e.Time.UTC().Format("2006-01-02 15:04:05"), string(e.Kind), e.Symbol, e.Trigger, money(e.Price), e.Reason,
		})
	}
	t.Render()
}

func rightAligned(from, to int) []table.ColumnConfig {
	cfgs := []table.ColumnConfig{{Number: 1, Align: text.AlignLeft}}
	for i := from; i <= to; i++ {
		cfgs = append(cfgs, table.ColumnConfig{Number: i, Align: text.AlignRight})
	}
	return cfgs
}
