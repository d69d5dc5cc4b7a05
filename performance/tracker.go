package performance

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	tradingDays = 252

	// sharpeMinDays is how many recorded days must precede a day before a
	// rolling Sharpe ratio is reported for it.
	sharpeMinDays = 20
)

// Daily is one end-of-day snapshot.
type Daily struct {
	Date             time.Time `json:"date"`
	PortfolioValue   float64   `json:"portfolio_value"`
	Cash             float64   `json:"cash"`
	PositionsValue   float64   `json:"positions_value"`
	DailyPnL         float64   `json:"daily_pnl"`
	DailyReturn      float64   `json:"daily_return"`
	CumulativeReturn float64   `json:"cumulative_return"`
	BenchmarkReturn  *float64  `json:"benchmark_return,omitempty"`
	SharpeRatio      *float64  `json:"sharpe_ratio,omitempty"`
	Drawdown         float64   `json:"drawdown"`
}

// Metrics summarises a range of history.
type Metrics struct {
	TotalReturn      float64   `json:"total_return"`
	DailyReturnsMean float64   `json:"daily_returns_mean"`
	DailyReturnsStd  float64   `json:"daily_returns_std"`
	SharpeRatio      float64   `json:"sharpe_ratio"`
	MaxDrawdown      float64   `json:"max_drawdown"`
	TotalPnL         float64   `json:"total_pnl"`
	WinRate          float64   `json:"win_rate"`
	NumDays          int       `json:"num_days"`
	CurrentValue     float64   `json:"current_value"`
	PeakValue        float64   `json:"peak_value"`
	PeakDate         time.Time `json:"peak_date"`
}

// DrawdownPoint is one row of the running drawdown series.
type DrawdownPoint struct {
	Date           time.Time `json:"date"`
	PortfolioValue float64   `json:"portfolio_value"`
	PeakValue      float64   `json:"peak_value"`
	Drawdown       float64   `json:"drawdown"`
}

// BenchmarkComparison contrasts the portfolio with a benchmark return series.
type BenchmarkComparison struct {
	PortfolioReturn float64 `json:"portfolio_return"`
	BenchmarkReturn float64 `json:"benchmark_return"`
	Alpha           float64 `json:"alpha"`
	TrackingError   float64 `json:"tracking_error"`
	NumDays         int     `json:"num_days"`
}

// Tracker accumulates daily snapshots. It is safe for concurrent use.
type Tracker struct {
	mu sync.Mutex

	initialCapital float64
	riskFreeRate   float64
	dailyRiskFree  float64

	history  []Daily
	peak     float64
	peakDate time.Time
}

// NewTracker uses riskFreeRate as an annual rate, e.g. 0.04.
func NewTracker(initialCapital, riskFreeRate float64) *Tracker {
	return &Tracker{
		initialCapital: initialCapital,
		riskFreeRate:   riskFreeRate,
		dailyRiskFree:  math.Pow(1+riskFreeRate, 1.0/tradingDays) - 1,
		peak:           initialCapital,
	}
}

// DailyRiskFree returns the de-annualised risk-free rate.
func (t *Tracker) DailyRiskFree() float64 {
	return t.dailyRiskFree
}

// RecordDaily appends the snapshot for date. benchmark may be nil.
func (t *Tracker) RecordDaily(date time.Time, portfolioValue, cash, positionsValue float64, benchmark *float64) Daily {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.initialCapital
	if n := len(t.history); n > 0 {
		prev = t.history[n-1].PortfolioValue
	}

	d := Daily{
		Date:            date,
		PortfolioValue:  portfolioValue,
		Cash:            cash,
		PositionsValue:  positionsValue,
		DailyPnL:        portfolioValue - prev,
		BenchmarkReturn: benchmark,
	}
	if prev > 0 {
		d.DailyReturn = d.DailyPnL / prev
	}
	if t.initialCapital > 0 {
		d.CumulativeReturn = (portfolioValue - t.initialCapital) / t.initialCapital
	}

	if portfolioValue > t.peak {
		t.peak = portfolioValue
		t.peakDate = date
	}
	if t.peak > 0 {
		d.Drawdown = (portfolioValue - t.peak) / t.peak
	}

	hasWindow := len(t.history) >= sharpeMinDays
	t.history = append(t.history, d)
	if hasWindow {
		s := t.sharpeLocked(tradingDays)
		t.history[len(t.history)-1].SharpeRatio = &s
		d.SharpeRatio = &s
	}
	return d
}

// sharpeLocked annualises the mean excess return over the sample standard
// deviation of the last window days.
func (t *Tracker) sharpeLocked(window int) float64 {
	recent := t.history
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}
	if len(recent) < 2 {
		return 0
	}

	excess := make([]float64, len(recent))
	for i, d := range recent {
		excess[i] = d.DailyReturn - t.dailyRiskFree
	}
	mean, std := stat.MeanStdDev(excess, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std * math.Sqrt(tradingDays)
}

// Metrics summarises history with dates in [from, to]. Zero bounds are open.
func (t *Tracker) Metrics(from, to time.Time) Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	var hist []Daily
	for _, d := range t.history {
		if !from.IsZero() && d.Date.Before(from) {
			continue
		}
		if !to.IsZero() && d.Date.After(to) {
			continue
		}
		hist = append(hist, d)
	}
	if len(hist) == 0 {
		return Metrics{}
	}

	returns := make([]float64, len(hist))
	var pnl float64
	wins := 0
	maxDD := 0.0
	for i, d := range hist {
		returns[i] = d.DailyReturn
		pnl += d.DailyPnL
		if d.DailyReturn > 0 {
			wins++
		}
		maxDD = math.Min(maxDD, d.Drawdown)
	}

	latest := hist[len(hist)-1]
	m := Metrics{
		TotalReturn:  latest.CumulativeReturn,
		MaxDrawdown:  maxDD,
		TotalPnL:     pnl,
		WinRate:      float64(wins) / float64(len(hist)),
		NumDays:      len(hist),
		CurrentValue: latest.PortfolioValue,
		PeakValue:    t.peak,
		PeakDate:     t.peakDate,
	}
	if len(returns) > 1 {
		m.DailyReturnsMean, m.DailyReturnsStd = stat.PopMeanStdDev(returns, nil)
	} else {
		m.DailyReturnsMean = returns[0]
	}
	if latest.SharpeRatio != nil {
		m.SharpeRatio = *latest.SharpeRatio
	}
	return m
}

// Latest returns the most recent snapshot.
func (t *Tracker) Latest() (Daily, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.history) == 0 {
		return Daily{}, false
	}
	return t.history[len(t.history)-1], true
}

// History returns a copy of every snapshot.
func (t *Tracker) History() []Daily {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Daily(nil), t.history...)
}

// DrawdownSeries recomputes the running peak from the initial capital.
func (t *Tracker) DrawdownSeries() []DrawdownPoint {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]DrawdownPoint, 0, len(t.history))
	peak := t.initialCapital
	for _, d := range t.history {
		peak = math.Max(peak, d.PortfolioValue)
		p := DrawdownPoint{Date: d.Date, PortfolioValue: d.PortfolioValue, PeakValue: peak}
		if peak > 0 {
			p.Drawdown = (d.PortfolioValue - peak) / peak
		}
		out = append(out, p)
	}
	return out
}

// CompareToBenchmark compounds the benchmark over recorded days found in
// benchmark, keyed by YYYY-MM-DD.
func (t *Tracker) CompareToBenchmark(benchmark map[string]float64) BenchmarkComparison {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.history) == 0 {
		return BenchmarkComparison{}
	}

	var (
		cum    float64
		excess []float64
	)
	for _, d := range t.history {
		r, ok := benchmark[d.Date.Format("2006-01-02")]
		if !ok {
			continue
		}
		cum = (1+cum)*(1+r) - 1
		excess = append(excess, d.DailyReturn-r)
	}

	out := BenchmarkComparison{
		PortfolioReturn: t.history[len(t.history)-1].CumulativeReturn,
		BenchmarkReturn: cum,
		NumDays:         len(t.history),
	}
	out.Alpha = out.PortfolioReturn - cum
	if len(excess) > 0 {
		_, out.TrackingError = stat.PopMeanStdDev(excess, nil)
	}
	return out
}

// Reset clears history. A positive capital replaces the initial capital.
func (t *Tracker) Reset(capital float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if capital > 0 {
		t.initialCapital = capital
	}
	t.history = nil
	t.peak = t.initialCapital
	t.peakDate = time.Time{}
}
