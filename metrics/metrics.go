// Package metrics exposes the risk engine's state as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rustyeddy/papertrader/risk"
)

const namespace = "papertrader"

// Recorder owns the collectors and the registry they are registered with.
type Recorder struct {
	reg *prometheus.Registry

	portfolioValue   prometheus.Gauge
	peakValue        prometheus.Gauge
	dailyPnL         prometheus.Gauge
	drawdown         prometheus.Gauge
	breakerActive    prometheus.Gauge
	positionsTracked prometheus.Gauge
	positionPnL      *prometheus.GaugeVec

	exitSignals    *prometheus.CounterVec
	weightChecks   *prometheus.CounterVec
	ordersRejected *prometheus.CounterVec
	breakerTrips   prometheus.Counter
}

// NewRecorder registers every collector with reg. A nil reg gets a fresh
// registry.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	r := &Recorder{
		reg:              reg,
		portfolioValue:   gauge("portfolio_value", "Current portfolio value"),
		peakValue:        gauge("portfolio_peak_value", "Highest portfolio value observed"),
		dailyPnL:         gauge("daily_pnl_ratio", "Change since the daily baseline as a fraction"),
		drawdown:         gauge("drawdown_ratio", "Drawdown from the portfolio peak as a fraction"),
		breakerActive:    gauge("circuit_breaker_active", "1 when the circuit breaker has tripped"),
		positionsTracked: gauge("positions_tracked", "Number of positions under monitoring"),
		positionPnL: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "position_pnl_ratio",
				Help:      "Unrealised return of a tracked position",
			},
			[]string{"symbol"},
		),
		exitSignals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exit_signals_total",
				Help:      "Exit signals emitted by the position monitor",
			},
			[]string{"trigger"},
		),
		weightChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "weight_checks_total",
				Help:      "Weight validations by resulting action",
			},
			[]string{"action"},
		),
		ordersRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_rejected_total",
				Help:      "Orders rejected by violation code",
			},
			[]string{"code"},
		),
		breakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_trips_total",
			Help:      "Times the circuit breaker tripped",
		}),
	}

	reg.MustRegister(
		r.portfolioValue,
		r.peakValue,
		r.dailyPnL,
		r.drawdown,
		r.breakerActive,
		r.positionsTracked,
		r.positionPnL,
		r.exitSignals,
		r.weightChecks,
		r.ordersRejected,
		r.breakerTrips,
	)
	return r
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveSummary copies a coordinator summary into the gauges.
func (r *Recorder) ObserveSummary(s risk.Summary) {
	r.portfolioValue.Set(s.PortfolioValue)
	r.dailyPnL.Set(s.DailyPnLPct)
	r.drawdown.Set(s.DrawdownFromPeak)
	r.positionsTracked.Set(float64(s.PositionsTracked))
	if s.CircuitBreakerActive {
		r.breakerActive.Set(1)
	} else {
		r.breakerActive.Set(0)
	}
}

// ObservePortfolio records the peak, which the summary does not carry.
func (r *Recorder) ObservePortfolio(m risk.PortfolioMetrics) {
	r.peakValue.Set(m.PeakValue)
}

// ObservePositions replaces the per-symbol gauges so closed positions drop out.
func (r *Recorder) ObservePositions(risks []risk.PositionRisk) {
	r.positionPnL.Reset()
	for _, p := range risks {
		r.positionPnL.WithLabelValues(p.Symbol).Set(p.PnLPct)
	}
}

func (r *Recorder) RecordExitSignal(sig risk.ExitSignal) {
	r.exitSignals.WithLabelValues(string(sig.TriggerType)).Inc()
}

func (r *Recorder) RecordWeightCheck(res risk.RiskCheckResult) {
	r.weightChecks.WithLabelValues(string(res.Action)).Inc()
}

// RecordOrderDecisions counts each violation of every rejected order.
func (r *Recorder) RecordOrderDecisions(decisions []risk.OrderDecision) {
	for _, d := range decisions {
		if d.Allowed {
			continue
		}
		for _, v := range d.Violations {
			r.ordersRejected.WithLabelValues(v.Code).Inc()
		}
	}
}

func (r *Recorder) RecordBreakerTrip() {
	r.breakerTrips.Inc()
}
