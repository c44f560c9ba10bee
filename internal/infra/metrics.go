package infra

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fit outcomes recorded by the trainer.
const (
	OutcomeFitted   = "fitted"
	OutcomeFallback = "fallback"
)

// Metrics holds the pipeline's prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	fits          *prometheus.CounterVec
	fitDuration   *prometheus.HistogramVec
	assessments   *prometheus.CounterVec
	fallbackUses  *prometheus.CounterVec
	backtestSkips prometheus.Counter
}

// MetricsConfig configures metric registration.
type MetricsConfig struct {
	Namespace string
	// Registry receives the collectors. Nil registers into a fresh
	// private registry so repeated construction never collides.
	Registry prometheus.Registerer
}

// NewMetrics creates and registers the collectors.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	ns := cfg.Namespace
	if ns == "" {
		ns = "ratingrisk"
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		fits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "trainer",
			Name:      "fits_total",
			Help:      "Hazard model fits by transition type and outcome.",
		}, []string{"transition", "outcome"}),
		fitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "trainer",
			Name:      "fit_duration_seconds",
			Help:      "Wall-clock time spent fitting one transition type.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"transition"}),
		assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scorer",
			Name:      "assessments_total",
			Help:      "Risk assessments by classification.",
		}, []string{"classification"}),
		fallbackUses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scorer",
			Name:      "fallback_total",
			Help:      "Transition hazards computed with the fallback estimator.",
		}, []string{"transition"}),
		backtestSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "backtest",
			Name:      "skipped_splits_total",
			Help:      "Backtest splits skipped because of empty windows or training errors.",
		}),
	}

	for _, c := range []prometheus.Collector{m.fits, m.fitDuration, m.assessments, m.fallbackUses, m.backtestSkips} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveFit records one transition-type fit.
func (m *Metrics) ObserveFit(transition, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.fits.WithLabelValues(transition, outcome).Inc()
	m.fitDuration.WithLabelValues(transition).Observe(d.Seconds())
}

// ObserveAssessment records one scored firm.
func (m *Metrics) ObserveAssessment(classification string) {
	if m == nil {
		return
	}
	m.assessments.WithLabelValues(classification).Inc()
}

// ObserveFallback records one fallback hazard computation.
func (m *Metrics) ObserveFallback(transition string) {
	if m == nil {
		return
	}
	m.fallbackUses.WithLabelValues(transition).Inc()
}

// ObserveSkippedSplit records one skipped backtest split.
func (m *Metrics) ObserveSkippedSplit() {
	if m == nil {
		return
	}
	m.backtestSkips.Inc()
}
