// Package metrics defines the Prometheus metrics for rule quota usage and
// reconciliation passes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/macropower/rulelimits/pkg/quota"
)

const namespace = "rulelimits"

// Pass outcomes.
const (
	OutcomeConsistent = "consistent"
	OutcomeDiverged   = "diverged"
	OutcomeHealed     = "healed"
	OutcomeSkipped    = "skipped"
	OutcomeError      = "error"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	PassesTotal       *prometheus.CounterVec
	PassDuration      prometheus.Histogram
	QuotaEnabled      *prometheus.GaugeVec
	QuotaMaximum      *prometheus.GaugeVec
	DivergedFilters   prometheus.Gauge
	ConfigurationsSet prometheus.Counter
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PassesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_passes_total",
				Help:      "Total number of reconciliation passes by outcome",
			},
			[]string{"outcome"},
		),
		PassDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reconcile_pass_duration_seconds",
				Help:      "Time taken by a full reconciliation pass, including the update callback",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
		),
		QuotaEnabled: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "quota_enabled",
				Help:      "Number of enabled rules or rulesets per quota category",
			},
			[]string{"category"},
		),
		QuotaMaximum: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "quota_maximum",
				Help:      "Maximum number of rules or rulesets per quota category",
			},
			[]string{"category"},
		),
		DivergedFilters: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "diverged_expected_filters",
				Help:      "Number of filters in the divergence record (0=consistent)",
			},
		),
		ConfigurationsSet: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "configurations_applied_total",
				Help:      "Total number of configuration results handed to the service",
			},
		),
	}

	reg.MustRegister(
		m.PassesTotal,
		m.PassDuration,
		m.QuotaEnabled,
		m.QuotaMaximum,
		m.DivergedFilters,
		m.ConfigurationsSet,
	)

	return m
}

// ObservePass records a reconciliation pass.
func (m *Metrics) ObservePass(outcome string, d time.Duration) {
	if m == nil {
		return
	}

	m.PassesTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSkipped {
		m.PassDuration.Observe(d.Seconds())
	}
}

// ObserveSnapshot records the usage of every quota category.
func (m *Metrics) ObserveSnapshot(s quota.Snapshot) {
	if m == nil {
		return
	}

	for _, c := range s.Categories() {
		m.QuotaEnabled.WithLabelValues(c.Name).Set(float64(c.Limit.Enabled))
		m.QuotaMaximum.WithLabelValues(c.Name).Set(float64(c.Limit.Maximum))
	}

	m.DivergedFilters.Set(float64(len(s.ExpectedEnabledFilters())))
}

// ObserveDivergence records the size of the divergence record.
func (m *Metrics) ObserveDivergence(n int) {
	if m == nil {
		return
	}

	m.DivergedFilters.Set(float64(n))
}

// ObserveConfiguration records a configuration result being set.
func (m *Metrics) ObserveConfiguration() {
	if m == nil {
		return
	}

	m.ConfigurationsSet.Inc()
}
