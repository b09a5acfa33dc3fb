// Package opsserver exposes the watcher's operational surface: Prometheus
// metrics and a liveness endpoint on one HTTP listener.
package opsserver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the watcher's Prometheus instruments.
type Metrics struct {
	CyclesTotal         *prometheus.CounterVec
	CycleDuration       prometheus.Histogram
	QuotesScraped       prometheus.Counter
	QuotesSkipped       prometheus.Counter
	AlertsTotal         *prometheus.CounterVec
	SinkErrors          *prometheus.CounterVec
	TrackedEntries      prometheus.Gauge
	ConsecutiveFailures prometheus.Gauge
}

// NewMetrics creates and registers the instrument set on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boostwatch_cycles_total",
				Help: "Total poll cycles by result",
			},
			[]string{"result"},
		),
		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "boostwatch_cycle_duration_seconds",
				Help:    "Duration of one poll cycle in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
		),
		QuotesScraped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "boostwatch_quotes_scraped_total",
				Help: "Total quotes parsed from snapshots",
			},
		),
		QuotesSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "boostwatch_quotes_skipped_total",
				Help: "Total quotes dropped as malformed or with unusable odds",
			},
		),
		AlertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boostwatch_alerts_total",
				Help: "Total alerts emitted by action",
			},
			[]string{"action"},
		),
		SinkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boostwatch_sink_errors_total",
				Help: "Total sink delivery failures by sink",
			},
			[]string{"sink"},
		),
		TrackedEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "boostwatch_tracked_entries",
				Help: "Fingerprints currently tracked",
			},
		),
		ConsecutiveFailures: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "boostwatch_consecutive_failures",
				Help: "Current consecutive cycle failure count",
			},
		),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.QuotesScraped,
		m.QuotesSkipped,
		m.AlertsTotal,
		m.SinkErrors,
		m.TrackedEntries,
		m.ConsecutiveFailures,
	)

	return m
}

// ObserveCycle records one completed cycle.
func (m *Metrics) ObserveCycle(result string, d time.Duration) {
	m.CyclesTotal.WithLabelValues(result).Inc()
	m.CycleDuration.Observe(d.Seconds())
}

// RecordQuotes tallies parsed and skipped quote counts for one snapshot.
func (m *Metrics) RecordQuotes(scraped, skipped int) {
	m.QuotesScraped.Add(float64(scraped))
	m.QuotesSkipped.Add(float64(skipped))
}

// RecordAlert tallies one emitted alert.
func (m *Metrics) RecordAlert(action string) {
	m.AlertsTotal.WithLabelValues(action).Inc()
}

// RecordSinkError tallies one failed sink delivery.
func (m *Metrics) RecordSinkError(sink string) {
	m.SinkErrors.WithLabelValues(sink).Inc()
}

// SetTrackedEntries publishes the index size.
func (m *Metrics) SetTrackedEntries(n int) {
	m.TrackedEntries.Set(float64(n))
}

// SetConsecutiveFailures publishes the failure streak length.
func (m *Metrics) SetConsecutiveFailures(n int) {
	m.ConsecutiveFailures.Set(float64(n))
}
