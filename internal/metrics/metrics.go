// Package metrics exposes Prometheus instrumentation for the monitoring
// engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics for the engine.
type Registry struct {
	reg *prometheus.Registry

	CyclesTotal   *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	PhaseDuration *prometheus.HistogramVec
	ActiveCycles  prometheus.Gauge

	ItemsTotal         *prometheus.CounterVec
	SourceFailures     *prometheus.CounterVec
	StrategyDowngrades *prometheus.CounterVec
	DedupHitsTotal     prometheus.Counter
	AlertsTotal        prometheus.Counter
}

// NewRegistry creates and registers all engine metrics on a private
// Prometheus registry.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchradar_cycles_total",
				Help: "Total monitoring cycles by terminal status",
			},
			[]string{"status"},
		),

		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "launchradar_cycle_duration_seconds",
				Help:    "Wall time of one full monitoring cycle",
				Buckets: []float64{1, 5, 10, 30, 60, 90, 120, 180, 300},
			},
		),

		PhaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "launchradar_phase_duration_seconds",
				Help:    "Time spent in each cycle phase",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"phase"},
		),

		ActiveCycles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "launchradar_active_cycles",
				Help: "Number of cycles currently running",
			},
		),

		ItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchradar_items_total",
				Help: "Items counted per pipeline stage",
			},
			[]string{"stage"},
		),

		SourceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchradar_source_failures_total",
				Help: "Acquisition failures by source id",
			},
			[]string{"source"},
		),

		StrategyDowngrades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchradar_strategy_downgrades_total",
				Help: "Social fetches forced below the full strategy by quota",
			},
			[]string{"strategy"},
		),

		DedupHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "launchradar_dedup_hits_total",
				Help: "Relevant items suppressed as duplicates",
			},
		),

		AlertsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "launchradar_alerts_total",
				Help: "Alerts emitted to sinks",
			},
		),
	}

	r.reg.MustRegister(
		r.CyclesTotal,
		r.CycleDuration,
		r.PhaseDuration,
		r.ActiveCycles,
		r.ItemsTotal,
		r.SourceFailures,
		r.StrategyDowngrades,
		r.DedupHitsTotal,
		r.AlertsTotal,
	)

	return r
}

// Handler serves the registry in Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// PhaseTimer tracks time spent in one cycle phase.
type PhaseTimer struct {
	registry *Registry
	phase    string
	start    time.Time
}

// StartPhase begins timing a phase.
func (r *Registry) StartPhase(phase string) *PhaseTimer {
	return &PhaseTimer{registry: r, phase: phase, start: time.Now()}
}

// Stop records the elapsed phase time.
func (t *PhaseTimer) Stop() {
	t.registry.PhaseDuration.WithLabelValues(t.phase).Observe(time.Since(t.start).Seconds())
}

// RecordCycle records one finished cycle.
func (r *Registry) RecordCycle(status string, elapsed time.Duration) {
	r.CyclesTotal.WithLabelValues(status).Inc()
	r.CycleDuration.Observe(elapsed.Seconds())
}

// AddItems counts items through a pipeline stage.
func (r *Registry) AddItems(stage string, n int) {
	if n > 0 {
		r.ItemsTotal.WithLabelValues(stage).Add(float64(n))
	}
}

// RecordSourceFailure counts a failed source fetch.
func (r *Registry) RecordSourceFailure(sourceID string) {
	r.SourceFailures.WithLabelValues(sourceID).Inc()
}

// RecordDowngrade counts a quota-forced social strategy downgrade.
func (r *Registry) RecordDowngrade(strategy string) {
	r.StrategyDowngrades.WithLabelValues(strategy).Inc()
}
