// Package metrics exposes build observability counters on a private
// prometheus registry, served from watch mode's HTTP endpoint.
package metrics

import (
	"net/http"
	"time"

	"github.com/bdskit/ontomake/internal/dag"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors for one running process.
type Metrics struct {
	registry *prometheus.Registry

	buildRuns     *prometheus.CounterVec
	targets       *prometheus.CounterVec
	buildDuration prometheus.Histogram
	watchTriggers prometheus.Counter
}

// New creates a Metrics with its own registry, so tests and parallel
// instances never fight over the global one.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		buildRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ontomake_build_runs_total",
			Help: "Build runs by result.",
		}, []string{"result"}),
		targets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ontomake_targets_total",
			Help: "Targets by terminal state across all build runs.",
		}, []string{"state"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ontomake_build_duration_seconds",
			Help:    "Wall time of build runs.",
			Buckets: prometheus.ExponentialBuckets(0.05, 3, 10),
		}),
		watchTriggers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ontomake_watch_triggers_total",
			Help: "Rebuilds triggered by file changes in watch mode.",
		}),
	}
	m.registry.MustRegister(m.buildRuns, m.targets, m.buildDuration, m.watchTriggers)
	return m
}

// ObserveRun records the outcome of one build run.
func (m *Metrics) ObserveRun(summary dag.Summary, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.buildRuns.WithLabelValues(result).Inc()
	m.buildDuration.Observe(duration.Seconds())
	m.targets.WithLabelValues("built").Add(float64(summary.Built))
	m.targets.WithLabelValues("fresh").Add(float64(summary.Fresh))
	m.targets.WithLabelValues("disabled").Add(float64(summary.Disabled))
	m.targets.WithLabelValues("skipped").Add(float64(summary.Skipped))
	m.targets.WithLabelValues("failed").Add(float64(summary.Failed))
}

// ObserveWatchTrigger records one debounced change notification.
func (m *Metrics) ObserveWatchTrigger() {
	m.watchTriggers.Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
