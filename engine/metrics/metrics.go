// Package metrics exports Prometheus metrics for the orchestration engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter registers and records engine metrics.
type Exporter struct {
	registry *prometheus.Registry

	// Turn metrics
	turnLatency *prometheus.HistogramVec
	turns       *prometheus.CounterVec

	// Router metrics
	routerDecisions *prometheus.CounterVec

	// Baton metrics
	batonHops  prometheus.Counter
	batonStops *prometheus.CounterVec

	// Store metrics
	storeOps *prometheus.CounterVec

	// Dispatcher metrics
	jobRetries    prometheus.Counter
	queueDepth    prometheus.Gauge
	activeWorkers prometheus.Gauge
}

// Config configures the exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for the turn latency histogram (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default exporter configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}
}

// NewExporter creates the engine metrics exporter.
func NewExporter(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.turnLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cauce",
			Subsystem: "engine",
			Name:      "turn_latency_seconds",
			Help:      "Turn processing latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"lane", "status"},
	)

	e.turns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cauce",
			Subsystem: "engine",
			Name:      "turns_total",
			Help:      "Total number of processed turns",
		},
		[]string{"lane", "status"},
	)

	e.routerDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cauce",
			Subsystem: "router",
			Name:      "decisions_total",
			Help:      "Total number of routing decisions",
		},
		[]string{"lane", "source"},
	)

	e.batonHops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cauce",
			Subsystem: "engine",
			Name:      "baton_hops_total",
			Help:      "Total number of baton handoffs followed",
		},
	)

	e.batonStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cauce",
			Subsystem: "engine",
			Name:      "baton_stops_total",
			Help:      "Total number of baton chains stopped, by reason",
		},
		[]string{"reason"},
	)

	e.storeOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cauce",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of session store operations",
		},
		[]string{"op", "status"},
	)

	e.jobRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cauce",
			Subsystem: "jobs",
			Name:      "retries_total",
			Help:      "Total number of job retry attempts",
		},
	)

	e.queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cauce",
			Subsystem: "jobs",
			Name:      "queue_depth",
			Help:      "Number of jobs waiting in the dispatcher queue",
		},
	)

	e.activeWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cauce",
			Subsystem: "jobs",
			Name:      "active_workers",
			Help:      "Number of workers currently processing a job",
		},
	)

	registry.MustRegister(
		e.turnLatency,
		e.turns,
		e.routerDecisions,
		e.batonHops,
		e.batonStops,
		e.storeOps,
		e.jobRetries,
		e.queueDepth,
		e.activeWorkers,
	)

	return e
}

// RecordTurn records one completed turn.
func (e *Exporter) RecordTurn(lane string, latency time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	e.turns.WithLabelValues(lane, status).Inc()
	e.turnLatency.WithLabelValues(lane, status).Observe(latency.Seconds())
}

// RecordDecision records a routing decision. source is "llm" or "fallback".
func (e *Exporter) RecordDecision(lane, source string) {
	e.routerDecisions.WithLabelValues(lane, source).Inc()
}

// RecordBatonHop records one followed baton handoff.
func (e *Exporter) RecordBatonHop() {
	e.batonHops.Inc()
}

// RecordBatonStop records a baton chain stop.
func (e *Exporter) RecordBatonStop(reason string) {
	e.batonStops.WithLabelValues(reason).Inc()
}

// RecordStoreOp records a session store operation.
func (e *Exporter) RecordStoreOp(op string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	e.storeOps.WithLabelValues(op, status).Inc()
}

// RecordJobRetry records a job retry attempt.
func (e *Exporter) RecordJobRetry() {
	e.jobRetries.Inc()
}

// SetQueueDepth sets the dispatcher queue depth.
func (e *Exporter) SetQueueDepth(n int) {
	e.queueDepth.Set(float64(n))
}

// AddActiveWorkers adjusts the active worker gauge.
func (e *Exporter) AddActiveWorkers(delta int) {
	e.activeWorkers.Add(float64(delta))
}

// GetHandler returns the HTTP handler for the metrics endpoint.
func (e *Exporter) GetHandler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// GetRegistry returns the Prometheus registry.
func (e *Exporter) GetRegistry() *prometheus.Registry {
	return e.registry
}
