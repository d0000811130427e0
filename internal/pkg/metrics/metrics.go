// Package metrics exposes Prometheus collectors scraped from /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors registered by the service.
type Metrics struct {
	registry *prometheus.Registry

	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	decisions       *prometheus.CounterVec
	ledgerDuration  *prometheus.HistogramVec
	sweptRows       prometheus.Counter
}

// New creates the collectors and registers them, plus the Go and process collectors, on a fresh registry.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stepup",
				Name:      "decisions_total",
				Help:      "Step-up authorization outcomes.",
			},
			[]string{"context", "action", "result", "reason"},
		),
		ledgerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "stepup",
				Name:      "ledger_duration_seconds",
				Help:      "Latency of challenge ledger operations.",
				Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"op", "outcome"},
		),
		sweptRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stepup",
			Name:      "ledger_swept_rows_total",
			Help:      "Expired challenge rows removed by the housekeeping sweep.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestCount,
		m.requestDuration,
		m.decisions,
		m.ledgerDuration,
		m.sweptRows,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestCount.WithLabelValues(method, path, code).Inc()
	m.requestDuration.WithLabelValues(method, path, code).Observe(elapsed.Seconds())
}

// ObserveDecision records a step-up outcome.
func (m *Metrics) ObserveDecision(context, action, result, reason string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(context, action, result, reason).Inc()
}

// ObserveLedger records the latency of a ledger call.
func (m *Metrics) ObserveLedger(op string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ledgerDuration.WithLabelValues(op, outcome).Observe(elapsed.Seconds())
}

// AddSwept counts rows removed by the sweeper.
func (m *Metrics) AddSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptRows.Add(float64(n))
}
