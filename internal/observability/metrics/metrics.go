// Package metrics exposes prometheus instruments for the ledger core.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes application-level instruments.
type Metrics struct {
	ledgerOps         *prometheus.CounterVec
	anomaliesDetected prometheus.Counter
	workerRuns        *prometheus.CounterVec
	workerDuration    *prometheus.HistogramVec
	discrepancies     prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ledgerOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "creditd",
			Name:      "ledger_operations_total",
			Help:      "Ledger command outcomes by operation type.",
		}, []string{"operation", "outcome"}),
		anomaliesDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "creditd",
			Name:      "anomalies_detected_total",
			Help:      "Usage anomalies created by the detector.",
		}),
		workerRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "creditd",
			Name:      "worker_runs_total",
			Help:      "Worker iterations by worker name and outcome.",
		}, []string{"worker", "outcome"}),
		workerDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "creditd",
			Name:      "worker_run_duration_seconds",
			Help:      "Worker iteration durations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"worker"}),
		discrepancies: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "creditd",
			Name:      "reconciliation_discrepancies_total",
			Help:      "Ledger discrepancies found by the reconciler.",
		}),
	}
}

func (m *Metrics) RecordLedgerOp(operation, outcome string) {
	if m == nil {
		return
	}
	m.ledgerOps.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) RecordAnomaly() {
	if m == nil {
		return
	}
	m.anomaliesDetected.Inc()
}

func (m *Metrics) RecordWorkerRun(worker, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.workerRuns.WithLabelValues(worker, outcome).Inc()
	m.workerDuration.WithLabelValues(worker).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordDiscrepancy() {
	if m == nil {
		return
	}
	m.discrepancies.Inc()
}

// HTTPMetrics instruments the gin transport.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "creditd",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "creditd",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// GinMiddleware records request counts and durations.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
