// Package metrics provides internal metrics collection. This package is
// internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Collector registers and updates the service's prometheus metrics.
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	runsStarted  prometheus.Counter
	runsResumed  prometheus.Counter
	runFailures  *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector creates a collector registered against reg. Tests pass a
// fresh registry to avoid duplicate-registration panics.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := func(c prometheus.Collector) {
		reg.MustRegister(c)
	}

	col := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	col.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	factory(col.httpRequestsTotal)

	col.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	factory(col.httpRequestDuration)

	col.runsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_started_total",
			Help:      "Total number of workflow runs started",
		},
	)
	factory(col.runsStarted)

	col.runsResumed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_resumed_total",
			Help:      "Total number of workflow resume calls",
		},
	)
	factory(col.runsResumed)

	col.runFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_run_failures_total",
			Help:      "Total number of failed start/resume calls",
		},
		[]string{"operation"},
	)
	factory(col.runFailures)

	col.stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_step_duration_seconds",
			Help:      "Workflow step execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"step"},
	)
	factory(col.stepDuration)

	return col
}

// RecordHTTPRequest records one handled HTTP request.
func (c *Collector) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRunStarted records a successful run start.
func (c *Collector) RecordRunStarted() {
	c.runsStarted.Inc()
}

// RecordRunResumed records a resume call.
func (c *Collector) RecordRunResumed() {
	c.runsResumed.Inc()
}

// RecordRunFailure records a failed start or resume.
func (c *Collector) RecordRunFailure(operation string) {
	c.runFailures.WithLabelValues(operation).Inc()
}

// RecordStepDuration records one step execution.
func (c *Collector) RecordStepDuration(step string, duration time.Duration) {
	c.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}
