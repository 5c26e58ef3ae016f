package orchestrator

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Metrics holds Prometheus metrics for the orchestrator.
type Metrics struct {
	OperationsTotal           *prometheus.CounterVec
	OperationDuration         *prometheus.HistogramVec
	EventsPublishedTotal      *prometheus.CounterVec
	EventPublishFailuresTotal *prometheus.CounterVec
}

// DefaultMetrics registers the orchestrator metrics with the default
// Prometheus registerer once per process.
func DefaultMetrics() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// NewMetrics creates and registers the orchestrator metrics with reg.
//
// Metrics:
//   - projectd_operations_total{operation,outcome} - Count of operations by result
//   - projectd_operation_duration_seconds{operation} - Histogram of operation latency
//   - projectd_events_published_total{type} - Count of delivered notifications
//   - projectd_event_publish_failures_total{type} - Count of failed notifications
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projectd_operations_total",
				Help: "Total number of project and task operations",
			},
			[]string{"operation", "outcome"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "projectd_operation_duration_seconds",
				Help:    "Duration of project and task operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		EventsPublishedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projectd_events_published_total",
				Help: "Total number of change notifications published",
			},
			[]string{"type"},
		),
		EventPublishFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projectd_event_publish_failures_total",
				Help: "Total number of change notifications that failed to publish",
			},
			[]string{"type"},
		),
	}
}
