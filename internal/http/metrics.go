package http

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics holds Prometheus metrics for the HTTP API.
type HTTPMetrics struct {
	requestsTotal  *prometheus.CounterVec
	requestDur     *prometheus.HistogramVec
	activeRequests prometheus.Gauge
}

// NewHTTPMetrics creates and registers the HTTP metrics with reg.
//
// Metrics:
//   - projectd_http_requests_total{method,endpoint,status}
//   - projectd_http_request_duration_seconds{method,endpoint}
//   - projectd_http_active_requests
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	factory := promauto.With(reg)
	return &HTTPMetrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projectd_http_requests_total",
				Help: "Total HTTP requests by method, route and status code",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDur: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "projectd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds by method and route",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		activeRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "projectd_http_active_requests",
				Help: "Number of HTTP requests currently being served",
			},
		),
	}
}

// MetricsMiddleware returns an echo middleware that records HTTP metrics.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			m.activeRequests.Inc()
			defer m.activeRequests.Dec()

			err := next(c)
			if err != nil {
				// Let the error handler write the response so the status is final.
				c.Error(err)
			}

			method := c.Request().Method
			endpoint := normalizePath(c.Path())
			m.requestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(c.Response().Status)).Inc()
			m.requestDur.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// normalizePath keeps label cardinality bounded. echo reports the route
// template (/api/projects/:id), so only unmatched requests need folding.
func normalizePath(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}
