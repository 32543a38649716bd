package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Total HTTP requests partitioned by method, route, and status code
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deviceprofiles",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// Request duration in seconds partitioned by method, route, and status code
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "deviceprofiles",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// In-flight HTTP requests
	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "deviceprofiles",
			Name:      "http_inflight_requests",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// Lost optimistic concurrency races surfaced to clients
	versionConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deviceprofiles",
			Name:      "version_conflicts_total",
			Help:      "Number of profile updates rejected on a version mismatch",
		},
	)

	// Create and clone requests answered from the idempotency store
	idempotentReplaysTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deviceprofiles",
			Name:      "idempotent_replays_total",
			Help:      "Number of requests served from a stored idempotency record",
		},
	)
)

// RecordVersionConflict counts one rejected optimistic update
func RecordVersionConflict() {
	versionConflictsTotal.Inc()
}

// RecordIdempotentReplay counts one replayed create response
func RecordIdempotentReplay() {
	idempotentReplaysTotal.Inc()
}

// Metrics returns a Fiber v3 middleware that records basic Prometheus metrics.
// Labels are kept low-cardinality by using the matched route path when available.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		err := c.Next()

		status := c.Response().StatusCode()
		method := c.Method()
		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path // route template, not the raw path
		}

		labels := prometheus.Labels{
			"method": method,
			"route":  route,
			"status": strconv.Itoa(status),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())

		return err
	}
}
