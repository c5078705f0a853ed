package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

// HostMetrics tracks contract executions handled by the host runtime.
type HostMetrics struct {
	executions *prometheus.CounterVec
	queries    *prometheus.CounterVec
	solves     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	height     prometheus.Gauge
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	hostMetricsOnce sync.Once
	hostRegistry    *HostMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "puzzle",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "puzzle",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "puzzle",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "puzzle",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" or
// "body_too_large".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// Host returns the host runtime metrics registry.
func Host() *HostMetrics {
	hostMetricsOnce.Do(func() {
		hostRegistry = &HostMetrics{
			executions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "puzzle",
				Subsystem: "host",
				Name:      "executions_total",
				Help:      "Handle messages executed, segmented by message and outcome.",
			}, []string{"message", "outcome"}),
			queries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "puzzle",
				Subsystem: "host",
				Name:      "queries_total",
				Help:      "Queries answered, segmented by query and outcome.",
			}, []string{"query", "outcome"}),
			solves: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "puzzle",
				Subsystem: "host",
				Name:      "solve_results_total",
				Help:      "Graded solve attempts segmented by result.",
			}, []string{"result"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "puzzle",
				Subsystem: "host",
				Name:      "execution_duration_seconds",
				Help:      "Wall time spent executing and committing handle messages.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"message"}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "puzzle",
				Subsystem: "host",
				Name:      "height",
				Help:      "Height of the last committed state transition.",
			}),
		}
		prometheus.MustRegister(
			hostRegistry.executions,
			hostRegistry.queries,
			hostRegistry.solves,
			hostRegistry.latency,
			hostRegistry.height,
		)
	})
	return hostRegistry
}

// ObserveExecution records a handle message outcome. Outcome is derived from
// err: nil is "committed", anything else "rejected".
func (m *HostMetrics) ObserveExecution(message string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	message = labelOrUnknown(message)
	outcome := "committed"
	if err != nil {
		outcome = "rejected"
	}
	m.executions.WithLabelValues(message, outcome).Inc()
	m.latency.WithLabelValues(message).Observe(duration.Seconds())
}

// ObserveQuery records a query outcome.
func (m *HostMetrics) ObserveQuery(query string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.queries.WithLabelValues(labelOrUnknown(query), outcome).Inc()
}

// RecordSolve counts a graded solve attempt.
func (m *HostMetrics) RecordSolve(result string) {
	if m == nil {
		return
	}
	m.solves.WithLabelValues(labelOrUnknown(result)).Inc()
}

// SetHeight publishes the committed height.
func (m *HostMetrics) SetHeight(height uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(height))
}

func labelOrUnknown(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
