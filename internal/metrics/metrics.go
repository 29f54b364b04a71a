package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// EditOps counts schedule edit operations by kind and outcome
	EditOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "schedule_edit_ops_total", Help: "Schedule edit operations by kind and outcome."},
		[]string{"kind", "outcome"},
	)
	// NormalizeDuration tracks how long a normalization pass takes
	NormalizeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "schedule_normalize_duration_seconds", Help: "Schedule normalization pass duration in seconds.", Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1}},
	)
	// TimelineSessions gauges currently open timeline sessions
	TimelineSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "timeline_sessions_open", Help: "Open timeline editing sessions."},
	)

	// SaveDeliveries counts save push outcomes by status
	SaveDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "save_deliveries_total", Help: "Plan save deliveries by status."},
		[]string{"status"},
	)
	// SaveLatency tracks save push latencies in milliseconds
	SaveLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "save_delivery_latency_ms", Help: "Plan save delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"status"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(EditOps)
		Registry.MustRegister(NormalizeDuration)
		Registry.MustRegister(TimelineSessions)
		Registry.MustRegister(SaveDeliveries)
		Registry.MustRegister(SaveLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
