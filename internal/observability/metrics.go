package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	httpErrorsTotal      *prometheus.CounterVec
	attendanceMarksTotal *prometheus.CounterVec
	statsCacheTotal      *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attendance_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		attendanceMarksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_marks_total",
			Help: "Attendance marks recorded, by status.",
		}, []string{"status"})

		statsCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_stats_cache_total",
			Help: "Statistics cache lookups, by result.",
		}, []string{"result"})

		prometheus.MustRegister(httpRequestsTotal, httpLatencySeconds, httpErrorsTotal, attendanceMarksTotal, statsCacheTotal)
	})
}

// HTTPRequests exposes the counter for served requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for served requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// AttendanceMarks counts marks written through the upsert path.
func AttendanceMarks() *prometheus.CounterVec {
	RegisterMetrics()
	return attendanceMarksTotal
}

// StatsCache counts statistics cache hits and misses.
func StatsCache() *prometheus.CounterVec {
	RegisterMetrics()
	return statsCacheTotal
}
