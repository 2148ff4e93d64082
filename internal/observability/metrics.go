package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metalens_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metalens_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	analyzeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metalens_analyze_requests_total",
			Help: "Total number of table analysis requests by format and outcome.",
		},
		[]string{"format", "status"},
	)

	analyzeDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metalens_analyze_duration_seconds",
			Help:    "Table analysis latency by format.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"format"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		analyzeRequestsTotal,
		analyzeDurationSeconds,
	)
}

func ObserveAnalyze(format string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	analyzeRequestsTotal.WithLabelValues(format, status).Inc()
	analyzeDurationSeconds.WithLabelValues(format).Observe(elapsed.Seconds())
}
