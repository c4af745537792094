// Package telemetry exposes Prometheus metrics for the pipeline and the API.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pipelineRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hpi_pipeline_rows_total",
			Help: "Rows seen by the pipeline, labeled by stage and outcome.",
		},
		[]string{"stage", "outcome"},
	)

	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hpi_pipeline_runs_total",
			Help: "Pipeline runs, labeled by final status.",
		},
		[]string{"status"},
	)

	pipelineRunDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hpi_pipeline_run_duration_seconds",
			Help:    "Histogram of end-to-end pipeline run durations.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"method", "route"},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hpi_cache_lookups_total",
			Help: "Response cache lookups, labeled by endpoint and result.",
		},
		[]string{"endpoint", "result"},
	)
)

// ObservePipelineRows records how many rows a stage kept or dropped.
func ObservePipelineRows(stage, outcome string, n int) {
	if n <= 0 {
		return
	}
	pipelineRowsTotal.WithLabelValues(stage, outcome).Add(float64(n))
}

// ObservePipelineRun records the final status and duration of a run.
func ObservePipelineRun(status string, d time.Duration) {
	pipelineRunsTotal.WithLabelValues(status).Inc()
	pipelineRunDurationSeconds.Observe(d.Seconds())
}

// ObserveHTTPRequest records a completed HTTP request.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveCacheLookup records a response cache hit or miss.
func ObserveCacheLookup(endpoint string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(endpoint, result).Inc()
}

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}
