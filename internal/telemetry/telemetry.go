// Package telemetry defines the service's Prometheus metrics.
package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_runs_total",
			Help: "Total number of ingestion runs, labeled by outcome.",
		},
		[]string{"status"},
	)

	ingestArticlesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_articles_created_total",
			Help: "Total number of newly persisted articles, labeled by source.",
		},
		[]string{"source"},
	)

	ingestArticlesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_articles_skipped_total",
			Help: "Total number of feed entries skipped by validation or dedup.",
		},
		[]string{"source"},
	)

	fetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_requests_total",
			Help: "Total feed fetch attempts, labeled by domain and status class.",
		},
		[]string{"domain", "status"},
	)

	fetchRobotsDeniedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_robots_denied_total",
			Help: "Total fetches denied by robots policy, labeled by domain.",
		},
		[]string{"domain"},
	)

	fetchRateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetch_rate_limit_delay_seconds",
			Help:    "Histogram of per-domain rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)
)

// ObserveRunCompleted records one finished orchestrator run.
func ObserveRunCompleted(status string, source string, created, skipped int) {
	ingestRunsTotal.WithLabelValues(status).Inc()
	if created > 0 {
		ingestArticlesCreatedTotal.WithLabelValues(source).Add(float64(created))
	}
	if skipped > 0 {
		ingestArticlesSkippedTotal.WithLabelValues(source).Add(float64(skipped))
	}
}

// ObserveFetch records one fetch attempt by status class ("2xx", "5xx", "error").
func ObserveFetch(domain string, statusCode int) {
	class := "error"
	if statusCode > 0 {
		class = fmt.Sprintf("%dxx", statusCode/100)
	}
	fetchRequestsTotal.WithLabelValues(domain, class).Inc()
}

// ObserveRobotsDenied records a robots-policy denial.
func ObserveRobotsDenied(domain string) {
	fetchRobotsDeniedTotal.WithLabelValues(domain).Inc()
}

// ObserveRateLimitDelay records time spent waiting on the domain limiter.
func ObserveRateLimitDelay(domain string, d time.Duration) {
	if d > 0 {
		fetchRateLimitDelaySeconds.WithLabelValues(domain).Observe(d.Seconds())
	}
}

// ObserveHTTPRequest records one served API request.
func ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
	httpRequestsTotal.WithLabelValues(method, fmt.Sprintf("%d", code)).Inc()
}
