// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the service:
// - API endpoint latency and throughput
// - Cache efficiency
// - BigQuery query performance and errors
// - OAuth token refreshes
// - Circuit breaker state

var (
	// API Metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of currently active API requests",
		},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheKeys = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_keys",
			Help: "Number of entries currently in the response cache",
		},
	)

	// BigQuery Metrics
	BigQueryQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bigquery_query_duration_seconds",
			Help:    "Duration of BigQuery analytic queries in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"query_type"},
	)

	BigQueryQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bigquery_query_errors_total",
			Help: "Total number of failed BigQuery queries",
		},
		[]string{"query_type", "reason"},
	)

	BigQueryRowsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bigquery_rows_returned",
			Help:    "Number of rows returned per BigQuery query",
			Buckets: []float64{0, 1, 10, 50, 100, 500, 1000, 5000, 10000},
		},
		[]string{"query_type"},
	)

	// Token Metrics
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_token_refreshes_total",
			Help: "Total number of OAuth access token refreshes",
		},
		[]string{"result"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Total number of circuit breaker trips to open",
		},
		[]string{"name"},
	)
)

// RecordAPIRequest records metrics for an API request
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordCacheHit records a cache hit
func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordBigQueryQuery records metrics for a BigQuery query
func RecordBigQueryQuery(queryType string, rows int, duration time.Duration, err error) {
	BigQueryQueryDuration.WithLabelValues(queryType).Observe(duration.Seconds())
	if err != nil {
		BigQueryQueryErrors.WithLabelValues(queryType, errorReason(err)).Inc()
		return
	}
	BigQueryRowsReturned.WithLabelValues(queryType).Observe(float64(rows))
}

// RecordTokenRefresh records an OAuth token refresh attempt
func RecordTokenRefresh(success bool) {
	if success {
		TokenRefreshes.WithLabelValues("success").Inc()
	} else {
		TokenRefreshes.WithLabelValues("failure").Inc()
	}
}

// SetCircuitBreakerState updates the circuit breaker state gauge
func SetCircuitBreakerState(name string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func RecordCircuitBreakerTrip(name string) {
	CircuitBreakerTrips.WithLabelValues(name).Inc()
}

func errorReason(err error) string {
	if err == nil {
		return "none"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "context deadline exceeded"):
		return "timeout"
	case strings.Contains(msg, "circuit breaker is open"):
		return "circuit_open"
	default:
		return "upstream"
	}
}
