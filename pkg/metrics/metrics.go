// Package metrics holds the registry the connector's Prometheus metrics are
// registered with and the handler that serves them. The metrics themselves
// are defined next to the code that records them (ratelimit, client, server)
// with promauto.With(Registry).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry receives every connector metric.
	Registry prometheus.Registerer = prometheus.DefaultRegisterer

	// Gatherer is what Handler exposes. It must cover Registry.
	Gatherer prometheus.Gatherer = prometheus.DefaultGatherer
)

// Handler serves Gatherer in the Prometheus text format and counts its own
// scrapes in Registry.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(Registry,
		promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
}

// Metrics Documentation
//
// Query Budget Metrics (pkg/ratelimit):
//   - shopify_query_budget_available (Gauge): Cost points available as last reported by Shopify
//   - shopify_admission_waits_total (Counter): Requests delayed by the local budget estimate
//   - shopify_admission_wait_seconds (Histogram): Admission delay duration
//
// Request Metrics (pkg/client):
//   - shopify_graphql_requests_total{status} (Counter): GraphQL requests by HTTP status
//   - shopify_graphql_request_duration_seconds (Histogram): Round-trip duration
//   - shopify_graphql_errors_total{class} (Counter): Failures by class (auth, throttled, upstream, graphql, malformed, network)
//   - shopify_query_cost_actual (Histogram): Actual query cost per request
//
// Throttle Metrics (pkg/client):
//   - shopify_throttle_retries_total (Counter): Requests re-issued after a 429
//   - shopify_throttle_backoff_seconds (Histogram): Backoff taken after a 429
//   - shopify_retry_exhausted_total (Counter): Calls abandoned at the throttle backoff limit
//
// HTTP Metrics (internal/server):
//   - connector_http_requests_total{route, status} (Counter): Served requests
//   - connector_http_request_duration_seconds{route} (Histogram): Handler duration
//
// Example Prometheus Queries:
//
//   # Throttle rate
//   rate(shopify_throttle_retries_total[5m]) / rate(shopify_graphql_requests_total[5m])
//
//   # Budget running low
//   shopify_query_budget_available < 100
//
//   # Revoked tokens
//   rate(shopify_graphql_errors_total{class="auth"}[5m])
//
//   # P95 upstream latency
//   histogram_quantile(0.95, rate(shopify_graphql_request_duration_seconds_bucket[5m]))
