// Package metrics provides the centralized Prometheus metrics registry
// for the ingest pipeline. All metrics are defined in their respective
// packages (statsapi, proxy, ratelimit, cache, fetch) to maintain
// modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the pipeline.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - ingest_rate_limit_wait_seconds (Histogram): Time spent waiting for a window slot
//   - ingest_rate_limit_throttles_total (Counter): Calls that had to wait for the window
//
// Proxy Metrics (pkg/proxy):
//   - ingest_proxy_selections_total{mode} (Counter): Selections by mode (healthy, fallback)
//   - ingest_proxy_failures_total (Counter): Calls marked failed against a proxy
//   - ingest_proxy_pool_resets_total (Counter): Full pool resets after exhaustion
//
// Request Metrics (pkg/statsapi):
//   - ingest_api_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - ingest_api_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - ingest_api_errors_total{class} (Counter): Errors by class (transient, permanent)
//
// Cache Metrics (pkg/cache):
//   - ingest_cache_hits_total (Counter): Payload cache hits
//   - ingest_cache_misses_total (Counter): Payload cache misses
//   - ingest_cache_size_bytes (Gauge): Bytes written to the cache
//   - ingest_cache_errors_total{operation} (Counter): Cache operation errors
//
// Retry and Batch Metrics (pkg/fetch):
//   - ingest_retries_total (Counter): Retry attempts
//   - ingest_retry_backoff_seconds (Histogram): Backoff duration before retries
//   - ingest_retry_exhausted_total (Counter): Calls that exhausted all attempts
//   - ingest_batch_outcomes_total{task, outcome} (Counter): Per-entity batch outcomes
//
// Example Prometheus Queries:
//
//	# Cache Hit Rate
//	sum(rate(ingest_cache_hits_total[5m])) /
//	(sum(rate(ingest_cache_hits_total[5m])) + sum(rate(ingest_cache_misses_total[5m])))
//
//	# Proxy fallback share
//	rate(ingest_proxy_selections_total{mode="fallback"}[5m]) /
//	rate(ingest_proxy_selections_total[5m])
//
//	# Request Error Rate
//	rate(ingest_api_errors_total[5m])
//
//	# P95 Request Latency
//	histogram_quantile(0.95, rate(ingest_api_request_duration_seconds_bucket[5m]))
//
//	# Batch failure share by task
//	rate(ingest_batch_outcomes_total{outcome="failed"}[5m])
