// Package metrics exposes the Prometheus registry used by the edge gateway.
// All metrics are defined in their respective packages (gateway, origin,
// cache) and registered through promauto on the default registerer.
//
// This package provides the scrape handler and the reference for all
// available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the gateway.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the scrape handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		Registry: Registry,
	})
}

// Metrics Documentation
//
// Dispatch Metrics (pkg/gateway):
//   - kg_edge_dispatch_total{route, outcome} (Counter): Dispatches by classifier
//     rule and outcome (forward, bypass, hit, miss, uncached, error)
//
// Origin Metrics (pkg/origin):
//   - kg_edge_origin_requests_total{route, status} (Counter): Origin requests by
//     rule and HTTP status ("network_error" for hard failures)
//   - kg_edge_origin_request_duration_seconds{route} (Histogram): Origin latency
//
// Cache Metrics (pkg/cache):
//   - kg_edge_cache_hits_total{store} (Counter): Store hits (redis, memory)
//   - kg_edge_cache_misses_total{store} (Counter): Store misses, including expired entries
//   - kg_edge_cache_errors_total{store, operation} (Counter): Store errors by operation (get, put)
//   - kg_edge_cache_writes_total{result} (Counter): Background writes (ok, error, skipped during shutdown)
//   - kg_edge_cache_stored_bytes_total{store} (Counter): Body bytes written
//
// Example Prometheus Queries:
//
//   # Edge Hit Rate
//   sum(rate(kg_edge_dispatch_total{outcome="hit"}[5m])) /
//   sum(rate(kg_edge_dispatch_total{outcome=~"hit|miss"}[5m]))
//
//   # Requests Reaching the Origin per Rule
//   sum by (route) (rate(kg_edge_origin_requests_total[5m]))
//
//   # Hard Origin Failures
//   rate(kg_edge_origin_requests_total{status="network_error"}[5m])
//
//   # P95 Origin Latency
//   histogram_quantile(0.95, rate(kg_edge_origin_request_duration_seconds_bucket[5m]))
//
//   # Dropped Cache Writes
//   rate(kg_edge_cache_writes_total{result="error"}[5m])
