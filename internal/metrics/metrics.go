// Package metrics exposes the Prometheus-format series required by spec
// §6: per-tier cache hits, misses, operation duration, request and error
// counters. Torua has no metrics package at all (its health monitoring is
// push-based callbacks, not exposition), so this is grounded directly on
// prometheus/client_golang's own idiomatic registration pattern rather
// than on any teacher code.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sink bundles every series a cache node or router records against
// during request handling.
type Sink struct {
	CacheHits   *prometheus.CounterVec
	CacheMisses prometheus.Counter
	OpDuration  *prometheus.HistogramVec
	Requests    prometheus.Counter
	Errors      *prometheus.CounterVec
}

// New registers every series on reg and returns the Sink. Passing a
// fresh *prometheus.Registry (rather than the global default) keeps
// cache-node and router processes from colliding if ever run in the same
// binary under test.
func New(reg *prometheus.Registry) *Sink {
	factory := promauto.With(reg)
	return &Sink{
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Count of cache hits, partitioned by tier.",
		}, []string{"tier"}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Count of cache misses across all tiers combined.",
		}),
		OpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "operation_duration_seconds",
			Help:    "Duration of cache operations, partitioned by op.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		Requests: factory.NewCounter(prometheus.CounterOpts{
			Name: "request_counter",
			Help: "Count of RPC requests handled.",
		}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "error_counter",
			Help: "Count of errors returned, partitioned by kind.",
		}, []string{"kind"}),
	}
}

// Handler returns the /metrics HTTP handler serving reg's series in
// Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
