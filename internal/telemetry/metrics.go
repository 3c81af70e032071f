// Package telemetry provides observability primitives for the trailhead service.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ActiveRequests   prometheus.Gauge
	UpstreamPages    prometheus.Counter
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheEntries     prometheus.Gauge
	CacheMemoryBytes prometheus.Gauge
	SyncRuns         *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trailhead",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "trailhead",
			Name:                            "request_duration_seconds",
			Help:                            "HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trailhead",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),

		UpstreamPages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trailhead",
			Name:      "upstream_pages_total",
			Help:      "Total upstream activity pages fetched.",
		}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trailhead",
			Name:      "cache_hits_total",
			Help:      "Total response cache hits.",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trailhead",
			Name:      "cache_misses_total",
			Help:      "Total response cache misses.",
		}),

		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trailhead",
			Name:      "cache_entries",
			Help:      "Current number of cache entries.",
		}),

		CacheMemoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trailhead",
			Name:      "cache_memory_bytes",
			Help:      "Estimated bytes held by the cache.",
		}),

		SyncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trailhead",
			Name:      "sync_runs_total",
			Help:      "Total activity sync runs by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.UpstreamPages,
		m.CacheHits,
		m.CacheMisses,
		m.CacheEntries,
		m.CacheMemoryBytes,
		m.SyncRuns,
	)

	return m
}
