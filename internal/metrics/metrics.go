// Package metrics exposes Prometheus instrumentation for the sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Fetches counts remote fetches by entity type and result
	// ("success", "failure", "deduplicated").
	Fetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minard_sync_fetches_total",
		Help: "Remote fetches issued by the sync engine",
	}, []string{"type", "result"})

	// CacheHits counts loads served from the cache.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minard_sync_cache_hits_total",
		Help: "Loads answered from the entity cache",
	}, []string{"type"})

	// FetchDuration observes remote fetch latency.
	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "minard_sync_fetch_duration_seconds",
		Help:    "Duration of remote fetches",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	// StreamEvents counts streamed events by kind and result
	// ("applied", "dropped").
	StreamEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minard_sync_stream_events_total",
		Help: "Streamed events handled by the reconciler",
	}, []string{"event", "result"})

	// StreamReconnects counts streaming reconnect attempts.
	StreamReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minard_sync_stream_reconnects_total",
		Help: "Streaming connection re-establishments",
	})
)
