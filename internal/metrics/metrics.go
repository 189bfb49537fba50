// Package metrics exposes the engine's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the cache engine collectors.
type Metrics struct {
	Hits          *prometheus.CounterVec
	Misses        prometheus.Counter
	Sets          *prometheus.CounterVec
	Evictions     *prometheus.CounterVec
	Promotions    *prometheus.CounterVec
	Invalidations prometheus.Counter
	Entries       *prometheus.GaugeVec
	SizeBytes     *prometheus.GaugeVec
	OpDuration    *prometheus.HistogramVec
}

// New registers the collectors with reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Hits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Cache hits by serving tier.",
		}, []string{"level"}),
		Misses: factory.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Lookups that missed every tier.",
		}),
		Sets: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_sets_total",
			Help: "Write attempts by tier and outcome.",
		}, []string{"level", "outcome"}),
		Evictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Entries evicted under capacity pressure, by tier.",
		}, []string{"level"}),
		Promotions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_promotions_total",
			Help: "Entries promoted to a faster tier, by source tier.",
		}, []string{"from_level"}),
		Invalidations: factory.NewCounter(prometheus.CounterOpts{
			Name: "cache_invalidations_total",
			Help: "Entries removed by pattern invalidation.",
		}),
		Entries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Live entries per tier.",
		}, []string{"level"}),
		SizeBytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cache_size_bytes",
			Help: "Payload volume per tier.",
		}, []string{"level"}),
		OpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cache_operation_duration_seconds",
			Help:    "Latency of manager operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}
