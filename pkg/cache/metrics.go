package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finx_cache_hits_total",
		Help: "Total number of response cache hits",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finx_cache_misses_total",
		Help: "Total number of response cache misses",
	})

	CacheSetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finx_cache_sets_total",
		Help: "Total number of responses stored",
	})

	CacheDeletesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finx_cache_deletes_total",
		Help: "Total number of explicit cache deletes",
	})

	CacheEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finx_cache_evictions_total",
		Help: "Total number of responses evicted by capacity pressure",
	})

	CacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "finx_cache_size",
		Help: "Number of responses held by the most recently written LRU cache",
	})
)
