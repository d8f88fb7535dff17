package cache

import (
	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"

	"github.com/fiteanalytics/finx-go/pkg/types"
)

// RistrettoCache is a cache implementation using Ristretto. Admission is
// frequency based, so it bounds memory like the LRU backend but does not
// guarantee strict least-recently-used eviction.
type RistrettoCache struct {
	cache  *ristretto.Cache
	logger *zap.Logger
}

// RistrettoConfig holds configuration for Ristretto cache.
type RistrettoConfig struct {
	NumCounters int64 // Number of keys to track frequency (10x max items)
	MaxCost     int64 // Maximum number of responses
	BufferItems int64 // Number of keys per Get buffer
	Logger      *zap.Logger
}

// NewRistrettoCache creates a new Ristretto-backed cache.
func NewRistrettoCache(cfg *RistrettoConfig) (*RistrettoCache, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     true,
		// Cost counts responses, not bytes.
		IgnoreInternalCost: true,
		OnEvict: func(_ *ristretto.Item) {
			CacheEvictionsTotal.Inc()
		},
	})
	if err != nil {
		return nil, err
	}

	return &RistrettoCache{
		cache:  cache,
		logger: logger,
	}, nil
}

// Get retrieves a response from the cache.
func (r *RistrettoCache) Get(key string) (*types.Response, bool) {
	value, found := r.cache.Get(key)
	if found {
		CacheHitsTotal.Inc()
		r.logger.Debug("cache-hit", zap.String("key", key))
	} else {
		CacheMissesTotal.Inc()
		r.logger.Debug("cache-miss", zap.String("key", key))
		return nil, false
	}

	resp, ok := value.(*types.Response)
	return resp, ok
}

// Set stores a response. Cost is one per entry and entries never expire. The
// write is applied before Set returns so a following Get observes it.
func (r *RistrettoCache) Set(key string, resp *types.Response) {
	if r.cache.Set(key, resp, 1) {
		CacheSetsTotal.Inc()
		r.logger.Debug("cache-set",
			zap.String("key", key),
			zap.Bool("error", resp.IsError()))
	} else {
		r.logger.Debug("cache-set-rejected", zap.String("key", key))
	}
	r.cache.Wait()
}

// Delete removes a response from the cache.
func (r *RistrettoCache) Delete(key string) {
	r.cache.Del(key)
	CacheDeletesTotal.Inc()
	r.logger.Debug("cache-delete", zap.String("key", key))
}

// Len approximates the number of responses held from admission and eviction
// counters. Explicit deletes are not subtracted.
func (r *RistrettoCache) Len() int {
	m := r.cache.Metrics
	if m == nil {
		return 0
	}
	n := int64(m.KeysAdded()) - int64(m.KeysEvicted())
	if n < 0 {
		return 0
	}
	return int(n)
}

// Clear removes all responses from the cache.
func (r *RistrettoCache) Clear() {
	r.cache.Clear()
	r.logger.Info("cache-cleared")
}

// Close closes the cache and releases resources.
func (r *RistrettoCache) Close() {
	r.cache.Close()
}

// Metrics returns Ristretto's internal metrics.
func (r *RistrettoCache) Metrics() *ristretto.Metrics {
	return r.cache.Metrics
}
