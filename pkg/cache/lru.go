package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/fiteanalytics/finx-go/pkg/types"
)

// LRUCache is a strict least-recently-used cache. Get refreshes recency and the
// oldest entry is evicted once the size bound is reached.
type LRUCache struct {
	cache  *lru.Cache[string, *types.Response]
	size   int
	logger *zap.Logger
}

// NewLRUCache creates an LRU cache holding at most size responses.
func NewLRUCache(size int, logger *zap.Logger) (*LRUCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &LRUCache{size: size, logger: logger}

	cache, err := lru.NewWithEvict[string, *types.Response](size, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.cache = cache

	CacheSize.Set(0)

	return c, nil
}

// Get retrieves a response and marks it most recently used.
func (c *LRUCache) Get(key string) (*types.Response, bool) {
	resp, found := c.cache.Get(key)
	if found {
		CacheHitsTotal.Inc()
		c.logger.Debug("cache-hit", zap.String("key", key))
	} else {
		CacheMissesTotal.Inc()
		c.logger.Debug("cache-miss", zap.String("key", key))
	}
	return resp, found
}

// Set stores a response, replacing any previous entry for key.
func (c *LRUCache) Set(key string, resp *types.Response) {
	c.cache.Add(key, resp)
	CacheSetsTotal.Inc()
	CacheSize.Set(float64(c.cache.Len()))
	c.logger.Debug("cache-set",
		zap.String("key", key),
		zap.Bool("error", resp.IsError()))
}

// Delete removes a response.
func (c *LRUCache) Delete(key string) {
	c.cache.Remove(key)
	CacheDeletesTotal.Inc()
	CacheSize.Set(float64(c.cache.Len()))
	c.logger.Debug("cache-delete", zap.String("key", key))
}

// Len returns the number of cached responses.
func (c *LRUCache) Len() int {
	return c.cache.Len()
}

// Keys returns the cached keys from oldest to newest.
func (c *LRUCache) Keys() []string {
	return c.cache.Keys()
}

// Clear removes all responses.
func (c *LRUCache) Clear() {
	c.cache.Purge()
	CacheSize.Set(0)
	c.logger.Info("cache-cleared", zap.Int("size", c.size))
}

// Close releases the cache contents.
func (c *LRUCache) Close() {
	c.cache.Purge()
}

func (c *LRUCache) onEvict(key string, _ *types.Response) {
	CacheEvictionsTotal.Inc()
	c.logger.Debug("cache-evict", zap.String("key", key))
}
