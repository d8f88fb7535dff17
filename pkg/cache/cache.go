package cache

import (
	"fmt"

	"github.com/fiteanalytics/finx-go/pkg/types"
	"go.uber.org/zap"
)

// DefaultSize is the number of responses kept when no size is configured.
const DefaultSize = 100

// Supported cache backends.
const (
	BackendLRU       = "lru"
	BackendRistretto = "ristretto"
)

// Cache is the interface for the response cache.
type Cache interface {
	// Get retrieves a response from the cache.
	// Returns (resp, true) if found, (nil, false) if not found.
	Get(key string) (*types.Response, bool)

	// Set stores a response, evicting older entries when the cache is full.
	Set(key string, resp *types.Response)

	// Delete removes a response from the cache.
	Delete(key string)

	// Len returns the number of cached responses.
	Len() int

	// Clear removes all responses from the cache.
	Clear()

	// Close closes the cache and releases resources.
	Close()
}

// Config selects and sizes a cache backend.
type Config struct {
	Backend string
	Size    int
	Logger  *zap.Logger
}

// Factory builds an empty cache. The dispatcher keeps one so ClearCache can swap in
// a fresh instance of the same shape.
type Factory func() (Cache, error)

// New builds a cache for cfg.
func New(cfg Config) (Cache, error) {
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	switch cfg.Backend {
	case "", BackendLRU:
		return NewLRUCache(cfg.Size, cfg.Logger)
	case BackendRistretto:
		return NewRistrettoCache(&RistrettoConfig{
			NumCounters: int64(cfg.Size) * 10,
			MaxCost:     int64(cfg.Size),
			BufferItems: 64,
			Logger:      cfg.Logger,
		})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// NewFactory returns a Factory that builds caches from cfg.
func NewFactory(cfg Config) Factory {
	return func() (Cache, error) {
		return New(cfg)
	}
}
