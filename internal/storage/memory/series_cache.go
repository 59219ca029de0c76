package memory

import (
	"context"
	"sync"

	"leadlag-scanner/internal/domain"
	"leadlag-scanner/internal/storage"
)

// SeriesCache is an in-memory implementation of storage.SeriesCache.
// Reads take a shared lock so concurrent gets never block each other.
type SeriesCache struct {
	mu   sync.RWMutex
	data map[string]*domain.CacheEntry // keyed by CacheKey.String()
}

// NewSeriesCache creates a new in-memory series cache.
func NewSeriesCache() *SeriesCache {
	return &SeriesCache{
		data: make(map[string]*domain.CacheEntry),
	}
}

// Compile-time interface check.
var _ storage.SeriesCache = (*SeriesCache)(nil)

// Get retrieves the entry for a key. Returns ErrNotFound if absent.
func (c *SeriesCache) Get(_ context.Context, key domain.CacheKey) (*domain.CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.data[key.String()]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyEntry(e), nil
}

// Put stores or replaces the entry for e.Key. Last writer wins.
func (c *SeriesCache) Put(_ context.Context, e *domain.CacheEntry) error {
	if e == nil || e.Series == nil {
		return storage.ErrInvalidInput
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[e.Key.String()] = copyEntry(e)
	return nil
}

// copyEntry deep-copies an entry so callers never share the cache's points.
func copyEntry(e *domain.CacheEntry) *domain.CacheEntry {
	return &domain.CacheEntry{
		Key:           e.Key,
		Series:        e.Series.Clone(),
		RetrievedAtMs: e.RetrievedAtMs,
	}
}
