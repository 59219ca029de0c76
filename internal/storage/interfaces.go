package storage

import (
	"context"

	"leadlag-scanner/internal/domain"
)

// SeriesCache is a durable key-value store of fetched raw series. Writes for
// the same key replace the previous entry (last-writer-wins is acceptable
// since entries are idempotent within a TTL window); writes for distinct
// keys must not block each other.
type SeriesCache interface {
	// Get retrieves the entry for a key. Returns ErrNotFound if absent.
	// Staleness is the caller's concern; Get never filters by age.
	Get(ctx context.Context, key domain.CacheKey) (*domain.CacheEntry, error)

	// Put stores or replaces the entry for e.Key.
	Put(ctx context.Context, e *domain.CacheEntry) error
}

// ScanResultStore persists ranked lead-lag results so repeated scans can be
// compared over time.
type ScanResultStore interface {
	// InsertBulk stores all records of one scan.
	InsertBulk(ctx context.Context, records []*domain.ScanRecord) error

	// GetByScanID retrieves all records for a scan, ordered by
	// |corr| DESC, sample_size DESC, |lag| ASC, series ASC.
	GetByScanID(ctx context.Context, scanID string) ([]*domain.ScanRecord, error)

	// GetRecentScanIDs returns up to limit distinct scan IDs, newest first.
	GetRecentScanIDs(ctx context.Context, limit int) ([]string, error)
}
