package postgres

import (
	"context"
	"fmt"

	"leadlag-scanner/internal/domain"
	"leadlag-scanner/internal/storage"
)

// SeriesCache implements storage.SeriesCache using PostgreSQL. Observations
// are stored as parallel timestamp/value arrays; one row per cache key.
type SeriesCache struct {
	pool *Pool
}

// NewSeriesCache creates a new SeriesCache.
func NewSeriesCache(pool *Pool) *SeriesCache {
	return &SeriesCache{pool: pool}
}

// Compile-time interface check.
var _ storage.SeriesCache = (*SeriesCache)(nil)

// Get retrieves the entry for a key. Returns ErrNotFound if absent.
func (c *SeriesCache) Get(ctx context.Context, key domain.CacheKey) (*domain.CacheEntry, error) {
	query := `
		SELECT series_name, retrieved_at_ms, timestamps_ms, point_values
		FROM series_cache
		WHERE cache_key = $1
	`

	var (
		seriesName    string
		retrievedAtMs int64
		timestamps    []int64
		values        []float64
	)
	err := c.pool.QueryRow(ctx, query, key.String()).
		Scan(&seriesName, &retrievedAtMs, &timestamps, &values)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get cache entry: %w", err)
	}

	if len(timestamps) != len(values) {
		return nil, fmt.Errorf("corrupt cache entry %s: %d timestamps, %d values",
			key.String(), len(timestamps), len(values))
	}

	points := make([]domain.Observation, len(timestamps))
	for i := range timestamps {
		points[i] = domain.Observation{TimestampMs: timestamps[i], Value: values[i]}
	}

	return &domain.CacheEntry{
		Key:           key,
		Series:        &domain.RawSeries{Name: seriesName, Points: points},
		RetrievedAtMs: retrievedAtMs,
	}, nil
}

// Put stores or replaces the entry for e.Key. Last writer wins.
func (c *SeriesCache) Put(ctx context.Context, e *domain.CacheEntry) error {
	if e == nil || e.Series == nil {
		return storage.ErrInvalidInput
	}

	timestamps := make([]int64, len(e.Series.Points))
	values := make([]float64, len(e.Series.Points))
	for i, p := range e.Series.Points {
		timestamps[i] = p.TimestampMs
		values[i] = p.Value
	}

	query := `
		INSERT INTO series_cache (
			cache_key, source, symbol, resolution, series_name,
			retrieved_at_ms, timestamps_ms, point_values
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (cache_key) DO UPDATE SET
			series_name = EXCLUDED.series_name,
			retrieved_at_ms = EXCLUDED.retrieved_at_ms,
			timestamps_ms = EXCLUDED.timestamps_ms,
			point_values = EXCLUDED.point_values
	`

	_, err := c.pool.Exec(ctx, query,
		e.Key.String(),
		e.Key.Source,
		e.Key.Symbol,
		string(e.Key.Resolution),
		e.Series.Name,
		e.RetrievedAtMs,
		timestamps,
		values,
	)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}
