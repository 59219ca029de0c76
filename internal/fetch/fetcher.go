package fetch

import (
	"context"

	"leadlag-scanner/internal/domain"
)

// Fetcher retrieves a raw time series from one upstream source.
// Implementations must be safe for concurrent use across different specs;
// the coordinator deduplicates concurrent requests for the same spec.
type Fetcher interface {
	// Fetch returns observations for spec within [startMs, endMs]
	// (inclusive, Unix ms). Failures are *FetchError values.
	Fetch(ctx context.Context, spec domain.SeriesSpec, startMs, endMs int64) (*domain.RawSeries, error)
}

// Registry maps a source name to its fetcher. Assembled once at startup by
// the caller and passed into the coordinator; never mutated afterwards.
type Registry map[string]Fetcher
