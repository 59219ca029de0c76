// Package stub provides a fixed in-memory fetcher for tests.
package stub

import (
	"context"
	"sync"

	"leadlag-scanner/internal/domain"
	"leadlag-scanner/internal/fetch"
)

// Fetcher returns fixed in-memory series keyed by symbol, or a configured
// error. Implements fetch.Fetcher. Call counts are tracked per symbol so
// tests can assert cache and dedup behavior.
type Fetcher struct {
	mu     sync.Mutex
	series map[string][]domain.Observation // keyed by symbol
	errs   map[string]error                // per-symbol failure, takes precedence
	calls  map[string]int
}

// NewFetcher creates a stub fetcher with the given per-symbol observations.
func NewFetcher(series map[string][]domain.Observation) *Fetcher {
	return &Fetcher{
		series: series,
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

// Compile-time interface check.
var _ fetch.Fetcher = (*Fetcher)(nil)

// FailWith makes every fetch for symbol return err.
func (f *Fetcher) FailWith(symbol string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[symbol] = err
}

// Calls returns how many times symbol was fetched.
func (f *Fetcher) Calls(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[symbol]
}

// Fetch returns copies of the configured observations inside the window.
func (f *Fetcher) Fetch(_ context.Context, spec domain.SeriesSpec, startMs, endMs int64) (*domain.RawSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[spec.Symbol]++

	if err, ok := f.errs[spec.Symbol]; ok {
		return nil, err
	}

	var points []domain.Observation
	for _, p := range f.series[spec.Symbol] {
		if p.TimestampMs >= startMs && p.TimestampMs <= endMs {
			points = append(points, p)
		}
	}
	return &domain.RawSeries{Name: spec.Name, Points: points}, nil
}
