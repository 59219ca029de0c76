package domain

import "fmt"

// CacheKey identifies a cached raw series by (source, symbol, resolution).
type CacheKey struct {
	Source     string
	Symbol     string
	Resolution Resolution
}

// String renders the key in its canonical "source|symbol|resolution" form,
// used as the primary key by cache backends.
func (k CacheKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Source, k.Symbol, k.Resolution)
}

// CacheKeyForSpec derives the cache key for a series spec.
func CacheKeyForSpec(spec SeriesSpec) CacheKey {
	return CacheKey{Source: spec.Source, Symbol: spec.Symbol, Resolution: spec.Resolution}
}

// CacheEntry is a previously fetched raw series plus its retrieval timestamp.
// The cache owns its entries; callers receive copies.
type CacheEntry struct {
	Key           CacheKey
	Series        *RawSeries
	RetrievedAtMs int64 // Unix milliseconds at fetch completion
}
