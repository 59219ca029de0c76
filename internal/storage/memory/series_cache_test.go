package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"leadlag-scanner/internal/domain"
	"leadlag-scanner/internal/storage"
)

func testEntry(symbol string, retrievedAtMs int64) *domain.CacheEntry {
	return &domain.CacheEntry{
		Key: domain.CacheKey{Source: domain.SourceBinance, Symbol: symbol, Resolution: domain.ResolutionDaily},
		Series: &domain.RawSeries{
			Name: symbol,
			Points: []domain.Observation{
				{TimestampMs: 0, Value: 1.5},
				{TimestampMs: 86400000, Value: 2.5},
			},
		},
		RetrievedAtMs: retrievedAtMs,
	}
}

func TestSeriesCache_PutAndGet(t *testing.T) {
	cache := NewSeriesCache()
	ctx := context.Background()

	entry := testEntry("BTCUSDT", 1000)
	if err := cache.Put(ctx, entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := cache.Get(ctx, entry.Key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.RetrievedAtMs != 1000 {
		t.Errorf("RetrievedAtMs mismatch: got %d, want 1000", got.RetrievedAtMs)
	}
	if len(got.Series.Points) != 2 {
		t.Errorf("Points length mismatch: got %d, want 2", len(got.Series.Points))
	}
}

func TestSeriesCache_GetMissing(t *testing.T) {
	cache := NewSeriesCache()

	_, err := cache.Get(context.Background(), domain.CacheKey{Source: "binance", Symbol: "NOPE", Resolution: domain.ResolutionDaily})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSeriesCache_LastWriterWins(t *testing.T) {
	cache := NewSeriesCache()
	ctx := context.Background()

	if err := cache.Put(ctx, testEntry("BTCUSDT", 1000)); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	if err := cache.Put(ctx, testEntry("BTCUSDT", 2000)); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	got, err := cache.Get(ctx, testEntry("BTCUSDT", 0).Key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.RetrievedAtMs != 2000 {
		t.Errorf("expected replacement entry, got RetrievedAtMs=%d", got.RetrievedAtMs)
	}
}

func TestSeriesCache_RejectsNilSeries(t *testing.T) {
	cache := NewSeriesCache()

	err := cache.Put(context.Background(), &domain.CacheEntry{Key: domain.CacheKey{Source: "fred", Symbol: "X", Resolution: domain.ResolutionDaily}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSeriesCache_CopyOnRead(t *testing.T) {
	cache := NewSeriesCache()
	ctx := context.Background()

	if err := cache.Put(ctx, testEntry("BTCUSDT", 1000)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	key := testEntry("BTCUSDT", 0).Key
	got, _ := cache.Get(ctx, key)
	got.Series.Points[0].Value = 999

	again, _ := cache.Get(ctx, key)
	if again.Series.Points[0].Value == 999 {
		t.Error("mutation through a returned entry leaked into the cache")
	}
}

func TestSeriesCache_ConcurrentAccess(t *testing.T) {
	cache := NewSeriesCache()
	ctx := context.Background()

	var wg sync.WaitGroup
	symbols := []string{"A", "B", "C", "D"}
	for _, sym := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = cache.Put(ctx, testEntry(sym, int64(i)))
				_, _ = cache.Get(ctx, testEntry(sym, 0).Key)
			}
		}(sym)
	}
	wg.Wait()

	for _, sym := range symbols {
		if _, err := cache.Get(ctx, testEntry(sym, 0).Key); err != nil {
			t.Errorf("missing entry for %s after concurrent writes: %v", sym, err)
		}
	}
}
