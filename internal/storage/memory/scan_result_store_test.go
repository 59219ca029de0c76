package memory

import (
	"context"
	"errors"
	"testing"

	"leadlag-scanner/internal/domain"
	"leadlag-scanner/internal/storage"
)

func record(scanID, series string, createdAtMs int64, lag int, corr float64, samples int) *domain.ScanRecord {
	return &domain.ScanRecord{
		ScanID:      scanID,
		CreatedAtMs: createdAtMs,
		Target:      "btc",
		Series:      series,
		Lag:         lag,
		Corr:        corr,
		SampleSize:  samples,
		Strength:    "strong",
	}
}

func TestScanResultStore_InsertAndGet(t *testing.T) {
	store := NewScanResultStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.ScanRecord{
		record("scan-1", "gold", 1000, 3, 0.9, 100),
		record("scan-1", "sent", 1000, 1, -0.5, 90),
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByScanID(ctx, "scan-1")
	if err != nil {
		t.Fatalf("GetByScanID failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
}

func TestScanResultStore_RankingOrder(t *testing.T) {
	store := NewScanResultStore()
	ctx := context.Background()

	// Insert out of ranking order on purpose.
	err := store.InsertBulk(ctx, []*domain.ScanRecord{
		record("scan-1", "weak", 1000, 1, 0.3, 100),
		record("scan-1", "negstrong", 1000, 2, -0.95, 100),
		record("scan-1", "strong", 1000, 5, 0.95, 100),  // same |corr|, same samples, larger |lag|
		record("scan-1", "bigger_n", 1000, 1, 0.3, 200), // same |corr| as weak, more samples
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByScanID(ctx, "scan-1")
	if err != nil {
		t.Fatalf("GetByScanID failed: %v", err)
	}

	wantOrder := []string{"negstrong", "strong", "bigger_n", "weak"}
	for i, want := range wantOrder {
		if got[i].Series != want {
			t.Errorf("position %d: got %s, want %s", i, got[i].Series, want)
		}
	}
}

func TestScanResultStore_GetMissingScan(t *testing.T) {
	store := NewScanResultStore()

	got, err := store.GetByScanID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetByScanID failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}
}

func TestScanResultStore_RejectsInvalidRecords(t *testing.T) {
	store := NewScanResultStore()

	err := store.InsertBulk(context.Background(), []*domain.ScanRecord{
		record("", "gold", 1000, 1, 0.5, 10),
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestScanResultStore_RecentScanIDs(t *testing.T) {
	store := NewScanResultStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.ScanRecord{
		record("scan-old", "gold", 1000, 1, 0.5, 10),
		record("scan-mid", "gold", 2000, 1, 0.5, 10),
		record("scan-new", "gold", 3000, 1, 0.5, 10),
	}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	ids, err := store.GetRecentScanIDs(ctx, 2)
	if err != nil {
		t.Fatalf("GetRecentScanIDs failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}
	if ids[0] != "scan-new" || ids[1] != "scan-mid" {
		t.Errorf("unexpected order: %v", ids)
	}
}

func TestScanResultStore_CopyOnRead(t *testing.T) {
	store := NewScanResultStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.ScanRecord{record("scan-1", "gold", 1000, 3, 0.9, 100)}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, _ := store.GetByScanID(ctx, "scan-1")
	got[0].Corr = -1

	again, _ := store.GetByScanID(ctx, "scan-1")
	if again[0].Corr == -1 {
		t.Error("mutation through a returned record leaked into the store")
	}
}
