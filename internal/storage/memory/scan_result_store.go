package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"leadlag-scanner/internal/domain"
	"leadlag-scanner/internal/storage"
)

// ScanResultStore is an in-memory implementation of storage.ScanResultStore.
type ScanResultStore struct {
	mu      sync.RWMutex
	records []*domain.ScanRecord
}

// NewScanResultStore creates a new in-memory scan result store.
func NewScanResultStore() *ScanResultStore {
	return &ScanResultStore{}
}

// Compile-time interface check.
var _ storage.ScanResultStore = (*ScanResultStore)(nil)

// InsertBulk stores all records of one scan.
func (s *ScanResultStore) InsertBulk(_ context.Context, records []*domain.ScanRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil || r.ScanID == "" || r.Series == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		recordCopy := *r
		s.records = append(s.records, &recordCopy)
	}
	return nil
}

// GetByScanID retrieves all records for a scan in ranking order.
func (s *ScanResultStore) GetByScanID(_ context.Context, scanID string) ([]*domain.ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ScanRecord
	for _, r := range s.records {
		if r.ScanID == scanID {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if math.Abs(a.Corr) != math.Abs(b.Corr) {
			return math.Abs(a.Corr) > math.Abs(b.Corr)
		}
		if a.SampleSize != b.SampleSize {
			return a.SampleSize > b.SampleSize
		}
		la, lb := absInt(a.Lag), absInt(b.Lag)
		if la != lb {
			return la < lb
		}
		return a.Series < b.Series
	})

	return result, nil
}

// GetRecentScanIDs returns up to limit distinct scan IDs, newest first.
func (s *ScanResultStore) GetRecentScanIDs(_ context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]int64)
	for _, r := range s.records {
		if ts, ok := latest[r.ScanID]; !ok || r.CreatedAtMs > ts {
			latest[r.ScanID] = r.CreatedAtMs
		}
	}

	ids := make([]string, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if latest[ids[i]] != latest[ids[j]] {
			return latest[ids[i]] > latest[ids[j]]
		}
		return ids[i] < ids[j]
	})

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
