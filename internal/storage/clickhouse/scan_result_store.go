package clickhouse

import (
	"context"
	"fmt"

	"leadlag-scanner/internal/domain"
	"leadlag-scanner/internal/storage"
)

// ScanResultStore implements storage.ScanResultStore using ClickHouse.
// The table is a ReplacingMergeTree keyed by (scan_id, series), so
// re-persisting a scan replaces its rows rather than duplicating them.
type ScanResultStore struct {
	conn *Conn
}

// NewScanResultStore creates a new ScanResultStore.
func NewScanResultStore(conn *Conn) *ScanResultStore {
	return &ScanResultStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ScanResultStore = (*ScanResultStore)(nil)

// InsertBulk stores all records of one scan.
func (s *ScanResultStore) InsertBulk(ctx context.Context, records []*domain.ScanRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil || r.ScanID == "" || r.Series == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO scan_results (
			scan_id, created_at_ms, target, series, lag, corr, sample_size, strength
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.ScanID, uint64(r.CreatedAtMs), r.Target, r.Series,
			int32(r.Lag), r.Corr, uint32(r.SampleSize), r.Strength,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByScanID retrieves all records for a scan in ranking order.
func (s *ScanResultStore) GetByScanID(ctx context.Context, scanID string) ([]*domain.ScanRecord, error) {
	query := `
		SELECT scan_id, created_at_ms, target, series, lag, corr, sample_size, strength
		FROM scan_results FINAL
		WHERE scan_id = ?
		ORDER BY abs(corr) DESC, sample_size DESC, abs(lag) ASC, series ASC
	`

	rows, err := s.conn.Query(ctx, query, scanID)
	if err != nil {
		return nil, fmt.Errorf("query by scan id: %w", err)
	}
	defer rows.Close()

	var result []*domain.ScanRecord
	for rows.Next() {
		var (
			r          domain.ScanRecord
			createdAt  uint64
			lag        int32
			sampleSize uint32
		)
		if err := rows.Scan(&r.ScanID, &createdAt, &r.Target, &r.Series,
			&lag, &r.Corr, &sampleSize, &r.Strength); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.CreatedAtMs = int64(createdAt)
		r.Lag = int(lag)
		r.SampleSize = int(sampleSize)
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return result, nil
}

// GetRecentScanIDs returns up to limit distinct scan IDs, newest first.
func (s *ScanResultStore) GetRecentScanIDs(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT scan_id, max(created_at_ms) AS latest
		FROM scan_results
		GROUP BY scan_id
		ORDER BY latest DESC, scan_id ASC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, uint64(limit))
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent scan ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var (
			id     string
			latest uint64
		)
		if err := rows.Scan(&id, &latest); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return ids, nil
}
