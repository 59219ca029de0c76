package reporting

import (
	"context"
	"fmt"
	"time"

	"leadlag-scanner/internal/domain"
	"leadlag-scanner/internal/storage"
)

// Generator produces reports from scan output or stored scan history.
type Generator struct {
	resultStore storage.ScanResultStore
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator. The result store may be nil when
// only live ScanResult rendering is needed.
func NewGenerator(resultStore storage.ScanResultStore) *Generator {
	return &Generator{
		resultStore: resultStore,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// FromScanResult builds a report from a freshly produced scan result.
func (g *Generator) FromScanResult(result *domain.ScanResult) *Report {
	report := &Report{
		GeneratedAt: g.now(),
		ScanID:      result.ScanID,
		Resolution:  string(result.Resolution),
		CalendarLen: result.CalendarLen,
	}

	for i, r := range result.Results {
		if i == 0 {
			report.Target = r.Target
		}
		report.Results = append(report.Results, ResultRow{
			Rank:       i + 1,
			Series:     r.Series,
			Target:     r.Target,
			Lag:        r.Lag,
			Corr:       r.Corr,
			SampleSize: r.SampleSize,
			Strength:   r.Strength(),
		})
	}

	for _, d := range result.Diagnostics {
		report.Diagnostics = append(report.Diagnostics, DiagnosticRow{
			Series:       d.Name,
			Source:       d.Source,
			Status:       d.Status,
			Retries:      d.Retries,
			Observations: d.Observations,
			Reason:       d.Reason,
		})
	}

	for _, p := range result.Composite {
		report.Composite = append(report.Composite, CompositeRow{
			TimestampMs: p.TimestampMs,
			Value:       p.Value,
		})
	}

	return report
}

// FromHistory loads a persisted scan from the result store and builds a
// report. Composite points and diagnostics are not persisted, so history
// reports carry ranked results only.
func (g *Generator) FromHistory(ctx context.Context, scanID string) (*Report, error) {
	if g.resultStore == nil {
		return nil, fmt.Errorf("no result store configured")
	}

	records, err := g.resultStore.GetByScanID(ctx, scanID)
	if err != nil {
		return nil, fmt.Errorf("load scan %s: %w", scanID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("load scan %s: %w", scanID, storage.ErrNotFound)
	}

	report := &Report{
		GeneratedAt: g.now(),
		ScanID:      scanID,
		Target:      records[0].Target,
	}
	for i, r := range records {
		report.Results = append(report.Results, ResultRow{
			Rank:       i + 1,
			Series:     r.Series,
			Target:     r.Target,
			Lag:        r.Lag,
			Corr:       r.Corr,
			SampleSize: r.SampleSize,
			Strength:   r.Strength,
		})
	}
	return report, nil
}

// RecentScanIDs lists the most recent persisted scans, newest first.
func (g *Generator) RecentScanIDs(ctx context.Context, limit int) ([]string, error) {
	if g.resultStore == nil {
		return nil, fmt.Errorf("no result store configured")
	}
	return g.resultStore.GetRecentScanIDs(ctx, limit)
}
