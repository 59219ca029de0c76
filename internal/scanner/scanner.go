// Package scanner provides end-to-end scan orchestration.
// It coordinates: fetch → alignment → correlation → composite → persistence.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"leadlag-scanner/internal/align"
	"leadlag-scanner/internal/correlate"
	"leadlag-scanner/internal/domain"
	"leadlag-scanner/internal/fetch"
	"leadlag-scanner/internal/observability"
	"leadlag-scanner/internal/storage"
)

// Scanner runs one lead-lag scan end to end. The fetch phase tolerates
// per-series failures; the scan only fails outright when nothing at all
// could be fetched and aligned, or when the target series itself is lost.
type Scanner struct {
	coordinator *fetch.Coordinator
	resultStore storage.ScanResultStore
	logger      zerolog.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

// Options for creating a Scanner.
type Options struct {
	// Coordinator is required.
	Coordinator *fetch.Coordinator

	// ResultStore is optional; when set, ranked results of requests that
	// carry a ScanID are persisted after a successful scan.
	ResultStore storage.ScanResultStore

	Logger zerolog.Logger

	// Metrics is optional; nil disables instrumentation.
	Metrics *observability.Metrics
}

// New creates a Scanner.
func New(opts Options) *Scanner {
	return &Scanner{
		coordinator: opts.Coordinator,
		resultStore: opts.ResultStore,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		now:         time.Now,
	}
}

// Run executes a full scan.
// Phases:
//  1. Fetch every requested series through the coordinator.
//  2. Align fetched series onto the common calendar.
//  3. Correlate every candidate against the target across the lag window.
//  4. Build the composite signal from the ranked results.
//  5. Persist ranked results when a result store and ScanID are configured.
func (s *Scanner) Run(ctx context.Context, req domain.ScanRequest) (*domain.ScanResult, error) {
	started := s.now()
	result, err := s.run(ctx, req)
	if s.metrics != nil {
		s.metrics.ScanDuration.Observe(s.now().Sub(started).Seconds())
		if err != nil {
			s.metrics.ScansTotal.WithLabelValues("failed").Inc()
		} else {
			s.metrics.ScansTotal.WithLabelValues("ok").Inc()
			s.metrics.LastSuccessfulScan.Set(float64(s.now().Unix()))
		}
	}
	return result, err
}

func (s *Scanner) run(ctx context.Context, req domain.ScanRequest) (*domain.ScanResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	resolution := req.Resolution
	if resolution == "" {
		resolution = domain.CoarsestResolution(req.Specs)
	}

	s.logger.Info().
		Str("scan_id", req.ScanID).
		Str("target", req.Target).
		Int("series", len(req.Specs)).
		Str("resolution", string(resolution)).
		Msg("scan started")

	// Phase 1: fetch.
	outcomes := s.coordinator.FetchAll(ctx, req.Specs, req.StartMs, req.EndMs, req.ForceRefresh)
	diagnostics := make(map[string]*domain.FetchDiagnostic, len(req.Specs))
	inputs := make([]align.Input, 0, len(req.Specs))

	for _, spec := range req.Specs {
		outcome, ok := outcomes[spec.Name]
		if !ok {
			// The coordinator guarantees one outcome per spec; treat a
			// gap as a failure rather than panicking.
			diagnostics[spec.Name] = &domain.FetchDiagnostic{
				Name:   spec.Name,
				Source: spec.Source,
				Status: domain.FetchStatusFailed,
				Reason: "no outcome produced",
			}
			continue
		}

		d := &domain.FetchDiagnostic{
			Name:    spec.Name,
			Source:  spec.Source,
			Retries: outcome.Retries,
		}
		if outcome.Err != nil {
			d.Status = domain.FetchStatusFailed
			d.Reason = outcome.Err.Error()
			diagnostics[spec.Name] = d
			continue
		}

		d.Status = domain.FetchStatusFetched
		if outcome.FromCache {
			d.Status = domain.FetchStatusCached
		}
		d.Observations = len(outcome.Series.Points)
		diagnostics[spec.Name] = d
		inputs = append(inputs, align.Input{Spec: spec, Series: outcome.Series})
	}

	// Phase 2: align.
	matrix, alignDiags, err := align.Align(inputs, req.StartMs, req.EndMs, resolution)
	if err != nil {
		return nil, fmt.Errorf("alignment failed: %w", err)
	}
	for _, ad := range alignDiags {
		if d, ok := diagnostics[ad.Series]; ok {
			d.Status = domain.FetchStatusExcluded
			d.Reason = ad.Reason.Error()
		}
		if s.metrics != nil {
			s.metrics.SeriesExcluded.WithLabelValues(ad.Reason.Error()).Inc()
		}
	}

	if matrix.NumSeries() == 0 {
		return nil, errors.New("scan failed: no series could be fetched and aligned")
	}
	if !matrix.HasColumn(req.Target) {
		return nil, fmt.Errorf("scan failed: target series %q could not be fetched and aligned", req.Target)
	}

	// Phase 3: correlate.
	results, skips, err := correlate.Scan(matrix, correlate.Params{
		Target:     req.Target,
		MaxLag:     req.MaxLag,
		TopN:       req.TopN,
		MinSamples: req.MinSamples,
	})
	if err != nil {
		return nil, fmt.Errorf("correlation failed: %w", err)
	}
	for _, skip := range skips {
		if d, ok := diagnostics[skip.Series]; ok {
			d.Status = domain.FetchStatusSkipped
			d.Reason = skip.Reason.Error()
		}
		if s.metrics != nil {
			s.metrics.SeriesExcluded.WithLabelValues(skip.Reason.Error()).Inc()
		}
	}
	if s.metrics != nil {
		s.metrics.SeriesAligned.Set(float64(matrix.NumSeries()))
		s.metrics.PairsEvaluated.Add(float64(matrix.NumSeries() - 1))
		s.metrics.ResultsReturned.Set(float64(len(results)))
	}

	// Phase 4: composite signal.
	composite := correlate.Composite(matrix, results)

	result := &domain.ScanResult{
		ScanID:      req.ScanID,
		Results:     results,
		Composite:   composite,
		Diagnostics: orderedDiagnostics(req.Specs, diagnostics),
		CalendarLen: matrix.Len(),
		Resolution:  resolution,
	}

	// Phase 5: persist ranked results.
	if s.resultStore != nil && req.ScanID != "" && len(results) > 0 {
		if err := s.persist(ctx, req, results); err != nil {
			// A storage failure must not discard an otherwise good scan.
			s.logger.Error().Err(err).Str("scan_id", req.ScanID).Msg("failed to persist scan results")
			if s.metrics != nil {
				s.metrics.PersistErrors.Inc()
			}
		} else if s.metrics != nil {
			s.metrics.ResultsPersisted.Add(float64(len(results)))
		}
	}

	s.logger.Info().
		Str("scan_id", req.ScanID).
		Int("ranked", len(results)).
		Int("aligned_series", matrix.NumSeries()).
		Int("calendar_len", matrix.Len()).
		Msg("scan finished")

	return result, nil
}

func (s *Scanner) persist(ctx context.Context, req domain.ScanRequest, results []domain.LagResult) error {
	createdAt := s.now().UnixMilli()
	records := make([]*domain.ScanRecord, 0, len(results))
	for _, r := range results {
		records = append(records, &domain.ScanRecord{
			ScanID:      req.ScanID,
			CreatedAtMs: createdAt,
			Target:      r.Target,
			Series:      r.Series,
			Lag:         r.Lag,
			Corr:        r.Corr,
			SampleSize:  r.SampleSize,
			Strength:    r.Strength(),
		})
	}
	return s.resultStore.InsertBulk(ctx, records)
}

func validateRequest(req domain.ScanRequest) error {
	if len(req.Specs) == 0 {
		return errors.New("scan request has no series specs")
	}
	if req.Target == "" {
		return errors.New("scan request has no target series")
	}
	if req.StartMs > req.EndMs {
		return errors.New("scan window start is after window end")
	}
	if req.MaxLag < 0 {
		return errors.New("scan max lag must be non-negative")
	}
	if req.Resolution != "" && !req.Resolution.Valid() {
		return fmt.Errorf("invalid scan resolution %q", req.Resolution)
	}

	found := false
	for _, spec := range req.Specs {
		if spec.Name == req.Target {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("target series %q is not among the requested specs", req.Target)
	}
	return nil
}

// orderedDiagnostics returns diagnostics in request order, so scan output is
// stable regardless of fetch completion order.
func orderedDiagnostics(specs []domain.SeriesSpec, byName map[string]*domain.FetchDiagnostic) []domain.FetchDiagnostic {
	out := make([]domain.FetchDiagnostic, 0, len(byName))
	for _, spec := range specs {
		if d, ok := byName[spec.Name]; ok {
			out = append(out, *d)
		}
	}
	return out
}
