package align

import (
	"errors"
	"sort"

	"leadlag-scanner/internal/domain"
)

// Exclusion reasons. A series excluded from alignment is reported through a
// Diagnostic rather than failing the whole alignment.
var (
	// ErrNoOverlap indicates a series has no observation inside the scan window.
	ErrNoOverlap = errors.New("series has no overlap with the scan window")

	// ErrInsufficientResolution indicates the requested calendar is finer than
	// the series' native resolution, so the series cannot fill it honestly.
	ErrInsufficientResolution = errors.New("series resolution is coarser than the target calendar")
)

// Diagnostic records why a series was excluded from the aligned matrix.
type Diagnostic struct {
	Series string
	Reason error
}

// Input pairs a fetched series with the spec it was fetched for. The spec
// carries the series' native resolution, which alignment needs to decide
// whether the series can populate the target calendar.
type Input struct {
	Spec   domain.SeriesSpec
	Series *domain.RawSeries
}

// Align projects a set of raw series onto one shared calendar.
//
// The calendar covers [startMs, endMs] at the target resolution. Each series
// becomes a column of len(calendar) cells; a cell holds the last observation
// whose period matches the calendar slot, or domain.Missing when the period
// has no observation. Gaps are never filled from neighboring periods.
//
// Series that cannot participate are excluded with a Diagnostic: a series
// whose native resolution is coarser than the target calendar, or a series
// with no observation inside the window. Align itself only fails on an
// invalid window; an empty matrix is the caller's condition to judge.
func Align(inputs []Input, startMs, endMs int64, target domain.Resolution) (*domain.AlignedMatrix, []Diagnostic, error) {
	if startMs > endMs {
		return nil, nil, errors.New("align: window start is after window end")
	}
	if !target.Valid() {
		return nil, nil, errors.New("align: invalid target resolution")
	}

	calendar := BuildCalendar(startMs, endMs, target)
	matrix := domain.NewAlignedMatrix(calendar, target)
	diagnostics := make([]Diagnostic, 0)

	for _, in := range inputs {
		if in.Spec.Resolution.CoarserThan(target) {
			diagnostics = append(diagnostics, Diagnostic{Series: in.Spec.Name, Reason: ErrInsufficientResolution})
			continue
		}

		column, filled := bucketColumn(in.Series, calendar, target)
		if !filled {
			diagnostics = append(diagnostics, Diagnostic{Series: in.Spec.Name, Reason: ErrNoOverlap})
			continue
		}

		if !matrix.AddColumn(in.Spec.Name, column) {
			return nil, nil, errors.New("align: column length does not match calendar")
		}
	}

	return matrix, diagnostics, nil
}

// bucketColumn builds one aligned column. Observations are walked in
// timestamp order so that when several fall into the same period, the
// latest one wins (period-end semantics). The second return reports whether
// any cell was populated.
func bucketColumn(series *domain.RawSeries, calendar []int64, target domain.Resolution) ([]float64, bool) {
	column := make([]float64, len(calendar))
	for i := range column {
		column[i] = domain.Missing
	}

	if series == nil || len(series.Points) == 0 || len(calendar) == 0 {
		return column, false
	}

	points := series.Points
	if !sort.SliceIsSorted(points, func(i, j int) bool { return points[i].TimestampMs < points[j].TimestampMs }) {
		sorted := make([]domain.Observation, len(points))
		copy(sorted, points)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].TimestampMs < sorted[j].TimestampMs })
		points = sorted
	}

	filled := false
	for _, obs := range points {
		bucket := BucketStartMs(obs.TimestampMs, target)
		idx := sort.Search(len(calendar), func(i int) bool { return calendar[i] >= bucket })
		if idx >= len(calendar) || calendar[idx] != bucket {
			continue
		}
		column[idx] = obs.Value
		filled = true
	}

	return column, filled
}
