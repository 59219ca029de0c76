package correlate

import (
	"gonum.org/v1/gonum/stat"

	"leadlag-scanner/internal/domain"
)

// Composite builds the composite signal from ranked lead-lag results: each
// result's candidate column is z-scored over its observed cells, shifted
// forward by the result's lag, and the shifted columns are summed per
// calendar point. Missing contributions are skipped; a point where no
// candidate contributes sums to zero.
func Composite(matrix *domain.AlignedMatrix, results []domain.LagResult) []domain.CompositePoint {
	if matrix == nil || matrix.Len() == 0 || len(results) == 0 {
		return nil
	}

	length := matrix.Len()
	sums := make([]float64, length)

	for _, r := range results {
		column := matrix.Column(r.Series)
		if column == nil {
			continue
		}
		z, ok := zscoreColumn(column)
		if !ok {
			continue
		}
		for t := 0; t < length; t++ {
			src := t - r.Lag
			if src < 0 || src >= length || domain.IsMissing(z[src]) {
				continue
			}
			sums[t] += z[src]
		}
	}

	points := make([]domain.CompositePoint, length)
	for t := 0; t < length; t++ {
		points[t] = domain.CompositePoint{TimestampMs: matrix.CalendarMs[t], Value: sums[t]}
	}
	return points
}

// zscoreColumn standardizes a column over its observed cells only, keeping
// missing cells missing. Returns false when the observed cells are
// (near-)constant.
func zscoreColumn(column []float64) ([]float64, bool) {
	observed := make([]float64, 0, len(column))
	for _, v := range column {
		if !domain.IsMissing(v) {
			observed = append(observed, v)
		}
	}
	if len(observed) < 2 {
		return nil, false
	}

	mean, std := stat.MeanStdDev(observed, nil)
	if std < zeroVarianceEpsilon {
		return nil, false
	}

	z := make([]float64, len(column))
	for i, v := range column {
		if domain.IsMissing(v) {
			z[i] = domain.Missing
			continue
		}
		z[i] = (v - mean) / std
	}
	return z, true
}
