package correlate

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"leadlag-scanner/internal/domain"
)

// zeroVarianceEpsilon is the sample standard deviation below which a series
// is treated as constant over the overlap window. Correlation against a
// constant is undefined, so such lags are skipped instead of producing NaN.
const zeroVarianceEpsilon = 1e-12

// Skip reasons. A (target, candidate) pair that produces no LagResult is
// reported through a Skip rather than failing the scan.
var (
	// ErrZeroVariance indicates one of the two series was constant over
	// every overlap window that had enough samples.
	ErrZeroVariance = errors.New("zero variance over the overlap window")

	// ErrInsufficientSamples indicates no lag produced enough overlapping
	// observations to score reliably.
	ErrInsufficientSamples = errors.New("not enough overlapping observations")
)

// Skip records why a candidate series was excluded from the ranked results.
type Skip struct {
	Series string
	Reason error
}

// Params configures one correlation scan over an aligned matrix.
type Params struct {
	Target     string // column name of the target series
	MaxLag     int    // lag search half-window, in calendar steps
	TopN       int    // number of ranked results to return; <=0 means all
	MinSamples int    // minimum overlapping observations per lag; floor of 2
}

// Scan scores every non-target column of the matrix against the target
// across lags in [-MaxLag, +MaxLag], selects the best lag per candidate, and
// returns the top-N results ranked by absolute correlation descending,
// then sample size descending, then absolute lag ascending.
//
// At lag L the candidate is shifted forward by L steps before comparison: a
// positive best lag means the candidate led the target by that many periods.
// Each lag is scored over its own pairwise-complete overlap, z-scored with
// the sample (N-1) standard deviation of that overlap. Candidates where every
// lag fails the sample floor or the variance check are excluded with a Skip.
func Scan(matrix *domain.AlignedMatrix, params Params) ([]domain.LagResult, []Skip, error) {
	if matrix == nil || matrix.Len() == 0 {
		return nil, nil, errors.New("correlate: empty aligned matrix")
	}
	if !matrix.HasColumn(params.Target) {
		return nil, nil, fmt.Errorf("correlate: target series %q is not in the aligned matrix", params.Target)
	}
	if params.MaxLag < 0 {
		return nil, nil, errors.New("correlate: max lag must be non-negative")
	}
	minSamples := params.MinSamples
	if minSamples < 2 {
		minSamples = 2
	}

	target := matrix.Column(params.Target)

	names := make([]string, 0, matrix.NumSeries())
	for _, name := range matrix.Names {
		if name != params.Target {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	results := make([]domain.LagResult, 0, len(names))
	skips := make([]Skip, 0)

	for _, name := range names {
		candidate := matrix.Column(name)
		best, reason := bestLag(target, candidate, params.MaxLag, minSamples)
		if reason != nil {
			skips = append(skips, Skip{Series: name, Reason: reason})
			continue
		}
		best.Series = name
		best.Target = params.Target
		results = append(results, best)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].AbsCorr() != results[j].AbsCorr() {
			return results[i].AbsCorr() > results[j].AbsCorr()
		}
		if results[i].SampleSize != results[j].SampleSize {
			return results[i].SampleSize > results[j].SampleSize
		}
		if absInt(results[i].Lag) != absInt(results[j].Lag) {
			return absInt(results[i].Lag) < absInt(results[j].Lag)
		}
		return results[i].Series < results[j].Series
	})

	if params.TopN > 0 && len(results) > params.TopN {
		results = results[:params.TopN]
	}
	return results, skips, nil
}

// bestLag scores one candidate against the target at every lag and returns
// the winning LagResult. Ties on absolute correlation resolve to the smaller
// absolute lag, then to the negative (target-leads) lag, keeping the output
// fully deterministic.
func bestLag(target, candidate []float64, maxLag, minSamples int) (domain.LagResult, error) {
	var (
		best      domain.LagResult
		found     bool
		sawEnough bool // at least one lag cleared the sample floor
	)

	for lag := -maxLag; lag <= maxLag; lag++ {
		corr, n, ok := CorrelateAtLag(target, candidate, lag, minSamples)
		if n >= minSamples {
			sawEnough = true
		}
		if !ok {
			continue
		}

		r := domain.LagResult{Lag: lag, Corr: corr, SampleSize: n}
		if !found || betterLag(r, best) {
			best = r
			found = true
		}
	}

	if !found {
		if sawEnough {
			return domain.LagResult{}, ErrZeroVariance
		}
		return domain.LagResult{}, ErrInsufficientSamples
	}
	return best, nil
}

func betterLag(r, best domain.LagResult) bool {
	if r.AbsCorr() != best.AbsCorr() {
		return r.AbsCorr() > best.AbsCorr()
	}
	if absInt(r.Lag) != absInt(best.Lag) {
		return absInt(r.Lag) < absInt(best.Lag)
	}
	return r.Lag < best.Lag
}

// CorrelateAtLag computes the Pearson correlation between the target and the
// candidate shifted forward by lag steps, over the pairwise-complete overlap:
// rows t where both target[t] and candidate[t-lag] are observed. Both
// subsamples are z-scored with the sample standard deviation of the overlap
// before correlating. ok is false when the overlap is below minSamples or
// either side has (near-)zero variance.
func CorrelateAtLag(target, candidate []float64, lag, minSamples int) (corr float64, n int, ok bool) {
	length := len(target)
	xs := make([]float64, 0, length)
	ys := make([]float64, 0, length)

	for t := 0; t < length; t++ {
		src := t - lag
		if src < 0 || src >= len(candidate) {
			continue
		}
		if domain.IsMissing(target[t]) || domain.IsMissing(candidate[src]) {
			continue
		}
		xs = append(xs, candidate[src])
		ys = append(ys, target[t])
	}

	n = len(xs)
	if n < minSamples {
		return 0, n, false
	}

	zx, okX := zscore(xs)
	zy, okY := zscore(ys)
	if !okX || !okY {
		return 0, n, false
	}

	return stat.Correlation(zx, zy, nil), n, true
}

// zscore standardizes the sample in place using the N-1 standard deviation.
// Returns false when the sample is (near-)constant.
func zscore(values []float64) ([]float64, bool) {
	mean, std := stat.MeanStdDev(values, nil)
	if std < zeroVarianceEpsilon {
		return nil, false
	}
	for i, v := range values {
		values[i] = (v - mean) / std
	}
	return values, true
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
