package domain

import "math"

// Strength buckets for the absolute correlation magnitude.
const (
	StrengthWeak     = "weak"     // |corr| < 0.4
	StrengthModerate = "moderate" // 0.4 <= |corr| < 0.7
	StrengthStrong   = "strong"   // |corr| >= 0.7
)

// LagResult is one ranked lead-lag relationship between a candidate series
// and the target. A positive lag means the candidate leads the target by
// that many calendar steps. Immutable.
type LagResult struct {
	Series     string  // candidate series name
	Target     string  // target series name
	Lag        int     // lag offset in calendar steps
	Corr       float64 // signed Pearson correlation at the best lag
	SampleSize int     // overlapping observations used at that lag
}

// AbsCorr returns the correlation magnitude used for ranking.
func (r LagResult) AbsCorr() float64 {
	return math.Abs(r.Corr)
}

// Strength classifies the correlation magnitude.
func (r LagResult) Strength() string {
	abs := r.AbsCorr()
	switch {
	case abs >= 0.7:
		return StrengthStrong
	case abs >= 0.4:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}
