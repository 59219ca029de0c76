package domain

import "fmt"

// Resolution is the calendar granularity of a series.
type Resolution string

const (
	ResolutionDaily     Resolution = "daily"
	ResolutionWeekly    Resolution = "weekly"
	ResolutionMonthly   Resolution = "monthly"
	ResolutionQuarterly Resolution = "quarterly"
	ResolutionAnnual    Resolution = "annual"
)

// resolutionRank orders resolutions from finest to coarsest.
var resolutionRank = map[Resolution]int{
	ResolutionDaily:     0,
	ResolutionWeekly:    1,
	ResolutionMonthly:   2,
	ResolutionQuarterly: 3,
	ResolutionAnnual:    4,
}

// ParseResolution converts a string into a Resolution.
func ParseResolution(s string) (Resolution, error) {
	r := Resolution(s)
	if _, ok := resolutionRank[r]; !ok {
		return "", fmt.Errorf("unknown resolution %q", s)
	}
	return r, nil
}

// Valid reports whether r is a known resolution.
func (r Resolution) Valid() bool {
	_, ok := resolutionRank[r]
	return ok
}

// CoarserThan reports whether r is a coarser granularity than other.
func (r Resolution) CoarserThan(other Resolution) bool {
	return resolutionRank[r] > resolutionRank[other]
}

// CoarsestResolution returns the coarsest resolution among the given specs.
// Returns ResolutionDaily when specs is empty.
func CoarsestResolution(specs []SeriesSpec) Resolution {
	coarsest := ResolutionDaily
	for _, s := range specs {
		if s.Resolution.CoarserThan(coarsest) {
			coarsest = s.Resolution
		}
	}
	return coarsest
}
