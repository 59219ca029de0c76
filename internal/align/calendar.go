package align

import (
	"time"

	"leadlag-scanner/internal/domain"
)

// BucketStartMs maps a timestamp onto the start of the calendar period that
// contains it, at the given resolution. All arithmetic is done in UTC.
// Weekly periods start on Monday, quarterly periods on the first day of
// January, April, July, and October.
func BucketStartMs(tsMs int64, resolution domain.Resolution) int64 {
	t := time.UnixMilli(tsMs).UTC()

	switch resolution {
	case domain.ResolutionDaily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).UnixMilli()
	case domain.ResolutionWeekly:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		// Monday = 1 ... Sunday = 0 in Go's weekday numbering.
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset).UnixMilli()
	case domain.ResolutionMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	case domain.ResolutionQuarterly:
		quarterMonth := time.Month(((int(t.Month())-1)/3)*3 + 1)
		return time.Date(t.Year(), quarterMonth, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	case domain.ResolutionAnnual:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).UnixMilli()
	}
}

// nextBucketMs returns the start of the period following the one that begins
// at startMs.
func nextBucketMs(startMs int64, resolution domain.Resolution) int64 {
	t := time.UnixMilli(startMs).UTC()

	switch resolution {
	case domain.ResolutionDaily:
		return t.AddDate(0, 0, 1).UnixMilli()
	case domain.ResolutionWeekly:
		return t.AddDate(0, 0, 7).UnixMilli()
	case domain.ResolutionMonthly:
		return t.AddDate(0, 1, 0).UnixMilli()
	case domain.ResolutionQuarterly:
		return t.AddDate(0, 3, 0).UnixMilli()
	case domain.ResolutionAnnual:
		return t.AddDate(1, 0, 0).UnixMilli()
	default:
		return t.AddDate(0, 0, 1).UnixMilli()
	}
}

// BuildCalendar enumerates every period start between startMs and endMs
// inclusive, at the given resolution. The calendar is strictly increasing
// and contains every period in the window regardless of whether any series
// has an observation there.
func BuildCalendar(startMs, endMs int64, resolution domain.Resolution) []int64 {
	if startMs > endMs {
		return nil
	}

	calendar := make([]int64, 0, 64)
	for cur := BucketStartMs(startMs, resolution); cur <= endMs; cur = nextBucketMs(cur, resolution) {
		calendar = append(calendar, cur)
	}
	return calendar
}
