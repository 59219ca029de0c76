package domain

// Known source names for concrete fetcher variants.
const (
	SourceBinance = "binance"
	SourceYahoo   = "yahoo"
	SourceFred    = "fred"
	SourceFng     = "fng"
	SourceTrends  = "trends"
	SourceNews    = "news"
)

// SeriesSpec identifies one requested series. Immutable once constructed;
// created from configuration, never mutated.
type SeriesSpec struct {
	Name       string            // logical name, unique within a scan
	Source     string            // source name, resolved against the fetcher registry
	Symbol     string            // source-specific lookup key (ticker, series ID, keyword)
	Resolution Resolution        // requested calendar granularity
	Params     map[string]string // optional source-specific parameters
}

// Param returns the named source-specific parameter, or def when absent.
func (s SeriesSpec) Param(key, def string) string {
	if v, ok := s.Params[key]; ok {
		return v
	}
	return def
}

// Observation is a single (timestamp, value) pair.
type Observation struct {
	TimestampMs int64   // Unix timestamp in milliseconds, UTC
	Value       float64 // observed value
}

// RawSeries is a sparse, source-native time series. Points are ordered by
// timestamp ASC but not necessarily contiguous or aligned across series.
// Never mutated after creation; transforms copy.
type RawSeries struct {
	Name   string
	Points []Observation
}

// Clone returns a deep copy of the series.
func (rs *RawSeries) Clone() *RawSeries {
	points := make([]Observation, len(rs.Points))
	copy(points, rs.Points)
	return &RawSeries{Name: rs.Name, Points: points}
}

// TimeRange returns the first and last observation timestamps.
// ok is false when the series is empty.
func (rs *RawSeries) TimeRange() (first, last int64, ok bool) {
	if len(rs.Points) == 0 {
		return 0, 0, false
	}
	return rs.Points[0].TimestampMs, rs.Points[len(rs.Points)-1].TimestampMs, true
}

// Empty reports whether the series has no observations.
func (rs *RawSeries) Empty() bool {
	return rs == nil || len(rs.Points) == 0
}
