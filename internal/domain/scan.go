package domain

// Fetch diagnostic statuses.
const (
	FetchStatusFetched  = "fetched"  // retrieved from the upstream source
	FetchStatusCached   = "cached"   // served from a warm, non-stale cache entry
	FetchStatusFailed   = "failed"   // all attempts exhausted
	FetchStatusExcluded = "excluded" // fetched but dropped during alignment
	FetchStatusSkipped  = "skipped"  // pair dropped during correlation scoring
)

// FetchDiagnostic records the outcome of resolving one series, attached to
// the ScanResult so callers can always see which series failed and why.
type FetchDiagnostic struct {
	Name         string // series logical name
	Source       string
	Status       string // one of the FetchStatus constants
	Retries      int    // retry attempts performed (0 or 1)
	Observations int    // raw observations obtained
	Reason       string // error or exclusion reason, empty on success
}

// ScanRequest is the orchestration-level input for one lead-lag scan.
type ScanRequest struct {
	ScanID       string       // caller-assigned identifier for persisted results
	StartMs      int64        // scan window start, Unix ms inclusive
	EndMs        int64        // scan window end, Unix ms inclusive
	Target       string       // logical name of the target series
	MaxLag       int          // lag search half-window in calendar steps
	TopN         int          // number of ranked results to return
	MinSamples   int          // minimum overlapping observations per pair
	Resolution   Resolution   // explicit common resolution; empty = coarsest requested
	ForceRefresh bool         // bypass cache freshness and refetch everything
	Specs        []SeriesSpec // series to fetch, target included
}

// CompositePoint is one point of the composite signal: the sum of z-scored,
// lag-shifted top-N candidate series at a calendar point.
type CompositePoint struct {
	TimestampMs int64
	Value       float64
}

// ScanResult is the sole externally visible artifact of a scan: the ranked
// lead-lag relationships plus per-series diagnostics.
type ScanResult struct {
	ScanID      string
	Results     []LagResult
	Composite   []CompositePoint
	Diagnostics []FetchDiagnostic
	CalendarLen int        // aligned calendar length
	Resolution  Resolution // common resolution used for alignment
}

// ScanRecord is the persisted form of one LagResult row, keyed by
// (scan_id, series) in the scan-result history store.
type ScanRecord struct {
	ScanID      string
	CreatedAtMs int64
	Target      string
	Series      string
	Lag         int
	Corr        float64
	SampleSize  int
	Strength    string
}
