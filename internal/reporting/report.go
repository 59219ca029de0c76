package reporting

import "time"

// Report represents one rendered scan report.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	ScanID      string
	Target      string
	Resolution  string
	CalendarLen int

	// Ranked lead-lag results, strongest first
	Results []ResultRow

	// Per-series fetch/alignment/scoring diagnostics, request order
	Diagnostics []DiagnosticRow

	// Composite signal over the aligned calendar
	Composite []CompositeRow
}

// ResultRow represents one ranked lead-lag relationship.
type ResultRow struct {
	Rank       int
	Series     string
	Target     string
	Lag        int // positive = series led the target
	Corr       float64
	SampleSize int
	Strength   string
}

// DiagnosticRow represents the outcome of resolving one series.
type DiagnosticRow struct {
	Series       string
	Source       string
	Status       string
	Retries      int
	Observations int
	Reason       string
}

// CompositeRow is one composite-signal point.
type CompositeRow struct {
	TimestampMs int64
	Value       float64
}
