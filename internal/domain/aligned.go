package domain

import "math"

// Missing is the sentinel written into AlignedMatrix cells where no source
// observation maps to the calendar point. Consumers must test cells with
// IsMissing, never by equality.
var Missing = math.NaN()

// IsMissing reports whether an aligned cell holds the missing sentinel.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// AlignedMatrix maps a common ordered calendar to one column per series.
// Every column has length len(CalendarMs); CalendarMs is strictly increasing.
// Built once per scan, read-only afterward.
type AlignedMatrix struct {
	CalendarMs []int64              // common calendar points, Unix ms, ASC
	Resolution Resolution           // calendar granularity
	Names      []string             // column names in insertion order
	columns    map[string][]float64 // name -> column values
}

// NewAlignedMatrix creates an empty matrix over the given calendar.
func NewAlignedMatrix(calendarMs []int64, resolution Resolution) *AlignedMatrix {
	return &AlignedMatrix{
		CalendarMs: calendarMs,
		Resolution: resolution,
		columns:    make(map[string][]float64),
	}
}

// AddColumn attaches a column. The column must have the calendar's length;
// shorter or longer columns are rejected by returning false.
func (m *AlignedMatrix) AddColumn(name string, values []float64) bool {
	if len(values) != len(m.CalendarMs) {
		return false
	}
	if _, exists := m.columns[name]; exists {
		return false
	}
	m.Names = append(m.Names, name)
	m.columns[name] = values
	return true
}

// Column returns the named column, or nil when absent.
func (m *AlignedMatrix) Column(name string) []float64 {
	return m.columns[name]
}

// HasColumn reports whether the named column exists.
func (m *AlignedMatrix) HasColumn(name string) bool {
	_, ok := m.columns[name]
	return ok
}

// Len returns the common calendar length.
func (m *AlignedMatrix) Len() int {
	return len(m.CalendarMs)
}

// NumSeries returns the number of columns.
func (m *AlignedMatrix) NumSeries() int {
	return len(m.Names)
}
