package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderResultsCSV renders ranked results as CSV string.
func RenderResultsCSV(rows []ResultRow) string {
	var sb strings.Builder

	sb.WriteString("rank,series,target,lag,corr,sample_size,strength\n")
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%d,%.6f,%d,%s\n",
			r.Rank,
			r.Series,
			r.Target,
			r.Lag,
			r.Corr,
			r.SampleSize,
			r.Strength,
		))
	}

	return sb.String()
}

// RenderDiagnosticsCSV renders per-series diagnostics as CSV string.
func RenderDiagnosticsCSV(rows []DiagnosticRow) string {
	var sb strings.Builder

	sb.WriteString("series,source,status,retries,observations,reason\n")
	for _, d := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%d,%d,%s\n",
			d.Series,
			d.Source,
			d.Status,
			d.Retries,
			d.Observations,
			escapeCSV(d.Reason),
		))
	}

	return sb.String()
}

// RenderCompositeCSV renders the composite signal as CSV string with ISO
// dates.
func RenderCompositeCSV(rows []CompositeRow) string {
	var sb strings.Builder

	sb.WriteString("date,value\n")
	for _, p := range rows {
		date := time.UnixMilli(p.TimestampMs).UTC().Format("2006-01-02")
		sb.WriteString(fmt.Sprintf("%s,%.6f\n", date, p.Value))
	}

	return sb.String()
}

// escapeCSV quotes a field containing commas or quotes.
func escapeCSV(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
