package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Lead-Lag Scan Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.ScanID != "" {
		sb.WriteString(fmt.Sprintf("Scan ID: %s\n\n", r.ScanID))
	}
	sb.WriteString(fmt.Sprintf("Target: %s", r.Target))
	if r.Resolution != "" {
		sb.WriteString(fmt.Sprintf(" | Resolution: %s | Calendar points: %d", r.Resolution, r.CalendarLen))
	}
	sb.WriteString("\n\n")

	// Ranked results
	sb.WriteString("## Ranked Lead-Lag Relationships\n\n")
	if len(r.Results) == 0 {
		sb.WriteString("No relationships cleared the sample and variance floors.\n\n")
	} else {
		sb.WriteString("| Rank | Series | Lag | Correlation | Samples | Strength |\n")
		sb.WriteString("|------|--------|-----|-------------|---------|----------|\n")
		for _, row := range r.Results {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %.4f | %d | %s |\n",
				row.Rank, row.Series, describeLag(row.Lag), row.Corr, row.SampleSize, row.Strength))
		}
		sb.WriteString("\n")
	}

	// Diagnostics
	if len(r.Diagnostics) > 0 {
		sb.WriteString("## Series Diagnostics\n\n")
		sb.WriteString("| Series | Source | Status | Retries | Observations | Reason |\n")
		sb.WriteString("|--------|--------|--------|---------|--------------|--------|\n")
		for _, d := range r.Diagnostics {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %d | %s |\n",
				d.Series, d.Source, d.Status, d.Retries, d.Observations, d.Reason))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// describeLag renders a lag with its direction.
func describeLag(lag int) string {
	switch {
	case lag > 0:
		return fmt.Sprintf("+%d (leads)", lag)
	case lag < 0:
		return fmt.Sprintf("%d (lags)", lag)
	default:
		return "0 (coincident)"
	}
}
