package sources

import (
	"context"
	"net/url"
	"sort"
	"strconv"

	"leadlag-scanner/internal/domain"
	"leadlag-scanner/internal/fetch"
)

const fngBaseURL = "https://api.alternative.me/fng/"

// FngFetcher retrieves the alternative.me crypto Fear & Greed index.
// The API returns the full history in one call; the window filter is local.
type FngFetcher struct {
	client  *httpClient
	baseURL string
}

// NewFngFetcher creates a Fear & Greed fetcher.
func NewFngFetcher(opts ...ClientOption) *FngFetcher {
	return &FngFetcher{
		client:  newHTTPClient(domain.SourceFng, opts...),
		baseURL: fngBaseURL,
	}
}

// Compile-time interface check.
var _ fetch.Fetcher = (*FngFetcher)(nil)

// fngResponse is the index history envelope. Values and timestamps are
// string-encoded upstream.
type fngResponse struct {
	Data []struct {
		Value     string `json:"value"`
		Timestamp string `json:"timestamp"` // Unix seconds
	} `json:"data"`
}

// Fetch returns index values within the window. Spec.Symbol is unused; the
// index is a single global series.
func (f *FngFetcher) Fetch(ctx context.Context, spec domain.SeriesSpec, startMs, endMs int64) (*domain.RawSeries, error) {
	if err := validateWindow(domain.SourceFng, startMs, endMs); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("limit", "0") // full history
	params.Set("format", "json")

	var resp fngResponse
	if err := f.client.getJSON(ctx, f.baseURL, params, &resp); err != nil {
		return nil, err
	}

	var points []domain.Observation
	for _, d := range resp.Data {
		seconds, err := strconv.ParseInt(d.Timestamp, 10, 64)
		if err != nil {
			continue
		}
		tsMs := seconds * 1000
		if tsMs < startMs || tsMs > endMs {
			continue
		}
		value, err := strconv.ParseFloat(d.Value, 64)
		if err != nil {
			continue
		}
		points = append(points, domain.Observation{TimestampMs: tsMs, Value: value})
	}

	// History arrives newest-first; series points are timestamp ASC.
	sort.Slice(points, func(i, j int) bool {
		return points[i].TimestampMs < points[j].TimestampMs
	})

	return &domain.RawSeries{Name: spec.Name, Points: points}, nil
}
