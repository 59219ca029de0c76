package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"leadlag-scanner/internal/domain"
	"leadlag-scanner/internal/fetch"
)

const (
	trendsExploreURL = "https://trends.google.com/trends/api/explore"
	trendsDataURL    = "https://trends.google.com/trends/api/widgetdata/multiline"

	// Google prefixes its JSON payloads with an XSSI guard line.
	trendsXSSIPrefix = ")]}'"
)

// TrendsFetcher retrieves Google Trends interest-over-time for a keyword.
// The API is unofficial: an explore call issues a short-lived token for the
// TIMESERIES widget, which is then exchanged for the actual data.
type TrendsFetcher struct {
	client     *httpClient
	exploreURL string
	dataURL    string
}

// NewTrendsFetcher creates a Google Trends fetcher.
func NewTrendsFetcher(opts ...ClientOption) *TrendsFetcher {
	return &TrendsFetcher{
		client:     newHTTPClient(domain.SourceTrends, opts...),
		exploreURL: trendsExploreURL,
		dataURL:    trendsDataURL,
	}
}

// Compile-time interface check.
var _ fetch.Fetcher = (*TrendsFetcher)(nil)

type trendsExploreResponse struct {
	Widgets []struct {
		ID      string          `json:"id"`
		Token   string          `json:"token"`
		Request json.RawMessage `json:"request"`
	} `json:"widgets"`
}

type trendsDataResponse struct {
	Default struct {
		TimelineData []struct {
			Time  string    `json:"time"` // Unix seconds
			Value []float64 `json:"value"`
		} `json:"timelineData"`
	} `json:"default"`
}

// Fetch returns interest-over-time values for spec.Symbol (the keyword).
func (f *TrendsFetcher) Fetch(ctx context.Context, spec domain.SeriesSpec, startMs, endMs int64) (*domain.RawSeries, error) {
	if err := validateWindow(domain.SourceTrends, startMs, endMs); err != nil {
		return nil, err
	}
	if spec.Symbol == "" {
		return nil, fetch.NewFetchError(fetch.KindInvalidSpec, domain.SourceTrends, "spec has no keyword", nil)
	}

	timeframe := fmt.Sprintf("%s %s",
		time.UnixMilli(startMs).UTC().Format("2006-01-02"),
		time.UnixMilli(endMs).UTC().Format("2006-01-02"))

	token, request, err := f.exploreToken(ctx, spec.Symbol, timeframe)
	if err != nil {
		return nil, err
	}

	return f.timeline(ctx, spec, token, request, startMs, endMs)
}

// exploreToken requests the TIMESERIES widget token for a keyword/timeframe.
func (f *TrendsFetcher) exploreToken(ctx context.Context, keyword, timeframe string) (string, json.RawMessage, error) {
	exploreReq := map[string]any{
		"comparisonItem": []map[string]any{
			{"keyword": keyword, "geo": "", "time": timeframe},
		},
		"category": 0,
		"property": "",
	}
	reqJSON, err := json.Marshal(exploreReq)
	if err != nil {
		return "", nil, fetch.NewFetchError(fetch.KindInvalidSpec, domain.SourceTrends, "encode explore request", err)
	}

	params := url.Values{}
	params.Set("hl", "en-US")
	params.Set("tz", "0")
	params.Set("req", string(reqJSON))

	body, err := f.client.get(ctx, f.exploreURL, params)
	if err != nil {
		return "", nil, err
	}

	var resp trendsExploreResponse
	if err := json.Unmarshal(stripXSSIPrefix(body), &resp); err != nil {
		return "", nil, fetch.NewFetchError(fetch.KindUnavailable, domain.SourceTrends, "decode explore response", err)
	}

	for _, w := range resp.Widgets {
		if w.ID == "TIMESERIES" {
			return w.Token, w.Request, nil
		}
	}
	return "", nil, fetch.NewFetchError(fetch.KindUnavailable, domain.SourceTrends, "explore response has no TIMESERIES widget", nil)
}

// timeline exchanges the widget token for interest-over-time data.
func (f *TrendsFetcher) timeline(ctx context.Context, spec domain.SeriesSpec, token string, request json.RawMessage, startMs, endMs int64) (*domain.RawSeries, error) {
	params := url.Values{}
	params.Set("hl", "en-US")
	params.Set("tz", "0")
	params.Set("token", token)
	params.Set("req", string(request))

	body, err := f.client.get(ctx, f.dataURL, params)
	if err != nil {
		return nil, err
	}

	var resp trendsDataResponse
	if err := json.Unmarshal(stripXSSIPrefix(body), &resp); err != nil {
		return nil, fetch.NewFetchError(fetch.KindUnavailable, domain.SourceTrends, "decode widget data", err)
	}

	var points []domain.Observation
	for _, td := range resp.Default.TimelineData {
		seconds, err := strconv.ParseInt(td.Time, 10, 64)
		if err != nil || len(td.Value) == 0 {
			continue
		}
		tsMs := seconds * 1000
		if tsMs < startMs || tsMs > endMs {
			continue
		}
		points = append(points, domain.Observation{TimestampMs: tsMs, Value: td.Value[0]})
	}

	return &domain.RawSeries{Name: spec.Name, Points: points}, nil
}

// stripXSSIPrefix removes the guard line Google prepends to API payloads.
func stripXSSIPrefix(body []byte) []byte {
	s := string(body)
	if idx := strings.Index(s, trendsXSSIPrefix); idx >= 0 {
		s = s[idx+len(trendsXSSIPrefix):]
	}
	return []byte(strings.TrimSpace(s))
}
