package sources

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"leadlag-scanner/internal/domain"
	"leadlag-scanner/internal/fetch"
)

const fredBaseURL = "https://api.stlouisfed.org/fred/series/observations"

// fredFallbacks lists alternate series IDs tried when the primary returns
// nothing. The LBMA gold fixings are published under several IDs and drop
// out of individual series intermittently.
var fredFallbacks = map[string][]string{
	"GOLDPMGBD228NLBM": {"GOLDAMGBD228NLBM"},
	"GOLDAMGBD228NLBM": {"GOLDPMGBD228NLBM"},
}

// FredFetcher retrieves macro series observations from the FRED API.
// The API key is an opaque credential passed through from the environment.
type FredFetcher struct {
	client  *httpClient
	baseURL string
	apiKey  string
}

// NewFredFetcher creates a FRED fetcher with the given API key.
func NewFredFetcher(apiKey string, opts ...ClientOption) *FredFetcher {
	return &FredFetcher{
		client:  newHTTPClient(domain.SourceFred, opts...),
		baseURL: fredBaseURL,
		apiKey:  apiKey,
	}
}

// Compile-time interface check.
var _ fetch.Fetcher = (*FredFetcher)(nil)

// fredResponse is the observations envelope.
type fredResponse struct {
	Observations []struct {
		Date  string `json:"date"`  // YYYY-MM-DD
		Value string `json:"value"` // "." marks a missing observation
	} `json:"observations"`
}

// Fetch returns observations for spec.Symbol, trying known fallback series
// IDs when the primary holds no data in the window. "." values are skipped,
// never fabricated into numbers.
func (f *FredFetcher) Fetch(ctx context.Context, spec domain.SeriesSpec, startMs, endMs int64) (*domain.RawSeries, error) {
	if err := validateWindow(domain.SourceFred, startMs, endMs); err != nil {
		return nil, err
	}
	if spec.Symbol == "" {
		return nil, fetch.NewFetchError(fetch.KindInvalidSpec, domain.SourceFred, "spec has no series id", nil)
	}
	if f.apiKey == "" {
		return nil, fetch.NewFetchError(fetch.KindInvalidSpec, domain.SourceFred, "api key not configured", nil)
	}

	seriesIDs := append([]string{spec.Symbol}, fredFallbacks[spec.Symbol]...)

	var lastErr error
	for _, id := range seriesIDs {
		points, err := f.observations(ctx, id, startMs, endMs)
		if err != nil {
			lastErr = err
			continue
		}
		if len(points) > 0 {
			return &domain.RawSeries{Name: spec.Name, Points: points}, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}

	// Every candidate responded but none held data in the window.
	return &domain.RawSeries{Name: spec.Name}, nil
}

// observations fetches one series' observations inside the window.
func (f *FredFetcher) observations(ctx context.Context, seriesID string, startMs, endMs int64) ([]domain.Observation, error) {
	params := url.Values{}
	params.Set("series_id", seriesID)
	params.Set("api_key", f.apiKey)
	params.Set("file_type", "json")
	params.Set("observation_start", time.UnixMilli(startMs).UTC().Format("2006-01-02"))
	params.Set("observation_end", time.UnixMilli(endMs).UTC().Format("2006-01-02"))

	var resp fredResponse
	if err := f.client.getJSON(ctx, f.baseURL, params, &resp); err != nil {
		return nil, err
	}

	var points []domain.Observation
	for _, obs := range resp.Observations {
		if obs.Value == "" || obs.Value == "." {
			continue
		}
		day, err := time.ParseInLocation("2006-01-02", obs.Date, time.UTC)
		if err != nil {
			continue
		}
		value, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			continue
		}
		points = append(points, domain.Observation{TimestampMs: day.UnixMilli(), Value: value})
	}
	return points, nil
}
