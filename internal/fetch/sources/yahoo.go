package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"leadlag-scanner/internal/domain"
	"leadlag-scanner/internal/fetch"
)

const yahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// yahooIntervals maps resolutions to Yahoo chart interval codes.
var yahooIntervals = map[domain.Resolution]string{
	domain.ResolutionDaily:   "1d",
	domain.ResolutionWeekly:  "1wk",
	domain.ResolutionMonthly: "1mo",
}

// YahooFetcher retrieves adjusted close prices from the Yahoo Finance
// chart API.
type YahooFetcher struct {
	client  *httpClient
	baseURL string
}

// NewYahooFetcher creates a Yahoo Finance fetcher.
func NewYahooFetcher(opts ...ClientOption) *YahooFetcher {
	return &YahooFetcher{
		client:  newHTTPClient(domain.SourceYahoo, opts...),
		baseURL: yahooBaseURL,
	}
}

// Compile-time interface check.
var _ fetch.Fetcher = (*YahooFetcher)(nil)

// yahooChartResponse is the subset of the chart API response we read.
// Null adjclose entries mark days the exchange reported no price.
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Adjclose []struct {
					Adjclose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch returns adjusted close prices for spec.Symbol.
func (f *YahooFetcher) Fetch(ctx context.Context, spec domain.SeriesSpec, startMs, endMs int64) (*domain.RawSeries, error) {
	if err := validateWindow(domain.SourceYahoo, startMs, endMs); err != nil {
		return nil, err
	}
	if spec.Symbol == "" {
		return nil, fetch.NewFetchError(fetch.KindInvalidSpec, domain.SourceYahoo, "spec has no symbol", nil)
	}
	interval, ok := yahooIntervals[spec.Resolution]
	if !ok {
		return nil, fetch.NewFetchError(fetch.KindInvalidSpec, domain.SourceYahoo,
			fmt.Sprintf("resolution %s not supported by chart API", spec.Resolution), nil)
	}

	params := url.Values{}
	params.Set("period1", strconv.FormatInt(startMs/1000, 10))
	// period2 is exclusive upstream; push it one day past the window end.
	params.Set("period2", strconv.FormatInt(endMs/1000+86400, 10))
	params.Set("interval", interval)

	var resp yahooChartResponse
	if err := f.client.getJSON(ctx, f.baseURL+"/"+url.PathEscape(spec.Symbol), params, &resp); err != nil {
		return nil, err
	}
	if resp.Chart.Error != nil {
		return nil, fetch.NewFetchError(fetch.KindInvalidSpec, domain.SourceYahoo,
			fmt.Sprintf("%s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description), nil)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fetch.NewFetchError(fetch.KindUnavailable, domain.SourceYahoo, "chart response has no result", nil)
	}

	result := resp.Chart.Result[0]
	if len(result.Indicators.Adjclose) == 0 {
		return &domain.RawSeries{Name: spec.Name}, nil
	}

	adjclose := result.Indicators.Adjclose[0].Adjclose
	var points []domain.Observation
	for i, ts := range result.Timestamp {
		if i >= len(adjclose) || adjclose[i] == nil {
			continue // no observation on this day; missing stays missing
		}
		tsMs := ts * 1000
		if tsMs < startMs || tsMs > endMs {
			continue
		}
		points = append(points, domain.Observation{TimestampMs: tsMs, Value: *adjclose[i]})
	}

	return &domain.RawSeries{Name: spec.Name, Points: points}, nil
}
