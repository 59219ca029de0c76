package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"leadlag-scanner/internal/domain"
	"leadlag-scanner/internal/fetch"
)

const (
	binanceBaseURL   = "https://api.binance.com/api/v3/klines"
	binanceMaxKlines = 1000
)

// binanceIntervals maps resolutions to Binance kline interval codes.
var binanceIntervals = map[domain.Resolution]string{
	domain.ResolutionDaily:   "1d",
	domain.ResolutionWeekly:  "1w",
	domain.ResolutionMonthly: "1M",
}

// BinanceFetcher retrieves kline close prices from the Binance REST API.
// Responses beyond the page limit are followed by advancing startTime past
// the last returned open time.
type BinanceFetcher struct {
	client  *httpClient
	baseURL string
}

// NewBinanceFetcher creates a Binance fetcher.
func NewBinanceFetcher(opts ...ClientOption) *BinanceFetcher {
	return &BinanceFetcher{
		client:  newHTTPClient(domain.SourceBinance, opts...),
		baseURL: binanceBaseURL,
	}
}

// Compile-time interface check.
var _ fetch.Fetcher = (*BinanceFetcher)(nil)

// Fetch returns daily/weekly/monthly close prices for spec.Symbol.
func (f *BinanceFetcher) Fetch(ctx context.Context, spec domain.SeriesSpec, startMs, endMs int64) (*domain.RawSeries, error) {
	if err := validateWindow(domain.SourceBinance, startMs, endMs); err != nil {
		return nil, err
	}
	if spec.Symbol == "" {
		return nil, fetch.NewFetchError(fetch.KindInvalidSpec, domain.SourceBinance, "spec has no symbol", nil)
	}
	interval, ok := binanceIntervals[spec.Resolution]
	if !ok {
		return nil, fetch.NewFetchError(fetch.KindInvalidSpec, domain.SourceBinance,
			fmt.Sprintf("resolution %s not supported by klines API", spec.Resolution), nil)
	}

	var points []domain.Observation
	current := startMs
	for current <= endMs {
		klines, err := f.page(ctx, spec.Symbol, interval, current, endMs)
		if err != nil {
			return nil, err
		}
		if len(klines) == 0 {
			break
		}

		lastOpen := current
		for _, k := range klines {
			openTime, closePrice, err := parseKline(k)
			if err != nil {
				return nil, fetch.NewFetchError(fetch.KindUnavailable, domain.SourceBinance, "malformed kline", err)
			}
			if openTime > endMs {
				break
			}
			points = append(points, domain.Observation{TimestampMs: openTime, Value: closePrice})
			lastOpen = openTime
		}

		if len(klines) < binanceMaxKlines || lastOpen <= current {
			break
		}
		current = lastOpen + 1
	}

	return &domain.RawSeries{Name: spec.Name, Points: points}, nil
}

// page fetches one klines page.
func (f *BinanceFetcher) page(ctx context.Context, symbol, interval string, startMs, endMs int64) ([][]any, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("startTime", strconv.FormatInt(startMs, 10))
	params.Set("endTime", strconv.FormatInt(endMs, 10))
	params.Set("limit", strconv.Itoa(binanceMaxKlines))

	var klines [][]any
	if err := f.client.getJSON(ctx, f.baseURL, params, &klines); err != nil {
		return nil, err
	}
	return klines, nil
}

// parseKline extracts (openTime, close) from one kline row. Binance encodes
// rows as [openTime, open, high, low, close, volume, ...] with prices as
// strings and timestamps as numbers.
func parseKline(k []any) (int64, float64, error) {
	if len(k) < 5 {
		return 0, 0, fmt.Errorf("kline has %d fields, want >= 5", len(k))
	}
	openTime, ok := k[0].(float64)
	if !ok {
		return 0, 0, fmt.Errorf("open time is %T, want number", k[0])
	}
	closeStr, ok := k[4].(string)
	if !ok {
		return 0, 0, fmt.Errorf("close price is %T, want string", k[4])
	}
	closePrice, err := strconv.ParseFloat(closeStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse close price: %w", err)
	}
	return int64(openTime), closePrice, nil
}
