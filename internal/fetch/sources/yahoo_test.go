package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadlag-scanner/internal/domain"
	"leadlag-scanner/internal/fetch"
)

func yahooSpec() domain.SeriesSpec {
	return domain.SeriesSpec{
		Name:       "btc_price",
		Source:     domain.SourceYahoo,
		Symbol:     "BTC-USD",
		Resolution: domain.ResolutionDaily,
	}
}

func TestYahooFetcher_SkipsNullAdjclose(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).Unix()
	body := fmt.Sprintf(`{"chart":{"result":[{
		"timestamp":[%d,%d,%d],
		"indicators":{"adjclose":[{"adjclose":[101.5,null,103.25]}]}
	}],"error":null}}`, base, base+86400, base+2*86400)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/BTC-USD", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	f := NewYahooFetcher(fastClient())
	f.baseURL = srv.URL

	series, err := f.Fetch(context.Background(), yahooSpec(), base*1000, (base+2*86400)*1000)
	require.NoError(t, err)

	// The null middle day produces no observation rather than a zero.
	require.Len(t, series.Points, 2)
	assert.Equal(t, base*1000, series.Points[0].TimestampMs)
	assert.Equal(t, 101.5, series.Points[0].Value)
	assert.Equal(t, (base+2*86400)*1000, series.Points[1].TimestampMs)
	assert.Equal(t, 103.25, series.Points[1].Value)
}

func TestYahooFetcher_ClipsToWindow(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).Unix()
	body := fmt.Sprintf(`{"chart":{"result":[{
		"timestamp":[%d,%d,%d],
		"indicators":{"adjclose":[{"adjclose":[1.0,2.0,3.0]}]}
	}],"error":null}}`, base-86400, base, base+86400)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	f := NewYahooFetcher(fastClient())
	f.baseURL = srv.URL

	series, err := f.Fetch(context.Background(), yahooSpec(), base*1000, base*1000)
	require.NoError(t, err)
	require.Len(t, series.Points, 1)
	assert.Equal(t, 2.0, series.Points[0].Value)
}

func TestYahooFetcher_ChartError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
	}))
	defer srv.Close()

	f := NewYahooFetcher(fastClient())
	f.baseURL = srv.URL

	_, err := f.Fetch(context.Background(), yahooSpec(), 0, dayMs)
	require.Error(t, err)
	kind, ok := fetch.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, fetch.KindInvalidSpec, kind)
	assert.Contains(t, err.Error(), "delisted")
}

func TestYahooFetcher_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[],"error":null}}`)
	}))
	defer srv.Close()

	f := NewYahooFetcher(fastClient())
	f.baseURL = srv.URL

	_, err := f.Fetch(context.Background(), yahooSpec(), 0, dayMs)
	require.Error(t, err)
	kind, ok := fetch.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, fetch.KindUnavailable, kind)
}

func TestYahooFetcher_InvertedWindow(t *testing.T) {
	f := NewYahooFetcher(fastClient())
	_, err := f.Fetch(context.Background(), yahooSpec(), dayMs, 0)
	require.Error(t, err)
	kind, ok := fetch.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, fetch.KindInvalidSpec, kind)
}
