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
)

func fngSpec() domain.SeriesSpec {
	return domain.SeriesSpec{
		Name:       "fear_greed",
		Source:     domain.SourceFng,
		Resolution: domain.ResolutionDaily,
	}
}

func TestFngFetcher_SortsAndFiltersHistory(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).Unix()

	// Upstream ships newest-first and always the full history.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("limit"))
		fmt.Fprintf(w, `{"data":[
			{"value":"71","timestamp":"%d"},
			{"value":"64","timestamp":"%d"},
			{"value":"58","timestamp":"%d"},
			{"value":"40","timestamp":"%d"}
		]}`, base+3*86400, base+2*86400, base+86400, base)
	}))
	defer srv.Close()

	f := NewFngFetcher(fastClient())
	f.baseURL = srv.URL

	startMs := (base + 86400) * 1000
	endMs := (base + 2*86400) * 1000
	series, err := f.Fetch(context.Background(), fngSpec(), startMs, endMs)
	require.NoError(t, err)

	require.Len(t, series.Points, 2)
	assert.Equal(t, startMs, series.Points[0].TimestampMs)
	assert.Equal(t, 58.0, series.Points[0].Value)
	assert.Equal(t, endMs, series.Points[1].TimestampMs)
	assert.Equal(t, 64.0, series.Points[1].Value)
}

func TestFngFetcher_SkipsUnparseableRows(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).Unix()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":[
			{"value":"not-a-number","timestamp":"%d"},
			{"value":"55","timestamp":"garbage"},
			{"value":"55","timestamp":"%d"}
		]}`, base+86400, base)
	}))
	defer srv.Close()

	f := NewFngFetcher(fastClient())
	f.baseURL = srv.URL

	series, err := f.Fetch(context.Background(), fngSpec(), base*1000, (base+2*86400)*1000)
	require.NoError(t, err)
	require.Len(t, series.Points, 1)
	assert.Equal(t, 55.0, series.Points[0].Value)
}
