package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadlag-scanner/internal/domain"
	"leadlag-scanner/internal/fetch"
)

func fredSpec(symbol string) domain.SeriesSpec {
	return domain.SeriesSpec{
		Name:       "gold_price",
		Source:     domain.SourceFred,
		Symbol:     symbol,
		Resolution: domain.ResolutionDaily,
	}
}

func fredWindow() (int64, int64) {
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	return start, start + 10*dayMs
}

func TestFredFetcher_SkipsMissingMarkers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "DGS10", r.URL.Query().Get("series_id"))
		assert.Equal(t, "2024-02-01", r.URL.Query().Get("observation_start"))
		fmt.Fprint(w, `{"observations":[
			{"date":"2024-02-01","value":"4.02"},
			{"date":"2024-02-02","value":"."},
			{"date":"2024-02-05","value":"4.09"}
		]}`)
	}))
	defer srv.Close()

	f := NewFredFetcher("test-key", fastClient())
	f.baseURL = srv.URL

	start, end := fredWindow()
	series, err := f.Fetch(context.Background(), fredSpec("DGS10"), start, end)
	require.NoError(t, err)

	// "." rows are publication gaps, not zeros.
	require.Len(t, series.Points, 2)
	assert.Equal(t, 4.02, series.Points[0].Value)
	assert.Equal(t, 4.09, series.Points[1].Value)
	assert.Equal(t, time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC).UnixMilli(), series.Points[1].TimestampMs)
}

func TestFredFetcher_TriesFallbackSeries(t *testing.T) {
	var mu sync.Mutex
	var requested []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("series_id")
		mu.Lock()
		requested = append(requested, id)
		mu.Unlock()

		if id == "GOLDPMGBD228NLBM" {
			fmt.Fprint(w, `{"observations":[]}`)
			return
		}
		fmt.Fprint(w, `{"observations":[{"date":"2024-02-02","value":"2031.40"}]}`)
	}))
	defer srv.Close()

	f := NewFredFetcher("test-key", fastClient())
	f.baseURL = srv.URL

	start, end := fredWindow()
	series, err := f.Fetch(context.Background(), fredSpec("GOLDPMGBD228NLBM"), start, end)
	require.NoError(t, err)

	require.Len(t, series.Points, 1)
	assert.Equal(t, 2031.40, series.Points[0].Value)
	assert.Equal(t, []string{"GOLDPMGBD228NLBM", "GOLDAMGBD228NLBM"}, requested)
}

func TestFredFetcher_AllCandidatesEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"observations":[]}`)
	}))
	defer srv.Close()

	f := NewFredFetcher("test-key", fastClient())
	f.baseURL = srv.URL

	start, end := fredWindow()
	series, err := f.Fetch(context.Background(), fredSpec("GOLDPMGBD228NLBM"), start, end)
	require.NoError(t, err)
	assert.True(t, series.Empty())
	assert.Equal(t, "gold_price", series.Name)
}

func TestFredFetcher_MissingAPIKey(t *testing.T) {
	f := NewFredFetcher("", fastClient())
	start, end := fredWindow()
	_, err := f.Fetch(context.Background(), fredSpec("DGS10"), start, end)
	require.Error(t, err)
	kind, ok := fetch.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, fetch.KindInvalidSpec, kind)
}
