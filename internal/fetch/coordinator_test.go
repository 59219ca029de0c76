package fetch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadlag-scanner/internal/domain"
	"leadlag-scanner/internal/storage/memory"
)

const dayMs = int64(24 * 60 * 60 * 1000)

func testSeries(n int) *domain.RawSeries {
	points := make([]domain.Observation, n)
	for i := range points {
		points[i] = domain.Observation{TimestampMs: int64(i) * dayMs, Value: float64(i) + 0.5}
	}
	return &domain.RawSeries{Points: points}
}

// scriptedFetcher fails with the queued errors, one per call, then succeeds.
type scriptedFetcher struct {
	mu     sync.Mutex
	calls  int
	errs   []error
	series *domain.RawSeries
	delay  time.Duration
}

var _ Fetcher = (*scriptedFetcher)(nil)

func (f *scriptedFetcher) Fetch(ctx context.Context, spec domain.SeriesSpec, startMs, endMs int64) (*domain.RawSeries, error) {
	f.mu.Lock()
	f.calls++
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	s := f.series.Clone()
	s.Name = spec.Name
	return s, nil
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func spec(name, source, symbol string) domain.SeriesSpec {
	return domain.SeriesSpec{Name: name, Source: source, Symbol: symbol, Resolution: domain.ResolutionDaily}
}

func newTestCoordinator(registry Registry, cache *memory.SeriesCache) *Coordinator {
	return NewCoordinator(CoordinatorOptions{
		Registry:     registry,
		Cache:        cache,
		RetryBackoff: time.Millisecond,
		Logger:       zerolog.Nop(),
	})
}

func TestFetchAllResolvesEverySpec(t *testing.T) {
	binance := &scriptedFetcher{series: testSeries(10)}
	fred := &scriptedFetcher{series: testSeries(5)}
	coordinator := newTestCoordinator(Registry{"binance": binance, "fred": fred}, memory.NewSeriesCache())

	specs := []domain.SeriesSpec{
		spec("btc", "binance", "BTCUSDT"),
		spec("gold", "fred", "GOLDPMGBD228NLBM"),
		spec("cpi", "fred", "CPIAUCSL"),
	}

	outcomes := coordinator.FetchAll(context.Background(), specs, 0, 9*dayMs, false)

	require.Len(t, outcomes, 3)
	for _, s := range specs {
		outcome := outcomes[s.Name]
		require.NotNil(t, outcome, "outcome for %s", s.Name)
		require.NoError(t, outcome.Err)
		assert.Equal(t, s.Name, outcome.Series.Name)
		assert.False(t, outcome.FromCache)
		assert.Equal(t, 0, outcome.Retries)
	}
}

func TestFetchAllWarmCacheIdempotence(t *testing.T) {
	fetcher := &scriptedFetcher{series: testSeries(10)}
	cache := memory.NewSeriesCache()
	coordinator := newTestCoordinator(Registry{"binance": fetcher}, cache)

	specs := []domain.SeriesSpec{spec("btc", "binance", "BTCUSDT")}

	first := coordinator.FetchAll(context.Background(), specs, 0, 9*dayMs, false)
	require.NoError(t, first["btc"].Err)
	require.Equal(t, 1, fetcher.callCount())

	second := coordinator.FetchAll(context.Background(), specs, 0, 9*dayMs, false)
	require.NoError(t, second["btc"].Err)

	// Zero additional upstream calls; identical series.
	assert.Equal(t, 1, fetcher.callCount())
	assert.True(t, second["btc"].FromCache)
	assert.Equal(t, first["btc"].Series.Points, second["btc"].Series.Points)
}

func TestFetchAllForceRefreshBypassesCache(t *testing.T) {
	fetcher := &scriptedFetcher{series: testSeries(10)}
	coordinator := newTestCoordinator(Registry{"binance": fetcher}, memory.NewSeriesCache())

	specs := []domain.SeriesSpec{spec("btc", "binance", "BTCUSDT")}

	coordinator.FetchAll(context.Background(), specs, 0, 9*dayMs, false)
	outcomes := coordinator.FetchAll(context.Background(), specs, 0, 9*dayMs, true)

	assert.Equal(t, 2, fetcher.callCount())
	assert.False(t, outcomes["btc"].FromCache)
}

func TestFetchAllRetriesOnceOnTimeout(t *testing.T) {
	fetcher := &scriptedFetcher{
		series: testSeries(10),
		errs:   []error{NewFetchError(KindTimeout, "binance", "deadline exceeded", nil)},
	}
	coordinator := newTestCoordinator(Registry{"binance": fetcher}, memory.NewSeriesCache())

	outcomes := coordinator.FetchAll(context.Background(),
		[]domain.SeriesSpec{spec("btc", "binance", "BTCUSDT")}, 0, 9*dayMs, false)

	outcome := outcomes["btc"]
	require.NoError(t, outcome.Err)
	assert.Equal(t, 1, outcome.Retries)
	assert.Equal(t, 2, fetcher.callCount())
}

func TestFetchAllRetryIsBounded(t *testing.T) {
	rateLimited := NewFetchError(KindRateLimited, "trends", "throttled", nil)
	fetcher := &scriptedFetcher{
		series: testSeries(10),
		errs:   []error{rateLimited, rateLimited, rateLimited},
	}
	coordinator := newTestCoordinator(Registry{"trends": fetcher}, memory.NewSeriesCache())

	outcomes := coordinator.FetchAll(context.Background(),
		[]domain.SeriesSpec{spec("fear", "trends", "fear index")}, 0, 9*dayMs, false)

	outcome := outcomes["fear"]
	require.Error(t, outcome.Err)
	kind, ok := KindOf(outcome.Err)
	require.True(t, ok)
	assert.Equal(t, KindRateLimited, kind)
	assert.Equal(t, 1, outcome.Retries)
	assert.Equal(t, 2, fetcher.callCount())
}

func TestFetchAllDoesNotRetryInvalidSpec(t *testing.T) {
	fetcher := &scriptedFetcher{
		series: testSeries(10),
		errs:   []error{NewFetchError(KindInvalidSpec, "yahoo", "unknown symbol", nil)},
	}
	coordinator := newTestCoordinator(Registry{"yahoo": fetcher}, memory.NewSeriesCache())

	outcomes := coordinator.FetchAll(context.Background(),
		[]domain.SeriesSpec{spec("bad", "yahoo", "NOPE")}, 0, 9*dayMs, false)

	require.Error(t, outcomes["bad"].Err)
	assert.Equal(t, 0, outcomes["bad"].Retries)
	assert.Equal(t, 1, fetcher.callCount())
}

func TestFetchAllDoesNotRetryUnavailable(t *testing.T) {
	fetcher := &scriptedFetcher{
		series: testSeries(10),
		errs:   []error{NewFetchError(KindUnavailable, "fng", "upstream down", nil)},
	}
	coordinator := newTestCoordinator(Registry{"fng": fetcher}, memory.NewSeriesCache())

	outcomes := coordinator.FetchAll(context.Background(),
		[]domain.SeriesSpec{spec("sent", "fng", "sentiment")}, 0, 9*dayMs, false)

	require.Error(t, outcomes["sent"].Err)
	assert.Equal(t, 1, fetcher.callCount())
}

func TestFetchAllFailureDoesNotAffectOthers(t *testing.T) {
	healthy := &scriptedFetcher{series: testSeries(10)}
	broken := &scriptedFetcher{
		series: testSeries(10),
		errs:   []error{NewFetchError(KindUnavailable, "fng", "upstream down", nil)},
	}
	coordinator := newTestCoordinator(Registry{"binance": healthy, "fng": broken}, memory.NewSeriesCache())

	outcomes := coordinator.FetchAll(context.Background(), []domain.SeriesSpec{
		spec("btc", "binance", "BTCUSDT"),
		spec("sent", "fng", "sentiment"),
	}, 0, 9*dayMs, false)

	require.NoError(t, outcomes["btc"].Err)
	require.Error(t, outcomes["sent"].Err)
}

func TestFetchAllUnknownSource(t *testing.T) {
	coordinator := newTestCoordinator(Registry{}, memory.NewSeriesCache())

	outcomes := coordinator.FetchAll(context.Background(),
		[]domain.SeriesSpec{spec("x", "nope", "X")}, 0, 9*dayMs, false)

	require.Error(t, outcomes["x"].Err)
	kind, ok := KindOf(outcomes["x"].Err)
	require.True(t, ok)
	assert.Equal(t, KindInvalidSpec, kind)
}

func TestFetchAllDeduplicatesSameKey(t *testing.T) {
	fetcher := &scriptedFetcher{series: testSeries(10), delay: 20 * time.Millisecond}
	coordinator := newTestCoordinator(Registry{"binance": fetcher}, memory.NewSeriesCache())

	// Two specs resolving to the same cache key share one upstream call.
	outcomes := coordinator.FetchAll(context.Background(), []domain.SeriesSpec{
		spec("btc", "binance", "BTCUSDT"),
		spec("btc-alias", "binance", "BTCUSDT"),
	}, 0, 9*dayMs, false)

	require.NoError(t, outcomes["btc"].Err)
	require.NoError(t, outcomes["btc-alias"].Err)
	assert.Equal(t, 1, fetcher.callCount())
	assert.Equal(t, "btc", outcomes["btc"].Series.Name)
	assert.Equal(t, "btc-alias", outcomes["btc-alias"].Series.Name)
}

func TestFetchAllCancelledContext(t *testing.T) {
	fetcher := &scriptedFetcher{series: testSeries(10)}
	coordinator := newTestCoordinator(Registry{"binance": fetcher}, memory.NewSeriesCache())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := coordinator.FetchAll(ctx,
		[]domain.SeriesSpec{spec("btc", "binance", "BTCUSDT")}, 0, 9*dayMs, false)

	require.Error(t, outcomes["btc"].Err)
	kind, ok := KindOf(outcomes["btc"].Err)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, kind)
}
