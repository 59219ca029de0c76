package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"leadlag-scanner/internal/domain"
	"leadlag-scanner/internal/observability"
	"leadlag-scanner/internal/storage"
)

// Default concurrency and retry settings.
const (
	DefaultPerSourceLimit = 2
	DefaultGlobalLimit    = 8
	DefaultRetryBackoff   = 2 * time.Second
)

// Outcome is the resolution of one requested spec: either a raw series or
// an error, never both, never neither.
type Outcome struct {
	Spec      domain.SeriesSpec
	Series    *domain.RawSeries
	Err       error
	Retries   int  // retry attempts performed (0 or 1)
	FromCache bool // served from a warm, non-stale cache entry
}

// Coordinator dispatches fetch requests across all configured series
// concurrently, consults the cache, enforces per-source and global
// in-flight ceilings, and collects partial failures.
type Coordinator struct {
	registry       Registry
	cache          storage.SeriesCache
	ttl            storage.TTLPolicy
	perSourceLimit int64
	globalLimit    int64
	retryBackoff   time.Duration
	logger         zerolog.Logger
	metrics        *observability.Metrics
	now            func() time.Time

	flight singleflight.Group
}

// CoordinatorOptions configures a Coordinator. Registry is required; Cache
// may be nil to disable caching (every request goes upstream); Metrics may
// be nil to disable instrumentation.
type CoordinatorOptions struct {
	Registry       Registry
	Cache          storage.SeriesCache
	TTL            storage.TTLPolicy
	PerSourceLimit int
	GlobalLimit    int
	RetryBackoff   time.Duration
	Logger         zerolog.Logger
	Metrics        *observability.Metrics
}

// NewCoordinator creates a Coordinator with defaults applied.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	if opts.PerSourceLimit <= 0 {
		opts.PerSourceLimit = DefaultPerSourceLimit
	}
	if opts.GlobalLimit <= 0 {
		opts.GlobalLimit = DefaultGlobalLimit
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if opts.TTL == nil {
		opts.TTL = storage.DefaultTTLPolicy()
	}
	return &Coordinator{
		registry:       opts.Registry,
		cache:          opts.Cache,
		ttl:            opts.TTL,
		perSourceLimit: int64(opts.PerSourceLimit),
		globalLimit:    int64(opts.GlobalLimit),
		retryBackoff:   opts.RetryBackoff,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		now:            time.Now,
	}
}

// FetchAll resolves every spec to exactly one Outcome, keyed by spec name.
// A failure for one spec never blocks or fails the others. Cancellation of
// ctx converts still-pending specs into Timeout outcomes.
func (c *Coordinator) FetchAll(ctx context.Context, specs []domain.SeriesSpec, startMs, endMs int64, forceRefresh bool) map[string]*Outcome {
	outcomes := make(map[string]*Outcome, len(specs))
	var mu sync.Mutex

	global := semaphore.NewWeighted(c.globalLimit)
	perSource := make(map[string]*semaphore.Weighted)
	for _, spec := range specs {
		if _, ok := perSource[spec.Source]; !ok {
			perSource[spec.Source] = semaphore.NewWeighted(c.perSourceLimit)
		}
	}

	var g errgroup.Group
	for _, spec := range specs {
		spec := spec
		g.Go(func() error {
			outcome := c.resolve(ctx, spec, startMs, endMs, forceRefresh, global, perSource[spec.Source])
			mu.Lock()
			outcomes[spec.Name] = outcome
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return outcomes
}

// resolve produces the single outcome for one spec.
func (c *Coordinator) resolve(ctx context.Context, spec domain.SeriesSpec, startMs, endMs int64, forceRefresh bool, global, source *semaphore.Weighted) *Outcome {
	fetcher, ok := c.registry[spec.Source]
	if !ok {
		return &Outcome{
			Spec: spec,
			Err:  NewFetchError(KindInvalidSpec, spec.Source, "no fetcher registered for source", nil),
		}
	}

	key := domain.CacheKeyForSpec(spec)

	if !forceRefresh {
		if entry := c.cacheGet(ctx, key); entry != nil && !storage.IsStale(entry, c.now(), c.ttl) {
			c.logger.Debug().Str("series", spec.Name).Str("source", spec.Source).Msg("cache hit")
			if c.metrics != nil {
				c.metrics.CacheHits.Inc()
			}
			series := entry.Series.Clone()
			series.Name = spec.Name
			return &Outcome{Spec: spec, Series: series, FromCache: true}
		}
	}
	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}

	// Concurrent requests for the same key share one upstream call.
	v, err, _ := c.flight.Do(key.String(), func() (any, error) {
		return c.fetchWithRetry(ctx, fetcher, spec, startMs, endMs, global, source)
	})
	if err != nil {
		return &Outcome{Spec: spec, Err: err, Retries: retriesOf(err)}
	}

	res := v.(*fetchResult)
	series := res.series.Clone()
	series.Name = spec.Name
	return &Outcome{Spec: spec, Series: series, Retries: res.retries}
}

// fetchResult carries a shared singleflight result.
type fetchResult struct {
	series  *domain.RawSeries
	retries int
}

// retryCountError preserves the retry count across the singleflight boundary.
type retryCountError struct {
	err     error
	retries int
}

func (e *retryCountError) Error() string { return e.err.Error() }
func (e *retryCountError) Unwrap() error { return e.err }

func retriesOf(err error) int {
	if rc, ok := err.(*retryCountError); ok {
		return rc.retries
	}
	return 0
}

// fetchWithRetry acquires both concurrency ceilings, invokes the fetcher,
// and retries once after a fixed backoff on retryable failures. On success
// the result is written back to the cache.
func (c *Coordinator) fetchWithRetry(ctx context.Context, fetcher Fetcher, spec domain.SeriesSpec, startMs, endMs int64, global, source *semaphore.Weighted) (*fetchResult, error) {
	if err := global.Acquire(ctx, 1); err != nil {
		return nil, &retryCountError{err: NewFetchError(KindTimeout, spec.Source, "scan cancelled before fetch started", err)}
	}
	defer global.Release(1)

	if err := source.Acquire(ctx, 1); err != nil {
		return nil, &retryCountError{err: NewFetchError(KindTimeout, spec.Source, "scan cancelled before fetch started", err)}
	}
	defer source.Release(1)

	retries := 0
	c.countRequest(spec.Source)
	series, err := fetcher.Fetch(ctx, spec, startMs, endMs)
	if err != nil {
		if _, ok := KindOf(err); !ok {
			err = ClassifyTransportError(spec.Source, err)
		}
		if retryable(err) && ctx.Err() == nil {
			c.logger.Warn().Str("series", spec.Name).Err(err).
				Dur("backoff", c.retryBackoff).Msg("fetch failed, retrying once")
			select {
			case <-time.After(c.retryBackoff):
			case <-ctx.Done():
				return nil, &retryCountError{
					err:     NewFetchError(KindTimeout, spec.Source, "scan cancelled during backoff", ctx.Err()),
					retries: retries,
				}
			}
			retries = 1
			if c.metrics != nil {
				c.metrics.FetchRetries.Inc()
			}
			c.countRequest(spec.Source)
			series, err = fetcher.Fetch(ctx, spec, startMs, endMs)
		}
	}
	if err != nil {
		c.logger.Warn().Str("series", spec.Name).Str("source", spec.Source).Err(err).Msg("fetch failed")
		if c.metrics != nil {
			kind, _ := KindOf(err)
			c.metrics.FetchErrors.WithLabelValues(spec.Source, string(kind)).Inc()
		}
		return nil, &retryCountError{err: err, retries: retries}
	}

	c.cachePut(ctx, spec, series)
	c.logger.Info().Str("series", spec.Name).Str("source", spec.Source).
		Int("observations", len(series.Points)).Msg("fetched series")

	return &fetchResult{series: series, retries: retries}, nil
}

func (c *Coordinator) countRequest(source string) {
	if c.metrics != nil {
		c.metrics.FetchRequests.WithLabelValues(source).Inc()
	}
}

func retryable(err error) bool {
	kind, ok := KindOf(err)
	return ok && (kind == KindTimeout || kind == KindRateLimited)
}

// cacheGet reads through to the cache, treating backend failures as misses.
func (c *Coordinator) cacheGet(ctx context.Context, key domain.CacheKey) *domain.CacheEntry {
	if c.cache == nil {
		return nil
	}
	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		if err != storage.ErrNotFound {
			c.logger.Warn().Str("key", key.String()).Err(err).Msg("cache read failed")
		}
		return nil
	}
	return entry
}

// cachePut writes a fetched series back; failures are logged, not fatal.
func (c *Coordinator) cachePut(ctx context.Context, spec domain.SeriesSpec, series *domain.RawSeries) {
	if c.cache == nil {
		return
	}
	entry := &domain.CacheEntry{
		Key:           domain.CacheKeyForSpec(spec),
		Series:        series.Clone(),
		RetrievedAtMs: c.now().UnixMilli(),
	}
	if err := c.cache.Put(ctx, entry); err != nil {
		c.logger.Warn().Str("series", spec.Name).Err(err).Msg("cache write failed")
	}
}
