package sources

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"leadlag-scanner/internal/domain"
	"leadlag-scanner/internal/fetch"
)

// NewsFetcher turns an RSS/Atom feed into a daily article-count series, a
// crude news-attention index. The feed URL comes from the spec's
// "feed_url" parameter; an optional "keyword" parameter restricts the count
// to items whose title or description mentions it.
type NewsFetcher struct {
	parser  *gofeed.Parser
	limiter *rate.Limiter
}

// NewNewsFetcher creates an RSS news-volume fetcher.
func NewNewsFetcher() *NewsFetcher {
	return &NewsFetcher{
		parser:  gofeed.NewParser(),
		limiter: rate.NewLimiter(rate.Limit(DefaultRequestsPerSec), DefaultBurst),
	}
}

// Compile-time interface check.
var _ fetch.Fetcher = (*NewsFetcher)(nil)

// Fetch returns one observation per UTC day holding the number of feed
// items published that day. Days without items yield no observation.
func (f *NewsFetcher) Fetch(ctx context.Context, spec domain.SeriesSpec, startMs, endMs int64) (*domain.RawSeries, error) {
	if err := validateWindow(domain.SourceNews, startMs, endMs); err != nil {
		return nil, err
	}
	feedURL := spec.Param("feed_url", "")
	if feedURL == "" {
		return nil, fetch.NewFetchError(fetch.KindInvalidSpec, domain.SourceNews, "spec has no feed_url parameter", nil)
	}
	keyword := strings.ToLower(spec.Param("keyword", ""))

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fetch.NewFetchError(fetch.KindTimeout, domain.SourceNews, "rate limiter wait cancelled", err)
	}

	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fetch.ClassifyTransportError(domain.SourceNews, err)
	}

	counts := make(map[int64]float64)
	for _, item := range feed.Items {
		published := itemTime(item)
		if published == nil {
			continue
		}
		tsMs := published.UnixMilli()
		if tsMs < startMs || tsMs > endMs {
			continue
		}
		if keyword != "" && !itemMentions(item, keyword) {
			continue
		}
		day := published.UTC().Truncate(24 * time.Hour).UnixMilli()
		counts[day]++
	}

	points := make([]domain.Observation, 0, len(counts))
	for day, count := range counts {
		points = append(points, domain.Observation{TimestampMs: day, Value: count})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].TimestampMs < points[j].TimestampMs
	})

	return &domain.RawSeries{Name: spec.Name, Points: points}, nil
}

func itemTime(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	return item.UpdatedParsed
}

func itemMentions(item *gofeed.Item, keyword string) bool {
	return strings.Contains(strings.ToLower(item.Title), keyword) ||
		strings.Contains(strings.ToLower(item.Description), keyword)
}
