// Package sources provides the concrete fetcher variants, one per upstream
// data source. Every fetcher satisfies the fetch.Fetcher contract and is
// safe for concurrent use across different specs.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"leadlag-scanner/internal/fetch"
)

// Default HTTP client settings.
const (
	DefaultTimeout        = 15 * time.Second
	DefaultRequestsPerSec = 2
	DefaultBurst          = 1
)

// httpClient wraps net/http with per-source request rate limiting and
// FetchError classification. Each fetcher owns one; the limiter is what
// keeps a single scan from hammering an upstream beyond its quota.
type httpClient struct {
	source  string
	client  *http.Client
	limiter *rate.Limiter
}

// ClientOption configures an httpClient.
type ClientOption func(*httpClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *httpClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *httpClient) {
		c.client = client
	}
}

// WithRateLimit sets the request rate limit for this source.
func WithRateLimit(requestsPerSec float64, burst int) ClientOption {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSec), burst)
	}
}

func newHTTPClient(source string, opts ...ClientOption) *httpClient {
	c := &httpClient{
		source:  source,
		client:  &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(DefaultRequestsPerSec), DefaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// getJSON performs a rate-limited GET and decodes the JSON response body
// into dest. Failures are returned as *fetch.FetchError.
func (c *httpClient) getJSON(ctx context.Context, rawURL string, params url.Values, dest any) error {
	body, err := c.get(ctx, rawURL, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fetch.NewFetchError(fetch.KindUnavailable, c.source, "decode response body", err)
	}
	return nil
}

// get performs a rate-limited GET and returns the raw response body.
func (c *httpClient) get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fetch.NewFetchError(fetch.KindTimeout, c.source, "rate limiter wait cancelled", err)
	}

	u := rawURL
	if len(params) > 0 {
		u = rawURL + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fetch.NewFetchError(fetch.KindInvalidSpec, c.source, "build request", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fetch.ClassifyTransportError(c.source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fetch.ClassifyHTTPStatus(c.source, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fetch.NewFetchError(fetch.KindUnavailable, c.source, "read response body", err)
	}
	return body, nil
}

// validateWindow rejects inverted fetch windows before any network I/O.
func validateWindow(source string, startMs, endMs int64) error {
	if startMs > endMs {
		return fetch.NewFetchError(fetch.KindInvalidSpec, source,
			fmt.Sprintf("window start %d after end %d", startMs, endMs), nil)
	}
	return nil
}
