package storage

import (
	"time"

	"leadlag-scanner/internal/domain"
)

// TTLPolicy decides how long a cached series stays fresh. It is a pure
// function of source and resolution, supplied by configuration.
type TTLPolicy func(source string, resolution domain.Resolution) time.Duration

// defaultTTLs keys freshness off the series resolution: fast-moving daily
// data is refetched within a day, slow macro series far less often.
var defaultTTLs = map[domain.Resolution]time.Duration{
	domain.ResolutionDaily:     12 * time.Hour,
	domain.ResolutionWeekly:    24 * time.Hour,
	domain.ResolutionMonthly:   7 * 24 * time.Hour,
	domain.ResolutionQuarterly: 30 * 24 * time.Hour,
	domain.ResolutionAnnual:    90 * 24 * time.Hour,
}

// DefaultTTLPolicy returns the built-in per-resolution policy.
func DefaultTTLPolicy() TTLPolicy {
	return func(_ string, resolution domain.Resolution) time.Duration {
		if ttl, ok := defaultTTLs[resolution]; ok {
			return ttl
		}
		return 24 * time.Hour
	}
}

// TTLPolicyWithOverrides wraps a base policy with per-source overrides.
func TTLPolicyWithOverrides(base TTLPolicy, overrides map[string]time.Duration) TTLPolicy {
	return func(source string, resolution domain.Resolution) time.Duration {
		if ttl, ok := overrides[source]; ok {
			return ttl
		}
		return base(source, resolution)
	}
}

// IsStale reports whether an entry is older than the policy's TTL at now.
func IsStale(e *domain.CacheEntry, now time.Time, policy TTLPolicy) bool {
	if e == nil {
		return true
	}
	ttl := policy(e.Key.Source, e.Key.Resolution)
	age := now.UnixMilli() - e.RetrievedAtMs
	return age > ttl.Milliseconds()
}
