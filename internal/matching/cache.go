package matching

import (
	"context"
	"net/url"
	"strings"
)

// Key identifies a cached resolution: the acting tenant plus every device
// field the cascade reads. Serial only separates devices; a serial seen with
// a different model or product type gets its own entry.
type Key struct {
	TenantID    string
	Serial      string
	Model       string
	ProductType string
}

// KeyFor builds the cache key for resolving device on behalf of tenantID.
func KeyFor(tenantID string, device Device) Key {
	return Key{
		TenantID:    tenantID,
		Serial:      device.Serial,
		Model:       device.Model,
		ProductType: device.ProductType,
	}
}

// String encodes the key unambiguously. Components are query-escaped so a
// separator inside a value cannot collide with another key. The serial is
// omitted for devices without one.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString("t=")
	b.WriteString(url.QueryEscape(k.TenantID))
	if k.Serial != "" {
		b.WriteString(",s=")
		b.WriteString(url.QueryEscape(k.Serial))
	}
	b.WriteString(",m=")
	b.WriteString(url.QueryEscape(k.Model))
	b.WriteString(",p=")
	b.WriteString(url.QueryEscape(k.ProductType))
	return b.String()
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Backend   string `json:"backend"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Entries   int    `json:"entries"`
}

// Cache stores successful match results for a fixed TTL from insertion.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the live entry for key. Expired entries are misses.
	Get(ctx context.Context, key Key) (MatchResult, bool)

	// Set stores result under key with the cache's TTL.
	Set(ctx context.Context, key Key, result MatchResult)

	// Purge drops every entry. Operator tooling only; catalog edits do not purge.
	Purge(ctx context.Context) error

	// Stats returns hit, miss and size counters.
	Stats(ctx context.Context) CacheStats
}

// GetOrResolve returns the cached result for key, or calls resolve and caches
// its result on success. Errors are returned as-is and never cached.
// Concurrent misses for the same key may each call resolve.
func GetOrResolve(
	ctx context.Context,
	cache Cache,
	key Key,
	resolve func(context.Context) (MatchResult, error),
) (result MatchResult, hit bool, err error) {
	if cached, ok := cache.Get(ctx, key); ok {
		return cached, true, nil
	}

	result, err = resolve(ctx)
	if err != nil {
		return MatchResult{}, false, err
	}

	cache.Set(ctx, key, result)
	return result, false, nil
}

// nopCache never stores anything. Used when a Resolver is built without a cache.
type nopCache struct{}

func (nopCache) Get(context.Context, Key) (MatchResult, bool) { return MatchResult{}, false }
func (nopCache) Set(context.Context, Key, MatchResult)        {}
func (nopCache) Purge(context.Context) error                  { return nil }
func (nopCache) Stats(context.Context) CacheStats             { return CacheStats{Backend: "none"} }
