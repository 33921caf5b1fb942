package matching

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultTTL is how long a resolution stays cached when no TTL is configured.
const DefaultTTL = 30 * time.Minute

// defaultShards is the shard count when none is configured.
const defaultShards = 32

// MemoryCache is a process-local Cache: a sharded map, each shard behind its
// own RWMutex. Expired entries are misses on read and are removed lazily or
// by Sweep.
type MemoryCache struct {
	shards []*cacheShard
	ttl    time.Duration
	now    func() time.Time

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type cacheShard struct {
	mu      sync.RWMutex
	entries map[Key]cacheEntry
}

type cacheEntry struct {
	result    MatchResult
	expiresAt time.Time
}

// MemoryOption configures a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithShards sets the number of shards. Values below 1 keep the default.
func WithShards(n int) MemoryOption {
	return func(c *MemoryCache) {
		if n > 0 {
			c.shards = newShards(n)
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		c.now = now
	}
}

// NewMemoryCache creates a cache whose entries live for ttl from insertion.
// A ttl of zero or less uses DefaultTTL.
func NewMemoryCache(ttl time.Duration, opts ...MemoryOption) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &MemoryCache{
		shards: newShards(defaultShards),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newShards(n int) []*cacheShard {
	shards := make([]*cacheShard, n)
	for i := range shards {
		shards[i] = &cacheShard{entries: make(map[Key]cacheEntry)}
	}
	return shards
}

func (c *MemoryCache) shard(key Key) *cacheShard {
	h := xxhash.Sum64String(key.String())
	return c.shards[h%uint64(len(c.shards))]
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key Key) (MatchResult, bool) {
	s := c.shard(key)
	now := c.now()

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return MatchResult{}, false
	}
	if !now.Before(entry.expiresAt) {
		s.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the entry.
		if current, still := s.entries[key]; still && !now.Before(current.expiresAt) {
			delete(s.entries, key)
			c.evictions.Add(1)
		}
		s.mu.Unlock()
		c.misses.Add(1)
		return MatchResult{}, false
	}

	c.hits.Add(1)
	return entry.result.deepCopy(), true
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key Key, result MatchResult) {
	entry := cacheEntry{
		result:    result.deepCopy(),
		expiresAt: c.now().Add(c.ttl),
	}

	s := c.shard(key)
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
}

// Purge implements Cache.
func (c *MemoryCache) Purge(context.Context) error {
	for _, s := range c.shards {
		s.mu.Lock()
		s.entries = make(map[Key]cacheEntry)
		s.mu.Unlock()
	}
	return nil
}

// Sweep removes expired entries and returns how many were removed.
func (c *MemoryCache) Sweep() int {
	now := c.now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.entries {
			if !now.Before(e.expiresAt) {
				delete(s.entries, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	c.evictions.Add(uint64(removed)) //nolint:gosec // removed is never negative
	return removed
}

// Run sweeps expired entries every interval until ctx is cancelled.
// It blocks; start it in its own goroutine. An interval of zero or less
// returns immediately and leaves expiry to reads.
func (c *MemoryCache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *MemoryCache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// Stats implements Cache.
func (c *MemoryCache) Stats(context.Context) CacheStats {
	return CacheStats{
		Backend:   "memory",
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.Len(),
	}
}
