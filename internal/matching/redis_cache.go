package matching

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/nerrad567/devicelabel-core/internal/infrastructure/redis"
)

// RedisCache is a Cache shared by every service instance. Entries are JSON
// values written with SET ... EX ttl, so Redis enforces expiry. Redis errors
// degrade to misses: resolution keeps working, only slower.
type RedisCache struct {
	rdb    goredis.Cmdable
	prefix string
	ttl    time.Duration
	logger Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewRedisCache creates a cache storing entries under prefix for ttl.
// A ttl of zero or less uses DefaultTTL.
func NewRedisCache(rdb goredis.Cmdable, prefix string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger used to report Redis failures.
func (c *RedisCache) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

func (c *RedisCache) redisKey(key Key) string {
	return c.prefix + key.String()
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key Key) (MatchResult, bool) {
	data, err := c.rdb.Get(ctx, c.redisKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logger.Warn("match cache read failed", "key", key.String(), "error", err)
		}
		c.misses.Add(1)
		return MatchResult{}, false
	}

	var entry redisEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("discarding undecodable match cache entry", "key", key.String(), "error", err)
		c.misses.Add(1)
		return MatchResult{}, false
	}

	c.hits.Add(1)
	return entry.result(), true
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key Key, result MatchResult) {
	data, err := json.Marshal(newRedisEntry(result))
	if err != nil {
		c.logger.Warn("encoding match cache entry failed", "key", key.String(), "error", err)
		return
	}
	if err := c.rdb.Set(ctx, c.redisKey(key), data, c.ttl).Err(); err != nil {
		c.logger.Warn("match cache write failed", "key", key.String(), "error", err)
	}
}

// redisEntry is the stored form of a MatchResult. The template design
// travels as opaque bytes: json.RawMessage would be compacted and
// HTML-escaped on encode, and a hit must equal a fresh resolution byte for
// byte.
type redisEntry struct {
	Result MatchResult `json:"result"`
	Design []byte      `json:"design"`
}

func newRedisEntry(r MatchResult) redisEntry {
	e := redisEntry{Result: r, Design: r.Template.Design}
	e.Result.Template.Design = nil
	return e
}

func (e redisEntry) result() MatchResult {
	r := e.Result
	if e.Design != nil {
		r.Template.Design = json.RawMessage(e.Design)
	}
	return r
}

// Purge implements Cache. Only keys under the cache prefix are removed.
func (c *RedisCache) Purge(ctx context.Context) error {
	keys, err := redis.ScanKeys(ctx, c.rdb, c.prefix+"*")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Stats implements Cache. Hits and misses are counted per instance; Entries
// counts keys under the prefix and is -1 when Redis cannot be reached.
func (c *RedisCache) Stats(ctx context.Context) CacheStats {
	entries := -1
	if keys, err := redis.ScanKeys(ctx, c.rdb, c.prefix+"*"); err == nil {
		entries = len(keys)
	}
	return CacheStats{
		Backend: "redis",
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: entries,
	}
}
