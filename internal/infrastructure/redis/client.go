package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/nerrad567/devicelabel-core/internal/infrastructure/config"
)

// Default timeouts for Redis operations.
const (
	defaultConnectTimeout = 5 * time.Second
	defaultPingTimeout    = 2 * time.Second

	// scanBatchSize is the COUNT hint passed to SCAN.
	scanBatchSize = 200
)

// Client wraps a go-redis client with connection state and health checks.
type Client struct {
	rdb *goredis.Client

	connected bool
	mu        sync.RWMutex
}

// Connect creates a client for cfg and verifies the server answers a ping.
func Connect(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.Addr, err)
	}

	return &Client{rdb: rdb, connected: true}, nil
}

// Cmdable exposes the command interface for packages that issue commands
// directly, such as the match cache.
func (c *Client) Cmdable() goredis.Cmdable {
	return c.rdb
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if err := c.rdb.Ping(checkCtx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// IsConnected reports whether Close has not yet been called.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Close releases the connection pool. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false

	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("closing redis client: %w", err)
	}
	return nil
}

// ScanKeys returns every key matching pattern using SCAN, never KEYS.
func ScanKeys(ctx context.Context, rdb goredis.Cmdable, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := rdb.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning keys %q: %w", pattern, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}
