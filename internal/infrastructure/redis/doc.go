// Package redis provides Redis connectivity for the shared match cache.
//
// It wraps github.com/go-redis/redis/v8 with the same lifecycle shape as the
// other infrastructure clients: Connect verifies the server with a ping,
// HealthCheck pings on demand and Close releases the pool.
//
// # Usage
//
//	client, err := redis.Connect(ctx, cfg.Redis)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	cache := matching.NewRedisCache(client.Cmdable(), cfg.Cache.KeyPrefix, cfg.Cache.TTL())
//
// # Thread Safety
//
// All methods are safe for concurrent use; the underlying client is a
// connection pool.
package redis
