package config

import (
	"errors"
	"fmt"
	"slices"
)

// minJWTSecretLength is the shortest HS256 secret accepted.
const minJWTSecretLength = 32

var (
	logLevels  = []string{"debug", "info", "warn", "warning", "error"}
	logFormats = []string{"json", "text"}
)

// Validate reports every problem at once, one joined error per field.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Database.Path == "" {
		fail("database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		fail("api.port %d out of range 1-65535", c.API.Port)
	}

	switch secret := c.Security.JWT.Secret; {
	case secret == "":
		fail("security.jwt.secret is required (set %sJWT_SECRET)", EnvPrefix)
	case len(secret) < minJWTSecretLength:
		fail("security.jwt.secret must be at least %d characters", minJWTSecretLength)
	}

	switch c.Cache.Backend {
	case CacheBackendMemory:
		if c.Cache.Shards < 0 {
			fail("cache.shards must not be negative")
		}
	case CacheBackendRedis:
		if c.Redis.Addr == "" {
			fail("redis.addr is required when cache.backend is %s", CacheBackendRedis)
		}
	default:
		fail("cache.backend %q is not %s or %s", c.Cache.Backend, CacheBackendMemory, CacheBackendRedis)
	}
	if c.Cache.TTLMinutes <= 0 {
		fail("cache.ttl_minutes must be positive")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		fail("mqtt.qos must be 0, 1 or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		fail("mqtt.broker.host is required when mqtt is enabled")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		fail("influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if c.Meraki.BaseURL == "" {
		fail("meraki.base_url is required")
	}
	if c.Meraki.RetryCount < 0 {
		fail("meraki.retry_count must not be negative")
	}

	if c.Export.Concurrency < 1 {
		fail("export.concurrency must be at least 1")
	}

	if !slices.Contains(logLevels, c.Logging.Level) {
		fail("logging.level %q is not one of %v", c.Logging.Level, logLevels)
	}
	if !slices.Contains(logFormats, c.Logging.Format) {
		fail("logging.format %q is not one of %v", c.Logging.Format, logFormats)
	}

	return errors.Join(errs...)
}
