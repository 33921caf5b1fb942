package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults with secret", mutate: func(*Config) {}},
		{name: "redis backend", mutate: func(c *Config) { c.Cache.Backend = CacheBackendRedis }},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: "database.path"},
		{name: "port zero", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: "api.port 0"},
		{name: "port too high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: "api.port 70000"},
		{name: "no secret", mutate: func(c *Config) { c.Security.JWT.Secret = "" }, wantErr: "DEVICELABEL_JWT_SECRET"},
		{name: "short secret", mutate: func(c *Config) { c.Security.JWT.Secret = "short" }, wantErr: "at least 32"},
		{name: "unknown backend", mutate: func(c *Config) { c.Cache.Backend = "memcached" }, wantErr: `"memcached"`},
		{
			name: "redis without address",
			mutate: func(c *Config) {
				c.Cache.Backend = CacheBackendRedis
				c.Redis.Addr = ""
			},
			wantErr: "redis.addr",
		},
		{name: "negative shards", mutate: func(c *Config) { c.Cache.Shards = -1 }, wantErr: "cache.shards"},
		{name: "zero ttl", mutate: func(c *Config) { c.Cache.TTLMinutes = 0 }, wantErr: "ttl_minutes"},
		{name: "qos 3", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: "mqtt.qos"},
		{
			name: "mqtt enabled without host",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.Broker.Host = ""
			},
			wantErr: "mqtt.broker.host",
		},
		{name: "influxdb enabled without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: "influxdb.url"},
		{name: "no meraki url", mutate: func(c *Config) { c.Meraki.BaseURL = "" }, wantErr: "meraki.base_url"},
		{name: "negative retries", mutate: func(c *Config) { c.Meraki.RetryCount = -1 }, wantErr: "retry_count"},
		{name: "zero export concurrency", mutate: func(c *Config) { c.Export.Concurrency = 0 }, wantErr: "export.concurrency"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: "logging.level"},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Security.JWT.Secret = testSecret
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Path = ""
	cfg.API.Port = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.path")
	assert.Contains(t, err.Error(), "api.port")
	assert.Contains(t, err.Error(), "security.jwt.secret")
}
