package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the service configuration as read from YAML.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Security SecurityConfig `yaml:"security"`
	Cache    CacheConfig    `yaml:"cache"`
	Redis    RedisConfig    `yaml:"redis"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Meraki   MerakiConfig   `yaml:"meraki"`
	Export   ExportConfig   `yaml:"export"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"` // seconds
}

type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// Addr is the listen address.
func (c APIConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// APITimeoutConfig holds HTTP server timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

func (t APITimeoutConfig) ReadTimeout() time.Duration  { return seconds(t.Read) }
func (t APITimeoutConfig) WriteTimeout() time.Duration { return seconds(t.Write) }
func (t APITimeoutConfig) IdleTimeout() time.Duration  { return seconds(t.Idle) }

// CORSConfig lists what browsers may send cross-origin. An empty
// AllowedOrigins disables CORS headers.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig verifies bearer tokens. Tokens are issued elsewhere; this
// service never signs one.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"` // checked when set
}

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// CacheConfig controls the match result cache.
type CacheConfig struct {
	// Backend is "memory" (per process) or "redis" (shared).
	Backend string `yaml:"backend"`

	// TTLMinutes counts from insertion; reads do not extend it.
	TTLMinutes int `yaml:"ttl_minutes"`

	// Shards partitions the memory cache's locks.
	Shards int `yaml:"shards"`

	// SweepIntervalSeconds is how often the memory cache drops expired
	// entries. 0 disables sweeping; expired entries still miss on read.
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`

	// KeyPrefix namespaces Redis keys.
	KeyPrefix string `yaml:"key_prefix"`
}

func (c CacheConfig) TTL() time.Duration           { return time.Duration(c.TTLMinutes) * time.Minute }
func (c CacheConfig) SweepInterval() time.Duration { return seconds(c.SweepIntervalSeconds) }

// RedisConfig is used when cache.backend is "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// Addr is host:port of the broker.
func (b MQTTBrokerConfig) Addr() string {
	return net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig delays are in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // seconds
}

// MerakiConfig configures the Dashboard API client.
type MerakiConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RetryCount     int    `yaml:"retry_count"`
	PageSize       int    `yaml:"page_size"`
}

func (c MerakiConfig) Timeout() time.Duration { return seconds(c.TimeoutSeconds) }

type ExportConfig struct {
	// Concurrency bounds parallel resolutions within one export.
	Concurrency int `yaml:"concurrency"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	Output string `yaml:"output"` // stdout or stderr
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
