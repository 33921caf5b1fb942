package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "DEVICELABEL_"

// Load reads the YAML file at path over the defaults, applies
// DEVICELABEL_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Defaults returns the configuration used for keys the file omits.
func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./data/devicelabel.db", WALMode: true, BusyTimeout: 5},
		API: APIConfig{
			Host:     "0.0.0.0",
			Port:     8080,
			Timeouts: APITimeoutConfig{Read: 30, Write: 60, Idle: 120},
		},
		Cache: CacheConfig{
			Backend:              CacheBackendMemory,
			TTLMinutes:           30,
			Shards:               32,
			SweepIntervalSeconds: 60,
			KeyPrefix:            "devicelabel:match:",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		MQTT: MQTTConfig{
			Broker:    MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "devicelabel-core"},
			QoS:       1,
			Reconnect: MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
		},
		Meraki: MerakiConfig{
			BaseURL:        "https://api.meraki.com/api/v1",
			TimeoutSeconds: 30,
			RetryCount:     3,
			PageSize:       1000,
		},
		Export:  ExportConfig{Concurrency: 8},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

// envVar binds one environment variable (without EnvPrefix) to a field.
type envVar struct {
	name string
	set  func(c *Config, v string) error
}

func str(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func integer(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("not an integer: %q", v)
		}
		*field(c) = n
		return nil
	}
}

func boolean(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("not a boolean: %q", v)
		}
		*field(c) = b
		return nil
	}
}

// envVars are the supported overrides. Secrets belong here rather than in
// the file.
var envVars = []envVar{
	{"DATABASE_PATH", str(func(c *Config) *string { return &c.Database.Path })},
	{"API_HOST", str(func(c *Config) *string { return &c.API.Host })},
	{"API_PORT", integer(func(c *Config) *int { return &c.API.Port })},
	{"JWT_SECRET", str(func(c *Config) *string { return &c.Security.JWT.Secret })},
	{"CACHE_BACKEND", str(func(c *Config) *string { return &c.Cache.Backend })},
	{"CACHE_TTL_MINUTES", integer(func(c *Config) *int { return &c.Cache.TTLMinutes })},
	{"REDIS_ADDR", str(func(c *Config) *string { return &c.Redis.Addr })},
	{"REDIS_PASSWORD", str(func(c *Config) *string { return &c.Redis.Password })},
	{"MQTT_ENABLED", boolean(func(c *Config) *bool { return &c.MQTT.Enabled })},
	{"MQTT_HOST", str(func(c *Config) *string { return &c.MQTT.Broker.Host })},
	{"MQTT_USERNAME", str(func(c *Config) *string { return &c.MQTT.Auth.Username })},
	{"MQTT_PASSWORD", str(func(c *Config) *string { return &c.MQTT.Auth.Password })},
	{"INFLUXDB_ENABLED", boolean(func(c *Config) *bool { return &c.InfluxDB.Enabled })},
	{"INFLUXDB_TOKEN", str(func(c *Config) *string { return &c.InfluxDB.Token })},
	{"MERAKI_BASE_URL", str(func(c *Config) *string { return &c.Meraki.BaseURL })},
	{"LOG_LEVEL", str(func(c *Config) *string { return &c.Logging.Level })},
}

// applyEnv sets every variable lookup finds. Empty values are ignored;
// malformed numbers and booleans are errors.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	for _, e := range envVars {
		v, ok := lookup(EnvPrefix + e.name)
		if !ok || v == "" {
			continue
		}
		if err := e.set(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, e.name, err))
		}
	}
	return errors.Join(errs...)
}
