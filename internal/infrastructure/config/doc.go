// Package config loads the service configuration: defaults, then a YAML
// file, then DEVICELABEL_* environment variables. Secrets (JWT secret,
// Redis and MQTT passwords, InfluxDB token) should come from the
// environment.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	cache := matching.NewMemoryCache(cfg.Cache.TTL())
package config
