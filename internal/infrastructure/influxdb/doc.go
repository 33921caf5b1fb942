// Package influxdb writes resolution metrics to InfluxDB v2.
//
// It wraps github.com/influxdata/influxdb-client-go/v2 with the lifecycle
// shared by the other infrastructure clients (Connect, HealthCheck,
// IsConnected, Close). Writes go through the non-blocking batched write API;
// batch failures are reported to the SetOnError callback.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics off
//	}
//	defer client.Close()
//
//	client.WritePoint("template_match",
//	    map[string]string{"tenant_id": "conn-acme", "reason": "model_match"},
//	    map[string]any{"confidence": 1.0, "cache_hit": true})
//
// Batch size and flush interval come from the influxdb config section.
package influxdb
