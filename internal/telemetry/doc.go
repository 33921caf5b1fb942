// Package telemetry turns template resolutions into metrics and events.
//
// Each implementation satisfies matching.Observer and is registered on the
// resolver with matching.WithObserver:
//   - InfluxObserver writes one "template_match" point per resolution
//   - MQTTObserver publishes each resolution to devicelabel/match/{tenant}/resolved
//   - Fanout forwards to several observers
//
// Observers never block the resolver: the Influx write API is batched and
// the MQTT observer drops events once its queue is full.
package telemetry
