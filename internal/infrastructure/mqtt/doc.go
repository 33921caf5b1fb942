// Package mqtt connects the device label service to an MQTT broker.
//
// The service uses the bus in both directions:
//   - publishes inventory sync results and template resolutions so that
//     print stations and dashboards can react without polling the API
//   - subscribes to per-connection sync requests (devicelabel/inventory/+/sync)
//
// A retained status message on devicelabel/system/status reports whether the
// service is online; the broker publishes the offline form as Last Will if
// the process dies.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllSyncRequests(), 1,
//	    func(topic string, _ []byte) error {
//	        id, ok := mqtt.ConnectionFromSyncRequest(topic)
//	        if !ok {
//	            return nil
//	        }
//	        _, err := syncer.Sync(ctx, id)
//	        return err
//	    })
//
// Subscriptions are tracked and restored after a reconnect. Handlers run on
// paho's goroutines with panic recovery.
package mqtt
