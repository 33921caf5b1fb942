package mqtt

import (
	"encoding/json"
	"fmt"
)

// maxPayloadSize caps a single message at 1 MB.
const maxPayloadSize = 1 << 20

// Publish sends payload and, for QoS 1 and 2, waits for the broker's ack up
// to defaultPublishTimeout. Events are published unretained; only the
// status topic is retained.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case len(payload) > maxPayloadSize:
		return fmt.Errorf("%w: %d byte payload exceeds %d", ErrPublishFailed, len(payload), maxPayloadSize)
	case !c.IsConnected():
		return ErrNotConnected
	}

	return await(c.client.Publish(topic, qos, retained, payload), defaultPublishTimeout, ErrPublishFailed)
}

// PublishJSON encodes v as JSON and publishes it.
//
//	err := client.PublishJSON(mqtt.Topics{}.InventorySynced("conn-acme"), result, 1, false)
func (c *Client) PublishJSON(topic string, v any, qos byte, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding payload for %s: %w", ErrPublishFailed, topic, err)
	}
	return c.Publish(topic, payload, qos, retained)
}
