package mqtt

import (
	"fmt"
	"sort"
)

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Subscribe registers handler for topic, which may use + and # wildcards.
// The subscription is replayed after every reconnect.
//
//	err := client.Subscribe(mqtt.Topics{}.AllSyncRequests(), 1, handler)
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case handler == nil:
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, topic)
	case !c.IsConnected():
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{qos: qos, handler: handler}
	c.subMu.Unlock()

	if err := await(c.client.Subscribe(topic, qos, c.wrapHandler(handler)), defaultPublishTimeout, ErrSubscribeFailed); err != nil {
		c.forget(topic)
		return err
	}
	return nil
}

// Unsubscribe stops delivery for a topic pattern previously passed to
// Subscribe. Messages already in flight may still arrive.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.forget(topic)
	return await(c.client.Unsubscribe(topic), defaultPublishTimeout, ErrUnsubscribeFailed)
}

func (c *Client) forget(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}

// Subscriptions lists the tracked topic patterns in sorted order.
func (c *Client) Subscriptions() []string {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	topics := make([]string, 0, len(c.subscriptions))
	for topic := range c.subscriptions {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// SubscriptionCount returns how many topic patterns are tracked.
func (c *Client) SubscriptionCount() int {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	return len(c.subscriptions)
}

// HasSubscription reports whether exactly this pattern is tracked.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	_, ok := c.subscriptions[topic]
	return ok
}

// restoreSubscriptions replays tracked subscriptions after a reconnect.
// It runs on paho's connect goroutine, so waiting on tokens is allowed.
func (c *Client) restoreSubscriptions() {
	c.subMu.Lock()
	pending := make(map[string]subscription, len(c.subscriptions))
	for topic, sub := range c.subscriptions {
		pending[topic] = sub
	}
	c.subMu.Unlock()

	for topic, sub := range pending {
		err := await(c.client.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler)), defaultPublishTimeout, ErrSubscribeFailed)
		if err != nil {
			if l := c.getLogger(); l != nil {
				l.Warn("mqtt resubscribe failed", "topic", topic, "error", err)
			}
		}
	}
}
