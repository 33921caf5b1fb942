package mqtt

import "errors"

var (
	// ErrNotConnected means the broker is currently unreachable. Paho keeps
	// reconnecting in the background; callers may retry later.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed wraps the cause of a failed initial Connect.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS is returned for QoS levels above 2.
	ErrInvalidQoS = errors.New("mqtt: qos must be 0, 1 or 2")

	// ErrInvalidTopic is returned for an empty topic.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
