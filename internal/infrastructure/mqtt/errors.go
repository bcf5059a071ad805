package mqtt

import "errors"

// Broker link errors.
var (
	// ErrBrokerUnreachable is returned by Connect when the broker does not
	// accept the relay within the connect timeout.
	ErrBrokerUnreachable = errors.New("mqtt: broker unreachable")

	// ErrBrokerOffline is returned while the relay is between connections.
	// Auto-reconnect is running; the caller may retry later.
	ErrBrokerOffline = errors.New("mqtt: relay is offline from the broker")
)

// Publish errors, one per kind of relay traffic so a listener can tell a
// lost chat reply from a lost fleet state.
var (
	ErrChatReplyPublish  = errors.New("mqtt: chat reply publish failed")
	ErrFleetStatePublish = errors.New("mqtt: fleet state publish failed")
	ErrEventPublish      = errors.New("mqtt: event publish failed")
	ErrPublish           = errors.New("mqtt: publish failed")
)

// Request validation errors.
var (
	// ErrForeignTopic is returned for topics outside the lightrelay
	// namespace, the empty topic included.
	ErrForeignTopic = errors.New("mqtt: topic outside " + TopicPrefix + "/")

	// ErrRetainedTraffic is returned when a reply, command or event is
	// published retained. Only fleet state and status are retained.
	ErrRetainedTraffic = errors.New("mqtt: traffic must not be retained")

	ErrInvalidQoS      = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")

	// ErrSubscribe is returned when the broker refuses or does not
	// acknowledge a subscription.
	ErrSubscribe = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribe is returned when an unsubscribe is not acknowledged.
	ErrUnsubscribe = errors.New("mqtt: unsubscribe failed")
)
