package mqtt

import (
	"fmt"
)

// maxPayloadSize bounds a single message. Relay payloads are small JSON
// documents; anything near this is a bug upstream.
const maxPayloadSize = 1 << 20

// Publish sends payload on topic and waits for the broker's acknowledgement
// (for qos > 0).
//
// The topic must be inside lightrelay/. Only fleet state and status may be
// retained: a retained reply or event would be replayed to every new
// subscriber as if it had just happened.
//
// Failures wrap the sentinel for the topic's traffic kind, so
//
//	errors.Is(err, mqtt.ErrChatReplyPublish)
//
// holds for a reply that never reached the broker.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	traffic := Classify(topic)
	if traffic == TrafficForeign {
		return fmt.Errorf("%w: %q", ErrForeignTopic, topic)
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if retained && !traffic.Retained() {
		return fmt.Errorf("%w: %s on %s", ErrRetainedTraffic, traffic, topic)
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes on %s, limit %d", ErrPayloadTooLarge, len(payload), topic, maxPayloadSize)
	}

	sentinel := traffic.publishErr()
	if !c.IsConnected() {
		return fmt.Errorf("%w: %w", sentinel, ErrBrokerOffline)
	}

	token := c.paho.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s not acknowledged within %v", sentinel, topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", sentinel, topic, err)
	}
	return nil
}
