package mqtt

import (
	"fmt"
)

// Subscribe routes messages matching topic to handler and keeps the route
// across reconnects. Subscribing again to the same filter replaces the
// handler.
//
// The filter may use + and # wildcards but must stay inside lightrelay/.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	traffic := Classify(topic)
	if traffic == TrafficForeign {
		return fmt.Errorf("%w: %q", ErrForeignTopic, topic)
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: %s: nil handler", ErrSubscribe, traffic)
	}
	if !c.IsConnected() {
		return fmt.Errorf("%w: %s: %w", ErrSubscribe, traffic, ErrBrokerOffline)
	}

	r := route{qos: qos, traffic: traffic, handler: handler}
	token := c.paho.Subscribe(topic, qos, c.deliver(r))
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s: not acknowledged within %v", ErrSubscribe, topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribe, topic, err)
	}

	// Recorded only once the broker accepted it, so a reconnect never
	// replays a subscription the caller saw fail.
	c.mu.Lock()
	c.routes[topic] = r
	c.mu.Unlock()
	return nil
}

// Unsubscribe drops the route for topic. Messages already in flight may
// still reach the old handler.
func (c *Client) Unsubscribe(topic string) error {
	if Classify(topic) == TrafficForeign {
		return fmt.Errorf("%w: %q", ErrForeignTopic, topic)
	}

	// Forget the route first so a reconnect racing this call cannot
	// restore it.
	c.mu.Lock()
	delete(c.routes, topic)
	c.mu.Unlock()

	if !c.IsConnected() {
		// The clean session has already dropped it on the broker.
		return nil
	}

	token := c.paho.Unsubscribe(topic)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s: not acknowledged within %v", ErrUnsubscribe, topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnsubscribe, topic, err)
	}
	return nil
}
