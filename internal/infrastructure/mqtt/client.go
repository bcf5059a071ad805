package mqtt

import (
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/lightrelay/internal/infrastructure/config"
)

// Logger is the logging surface the client uses. *logging.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MessageHandler receives a message on a subscribed topic.
//
// paho calls handlers on its own goroutines. A returned error is logged
// with the traffic kind of the topic; it does not affect acknowledgement.
type MessageHandler func(topic string, payload []byte) error

// LinkHooks are notified when the broker link comes up or drops. Either
// may be nil. OnUp runs on the initial connect and on every reconnect.
type LinkHooks struct {
	OnUp   func()
	OnDown func(err error)
}

// route is a subscription the client restores after a reconnect.
type route struct {
	qos     byte
	traffic Traffic
	handler MessageHandler
}

// Client is the relay's broker link.
//
// It carries the chat command subscription in, and chat replies, fleet
// state, command events and the relay's own status out. The broker holds
// a will on the status topic so subscribers see an unexpected exit.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Subscriptions survive reconnects; paho's clean session drops them on
//     the broker, so the client replays them from its routes table.
type Client struct {
	paho pahomqtt.Client
	cfg  config.MQTTConfig

	online atomic.Bool

	mu     sync.RWMutex
	routes map[string]route
	hooks  LinkHooks
	logger Logger
}

// Connect dials the broker and announces the relay as online.
//
// paho keeps reconnecting in the background after the first connection;
// Connect itself fails with ErrBrokerUnreachable if that first connection
// does not complete within the connect timeout.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:    cfg,
		routes: make(map[string]route),
		logger: noopLogger{},
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.linkUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.linkDown(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.log().Warn("reconnecting to broker", "broker", cfg.Broker.Host)
	})

	c.paho = pahomqtt.NewClient(opts)
	token := c.paho.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: no answer within %v", ErrBrokerUnreachable, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBrokerUnreachable, err)
	}

	// The OnConnect handler runs asynchronously and may not have fired yet.
	c.online.Store(true)
	return c, nil
}

// linkUp replays the subscriptions and re-announces the relay.
func (c *Client) linkUp() {
	c.online.Store(true)

	c.mu.RLock()
	routes := make(map[string]route, len(c.routes))
	for topic, r := range c.routes {
		routes[topic] = r
	}
	hook := c.hooks.OnUp
	c.mu.RUnlock()

	for topic, r := range routes {
		token := c.paho.Subscribe(topic, r.qos, c.deliver(r))
		if token.WaitTimeout(defaultPublishTimeout) && token.Error() == nil {
			continue
		}
		// A lost route means chat commands stop arriving.
		c.log().Error("restoring subscription failed",
			"topic", topic,
			"traffic", r.traffic.String(),
			"error", token.Error(),
		)
	}

	c.announce(buildOnlinePayload(c.cfg.Broker.ClientID))
	c.log().Info("broker link up", "subscriptions", len(routes))

	if hook != nil {
		hook()
	}
}

func (c *Client) linkDown(err error) {
	c.online.Store(false)

	c.mu.RLock()
	hook := c.hooks.OnDown
	c.mu.RUnlock()
	if hook != nil {
		hook(err)
	}
}

// announce publishes a retained relay status without waiting for the broker.
func (c *Client) announce(payload string) pahomqtt.Token {
	return c.paho.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, payload)
}

// Close announces a graceful shutdown, which replaces the will on the
// status topic, and disconnects.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}

	if c.IsConnected() {
		c.announce(buildOfflinePayload(c.cfg.Broker.ClientID)).WaitTimeout(defaultPublishTimeout)
	}
	c.paho.Disconnect(defaultDisconnectQuiesce)
	c.online.Store(false)
	return nil
}

// IsConnected reports whether the broker link is up.
func (c *Client) IsConnected() bool {
	return c.online.Load() && c.paho != nil && c.paho.IsConnected()
}

// SetLinkHooks replaces the link hooks.
func (c *Client) SetLinkHooks(hooks LinkHooks) {
	c.mu.Lock()
	c.hooks = hooks
	c.mu.Unlock()
}

// SetLogger sets the logger for link changes and handler failures.
// A nil logger discards them.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) log() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.logger == nil {
		return noopLogger{}
	}
	return c.logger
}

// deliver adapts a MessageHandler to paho, recovering panics so one bad
// message cannot take down paho's delivery goroutine.
func (c *Client) deliver(r route) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if p := recover(); p != nil {
				c.log().Error("message handler panicked",
					"topic", msg.Topic(),
					"traffic", r.traffic.String(),
					"panic", p,
				)
			}
		}()

		if err := r.handler(msg.Topic(), msg.Payload()); err != nil {
			c.log().Warn("message rejected",
				"topic", msg.Topic(),
				"traffic", r.traffic.String(),
				"error", err,
			)
		}
	}
}
