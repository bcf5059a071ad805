// Package mqttchat accepts chat commands as JSON requests over MQTT and
// publishes the replies.
//
// A request on lightrelay/chat/command:
//
//	{"request_id": "r-42", "user": "kitchen-panel", "content": "&color red"}
//
// is answered (when the command has a reply) on lightrelay/chat/reply/r-42:
//
//	{"request_id": "r-42", "text": "Invalid color"}
package mqttchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/lightrelay/internal/chat"
	"github.com/nerrad567/lightrelay/internal/command"
	"github.com/nerrad567/lightrelay/internal/infrastructure/mqtt"
)

// ErrInvalidRequest is returned from the message handler for payloads that
// are not a usable request. The MQTT client logs it.
var ErrInvalidRequest = errors.New("mqttchat: invalid request")

// Client is the MQTT surface the transport needs. mqtt.Client implements it.
type Client interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

var _ Client = (*mqtt.Client)(nil)

// Request is the command message format.
type Request struct {
	RequestID string `json:"request_id"`
	User      string `json:"user,omitempty"`
	Content   string `json:"content"`
}

// Reply is the reply message format.
type Reply struct {
	RequestID string `json:"request_id"`
	Text      string `json:"text"`
}

// Transport feeds MQTT chat requests to a handler.
//
// Thread Safety:
//   - Each request is handled on its own goroutine so a slow fleet never
//     stalls the MQTT client's delivery loop.
//   - Stop waits for in-flight requests.
type Transport struct {
	client  Client
	handler chat.Handler
	prefix  string
	qos     byte
	logger  chat.Logger

	ctx       context.Context //nolint:containedctx // cancelled by Stop to abort in-flight commands
	ctxCancel context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once

	// mu orders wg.Add against Stop's wg.Wait; requests arriving after
	// stopped is set are dropped.
	mu      sync.Mutex
	stopped bool
}

// New creates a Transport. logger may be nil.
func New(client Client, handler chat.Handler, prefix string, qos byte, logger chat.Logger) *Transport {
	return &Transport{
		client:  client,
		handler: handler,
		prefix:  prefix,
		qos:     qos,
		logger:  chat.OrNoop(logger),
	}
}

// Start subscribes to the command topic. Requests are handled with a
// context derived from ctx.
func (t *Transport) Start(ctx context.Context) error {
	t.ctx, t.ctxCancel = context.WithCancel(ctx)

	topic := mqtt.Topics{}.ChatCommand()
	if err := t.client.Subscribe(topic, t.qos, t.handleMessage); err != nil {
		t.ctxCancel()
		return fmt.Errorf("subscribe to chat commands: %w", err)
	}
	t.logger.Info("mqtt chat listening", "topic", topic)
	return nil
}

// Stop unsubscribes, cancels in-flight commands and waits for them.
// It is safe to call more than once.
func (t *Transport) Stop() error {
	var err error
	t.stopOnce.Do(func() {
		if t.ctxCancel == nil {
			return
		}
		if uerr := t.client.Unsubscribe(mqtt.Topics{}.ChatCommand()); uerr != nil {
			err = fmt.Errorf("unsubscribe chat commands: %w", uerr)
		}
		t.mu.Lock()
		t.stopped = true
		t.mu.Unlock()
		t.ctxCancel()
		t.wg.Wait()
		t.logger.Info("mqtt chat stopped")
	})
	return err
}

// handleMessage is the mqtt.MessageHandler for the command topic.
func (t *Transport) handleMessage(_ string, payload []byte) error {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	if req.RequestID == "" {
		return fmt.Errorf("%w: missing request_id", ErrInvalidRequest)
	}
	if strings.ContainsAny(req.RequestID, "/+#") {
		return fmt.Errorf("%w: request_id %q is not a topic level", ErrInvalidRequest, req.RequestID)
	}

	inv, ok := command.ParseMessage(t.prefix, req.Content)
	if !ok {
		t.logger.Debug("ignoring non-command chat request", "request_id", req.RequestID)
		return nil
	}
	inv.ID = req.RequestID
	inv.Source = command.SourceMQTT
	inv.User = req.User
	inv.Reply = t.replier(req.RequestID)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		t.logger.Debug("dropping chat request after stop", "request_id", req.RequestID)
		return nil
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		chat.Dispatch(t.ctx, t.handler, inv, t.logger)
	}()
	return nil
}

func (t *Transport) replier(requestID string) command.ReplyFunc {
	return func(_ context.Context, text string) error {
		payload, err := json.Marshal(Reply{RequestID: requestID, Text: text})
		if err != nil {
			return err
		}
		return t.client.Publish(mqtt.Topics{}.ChatReply(requestID), payload, t.qos, false)
	}
}
