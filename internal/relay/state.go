package relay

import (
	"context"
	"encoding/json"

	"github.com/nerrad567/lightrelay/internal/command"
	"github.com/nerrad567/lightrelay/internal/infrastructure/mqtt"
)

// Publisher is the MQTT client surface StatePublisher needs.
// mqtt.Client implements it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

var _ Publisher = (*mqtt.Client)(nil)

// StatePublisher publishes every outcome on lightrelay/event/command and,
// after a successful color command, the retained fleet state on
// lightrelay/state/fleet.
//
// A retained state older than one already published is dropped, so the
// retained message always names the color the fleet was last written with.
type StatePublisher struct {
	pub    Publisher
	qos    byte
	logger Logger
	order  fleetOrder
}

var _ command.Listener = (*StatePublisher)(nil)

// NewStatePublisher creates a StatePublisher. logger may be nil.
func NewStatePublisher(pub Publisher, qos byte, logger Logger) *StatePublisher {
	return &StatePublisher{pub: pub, qos: qos, logger: orNoop(logger)}
}

// OnOutcome implements command.Listener.
func (p *StatePublisher) OnOutcome(_ context.Context, o command.Outcome) {
	topics := mqtt.Topics{}

	fresh := p.order.apply(o, func(state FleetState) {
		p.publish(topics.FleetState(), state, true)
	})
	if !fresh {
		p.logger.Debug("skipping stale fleet state", "seq", o.FleetSeq, "color", o.ColorName)
	}
	p.publish(topics.Event("command"), NewCommandEvent(o), false)
}

func (p *StatePublisher) publish(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.logger.Warn("encoding mqtt payload failed", "topic", topic, "error", err)
		return
	}
	if err := p.pub.Publish(topic, payload, p.qos, retained); err != nil {
		p.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
	}
}
