package relay

import (
	"context"

	"github.com/nerrad567/lightrelay/internal/command"
)

// WebSocket channels the Broadcaster publishes on.
const (
	ChannelColorApplied   = "fleet.color_applied"
	ChannelCommandHandled = "command.handled"
)

// Hub broadcasts an event to the WebSocket clients subscribed to channel.
// api.Hub implements it.
type Hub interface {
	Broadcast(channel string, payload any)
}

// Broadcaster forwards outcomes to WebSocket clients. Like StatePublisher
// it never sends a fleet.color_applied older than one already sent.
type Broadcaster struct {
	hub   Hub
	order fleetOrder
}

var _ command.Listener = (*Broadcaster)(nil)

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster(hub Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// OnOutcome implements command.Listener.
func (b *Broadcaster) OnOutcome(_ context.Context, o command.Outcome) {
	b.order.apply(o, func(state FleetState) {
		b.hub.Broadcast(ChannelColorApplied, state)
	})
	b.hub.Broadcast(ChannelCommandHandled, NewCommandEvent(o))
}
