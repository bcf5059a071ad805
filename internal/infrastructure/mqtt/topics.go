package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for lightrelay.
//
// Chat commands arrive on lightrelay/chat/command; replies go to a per-request
// topic so a requester only needs to subscribe to its own answer.
const (
	// TopicPrefix is the base for all lightrelay topics.
	TopicPrefix = "lightrelay"

	// TopicPrefixChat is the base for the MQTT chat transport.
	TopicPrefixChat = "lightrelay/chat"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "lightrelay/system"
)

// Topics provides builders for lightrelay MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	replyTopic := topics.ChatReply("req-abc123")
//	// Returns: "lightrelay/chat/reply/req-abc123"
type Topics struct{}

// =============================================================================
// Chat Topics
// =============================================================================

// ChatCommand returns the topic chat commands are published to.
//
// Example: lightrelay/chat/command
func (Topics) ChatCommand() string {
	return fmt.Sprintf("%s/command", TopicPrefixChat)
}

// ChatReply returns the reply topic for one command request.
//
// Example: lightrelay/chat/reply/req-abc123
func (Topics) ChatReply(requestID string) string {
	return fmt.Sprintf("%s/reply/%s", TopicPrefixChat, requestID)
}

// =============================================================================
// Fleet Topics
// =============================================================================

// FleetState returns the retained topic holding the last applied fleet color.
//
// Example: lightrelay/state/fleet
func (Topics) FleetState() string {
	return fmt.Sprintf("%s/state/fleet", TopicPrefix)
}

// Event returns the topic for relay events.
//
// Example: lightrelay/event/command
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, eventType)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic (online/offline and LWT).
//
// Example: lightrelay/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllChatReplies returns a pattern matching every chat reply.
//
// Pattern: lightrelay/chat/reply/+
func (Topics) AllChatReplies() string {
	return fmt.Sprintf("%s/reply/+", TopicPrefixChat)
}

// AllEvents returns a pattern matching all relay events.
//
// Pattern: lightrelay/event/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefix)
}

// AllTopics returns a pattern matching all lightrelay topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: lightrelay/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// =============================================================================
// Traffic Classification
// =============================================================================

// Traffic is the kind of relay message a topic carries.
type Traffic int

// Traffic kinds, derived from the topic layout above.
const (
	TrafficForeign Traffic = iota // outside lightrelay/
	TrafficOther                  // inside lightrelay/ but not a known kind, e.g. lightrelay/#
	TrafficChatCommand
	TrafficChatReply
	TrafficFleetState
	TrafficEvent
	TrafficStatus
)

var trafficNames = map[Traffic]string{
	TrafficForeign:     "foreign",
	TrafficOther:       "relay",
	TrafficChatCommand: "chat command",
	TrafficChatReply:   "chat reply",
	TrafficFleetState:  "fleet state",
	TrafficEvent:       "event",
	TrafficStatus:      "status",
}

func (t Traffic) String() string {
	if name, ok := trafficNames[t]; ok {
		return name
	}
	return fmt.Sprintf("traffic(%d)", int(t))
}

// Retained reports whether messages of this kind are held by the broker
// for late subscribers.
func (t Traffic) Retained() bool {
	return t == TrafficFleetState || t == TrafficStatus
}

// publishErr is the sentinel a failed publish of this kind wraps.
func (t Traffic) publishErr() error {
	switch t {
	case TrafficChatReply:
		return ErrChatReplyPublish
	case TrafficFleetState:
		return ErrFleetStatePublish
	case TrafficEvent:
		return ErrEventPublish
	default:
		return ErrPublish
	}
}

// Classify reports which kind of relay traffic a topic or subscription
// filter belongs to.
//
//	Classify("lightrelay/chat/reply/r-1") // TrafficChatReply
//	Classify("lightrelay/event/+")        // TrafficEvent
//	Classify("homeassistant/light")       // TrafficForeign
func Classify(topic string) Traffic {
	rest, ok := strings.CutPrefix(topic, TopicPrefix+"/")
	if !ok || rest == "" {
		return TrafficForeign
	}

	switch {
	case rest == "chat/command":
		return TrafficChatCommand
	case strings.HasPrefix(rest, "chat/reply/"):
		return TrafficChatReply
	case strings.HasPrefix(rest, "state/"):
		return TrafficFleetState
	case strings.HasPrefix(rest, "event/"):
		return TrafficEvent
	case strings.HasPrefix(rest, "system/"):
		return TrafficStatus
	default:
		return TrafficOther
	}
}
