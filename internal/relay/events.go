package relay

import (
	"sync"
	"time"

	"github.com/nerrad567/lightrelay/internal/command"
)

// Logger defines the logging interface used by the listeners.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

func orNoop(l Logger) Logger {
	if l == nil {
		return noopLogger{}
	}
	return l
}

// CommandEvent is the wire form of a command.Outcome, shared by the MQTT
// event topic and the WebSocket command.handled channel.
type CommandEvent struct {
	ID        string    `json:"id,omitempty"`
	Command   string    `json:"command"`
	Args      []string  `json:"args"`
	Source    string    `json:"source"`
	User      string    `json:"user,omitempty"`
	Color     string    `json:"color,omitempty"`
	RGB       string    `json:"rgb,omitempty"`
	Result    string    `json:"result"`
	Error     string    `json:"error,omitempty"`
	Devices   int       `json:"devices"`
	LatencyMS int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// NewCommandEvent converts an outcome to its wire form.
func NewCommandEvent(o command.Outcome) CommandEvent {
	ev := CommandEvent{
		ID:        o.ID,
		Command:   o.Command,
		Args:      o.Args,
		Source:    o.Source,
		User:      o.User,
		Color:     o.ColorName,
		Result:    string(o.Result),
		Devices:   o.Devices,
		LatencyMS: o.Latency.Milliseconds(),
		Timestamp: o.At.UTC(),
	}
	if ev.Args == nil {
		ev.Args = []string{}
	}
	if hasValue(o) {
		ev.RGB = o.Value.RGB().String()
	}
	if o.Err != nil {
		ev.Error = o.Err.Error()
	}
	return ev
}

// FleetState is the last color applied to the whole fleet.
type FleetState struct {
	Color     string    `json:"color"`
	RGB       string    `json:"rgb"`
	Value     uint32    `json:"value"`
	Devices   int       `json:"devices"`
	Source    string    `json:"source"`
	User      string    `json:"user,omitempty"`
	Seq       uint64    `json:"seq,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewFleetState builds the fleet state from an applied outcome. ok is false
// for any other result.
func NewFleetState(o command.Outcome) (state FleetState, ok bool) {
	if o.Result != command.ResultApplied {
		return FleetState{}, false
	}
	return FleetState{
		Color:     o.ColorName,
		RGB:       o.Value.RGB().String(),
		Value:     uint32(o.Value),
		Devices:   o.Devices,
		Source:    o.Source,
		User:      o.User,
		Seq:       o.FleetSeq,
		UpdatedAt: fleetTime(o),
	}, true
}

// fleetTime is when the fleet write finished, falling back to when the
// command arrived for fleets that do not stamp their writes.
func fleetTime(o command.Outcome) time.Time {
	if !o.FleetAt.IsZero() {
		return o.FleetAt.UTC()
	}
	return o.At.UTC()
}

// fleetOrder keeps fleet-state updates in fleet write order. Outcomes reach
// listeners in the order their goroutines finish, which can differ from the
// order the devices were written in.
type fleetOrder struct {
	mu   sync.Mutex
	last uint64
}

// apply calls emit with the fleet state of o unless a later fleet write has
// already been seen. Failed writes advance the order without emitting, since
// they also changed some devices. emit runs under the lock so admitted
// updates leave in order. Outcomes with no FleetSeq are not ordered.
//
// Returns:
//   - bool: false when o was stale and dropped
func (f *fleetOrder) apply(o command.Outcome, emit func(FleetState)) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if o.FleetSeq != 0 {
		if o.FleetSeq <= f.last {
			return false
		}
		f.last = o.FleetSeq
	}
	if state, ok := NewFleetState(o); ok {
		emit(state)
	}
	return true
}

func hasValue(o command.Outcome) bool {
	return o.Result == command.ResultApplied || o.Result == command.ResultDeviceError
}
