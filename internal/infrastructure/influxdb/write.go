package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the relay.
const (
	measurementFleetColor = "fleet_color"
	measurementCommand    = "command"
	measurementDevice     = "device_link"
)

// FleetColor describes one successful fleet color change.
type FleetColor struct {
	Name     string // color name as typed, lowercased
	Packed   uint32 // 24-bit value sent to the lights
	Devices  int
	Duration time.Duration
	Time     time.Time
}

// CommandResult describes one handled chat command.
type CommandResult struct {
	Command string
	Source  string // discord, mqtt
	Result  string // applied, listed, invalid_color, invalid_format, device_error
	Latency time.Duration
	Time    time.Time
}

// DeviceLink is a snapshot of one bulb connection's counters.
type DeviceLink struct {
	Address  string
	Requests uint64
	Failures uint64
	Time     time.Time
}

// WriteFleetColor queues a fleet color point. It does not block.
//
// Example:
//
//	client.WriteFleetColor(influxdb.FleetColor{Name: "red", Packed: 0xFF0000, Devices: 3})
func (c *Client) WriteFleetColor(fc FleetColor) {
	c.enqueue(&c.fleetColors, fleetColorPoint(fc))
}

// WriteCommandResult queues a command point.
func (c *Client) WriteCommandResult(cr CommandResult) {
	c.enqueue(&c.commands, commandPoint(cr))
}

// WriteDeviceLink queues a bulb connection's counters.
func (c *Client) WriteDeviceLink(dl DeviceLink) {
	c.enqueue(&c.deviceLinks, deviceLinkPoint(dl))
}

func fleetColorPoint(fc FleetColor) *write.Point {
	return write.NewPoint(
		measurementFleetColor,
		map[string]string{
			"color": fc.Name,
		},
		map[string]interface{}{
			"rgb":         int64(fc.Packed),
			"devices":     int64(fc.Devices),
			"duration_ms": fc.Duration.Milliseconds(),
		},
		timestampOrNow(fc.Time),
	)
}

func commandPoint(cr CommandResult) *write.Point {
	return write.NewPoint(
		measurementCommand,
		map[string]string{
			"command": cr.Command,
			"source":  cr.Source,
			"result":  cr.Result,
		},
		map[string]interface{}{
			"latency_ms": cr.Latency.Milliseconds(),
			"count":      int64(1),
		},
		timestampOrNow(cr.Time),
	)
}

func deviceLinkPoint(dl DeviceLink) *write.Point {
	return write.NewPoint(
		measurementDevice,
		map[string]string{
			"address": dl.Address,
		},
		map[string]interface{}{
			"requests": int64(dl.Requests), //nolint:gosec // counters stay far below MaxInt64
			"failures": int64(dl.Failures), //nolint:gosec // counters stay far below MaxInt64
		},
		timestampOrNow(dl.Time),
	)
}

func timestampOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
