// Package relay fans command outcomes out to the relay's side channels.
//
// Each type here implements command.Listener:
//   - StatePublisher: retained fleet state and command events over MQTT
//   - MetricsWriter: fleet_color and command points in InfluxDB
//   - AuditRecorder: one audit_logs row per command
//   - Broadcaster: WebSocket events through the API hub
//
// Listeners run on the goroutine that handled the command, after the device
// registry has been released. A failing side channel is logged and never
// changes the chat reply.
//
// LinkReporter is the one non-listener: it samples per-device transport
// statistics on a ticker and writes them as device_link points.
package relay
