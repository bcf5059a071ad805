// Package api implements lightrelay's read-only HTTP API and WebSocket
// event stream.
//
// Endpoints (all GET, under /api/v1):
//   - /health: overall status plus database and MQTT component status
//   - /metrics: runtime, fleet and connection counters
//   - /colors: the color table in enumeration order
//   - /devices: attached devices with transport statistics
//   - /commands: paginated command history from the audit log
//   - /ws: WebSocket stream of fleet.color_applied and command.handled events
//
// The API never drives devices; colors are only changed through chat.
//
// # Graceful Degradation
//
// The database and MQTT are optional. Without the database /commands
// answers 503; without MQTT /health omits the mqtt component.
package api
