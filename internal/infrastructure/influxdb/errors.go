package influxdb

import "errors"

var (
	// ErrTelemetryDisabled is returned by Connect when influxdb.enabled is false.
	ErrTelemetryDisabled = errors.New("influxdb: telemetry disabled in configuration")

	// ErrStoreUnreachable is returned by Connect when the server does not
	// answer the startup ping.
	ErrStoreUnreachable = errors.New("influxdb: telemetry store unreachable")

	// ErrStoreNotReady is returned by Connect when the server answers the
	// ping but reports itself unhealthy.
	ErrStoreNotReady = errors.New("influxdb: telemetry store not ready")

	// ErrTelemetryWrite wraps the errors delivered to the SetOnError
	// callback when the server rejects a batch of relay points.
	ErrTelemetryWrite = errors.New("influxdb: telemetry batch rejected")
)
