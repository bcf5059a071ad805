// Package influxdb records relay telemetry in InfluxDB.
//
// Points go through the non-blocking write API of influxdb-client-go v2 and
// are counted per measurement; the counters feed the API's /metrics.
//
// # Measurements
//
//   - fleet_color: one point per applied color (tag color; fields rgb,
//     devices, duration_ms)
//   - command: one point per handled chat command (tags command, source,
//     result; fields latency_ms, count)
//   - device_link: periodic bulb connection counters (tag address; fields
//     requests, failures)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteFleetColor(influxdb.FleetColor{Name: "red", Packed: 0xFF0000, Devices: 2})
//
// # Error Handling
//
// Connect fails with ErrStoreUnreachable or ErrStoreNotReady. After that,
// writes never return an error: a batch the server rejects is counted and
// reported to the SetOnError callback wrapped in ErrTelemetryWrite.
package influxdb
