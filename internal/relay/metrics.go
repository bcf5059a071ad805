package relay

import (
	"context"
	"time"

	"github.com/nerrad567/lightrelay/internal/command"
	"github.com/nerrad567/lightrelay/internal/infrastructure/influxdb"
	"github.com/nerrad567/lightrelay/internal/yeelight"
)

// Metrics is the InfluxDB surface the relay writes to.
// influxdb.Client implements it.
type Metrics interface {
	WriteFleetColor(p influxdb.FleetColor)
	WriteCommandResult(p influxdb.CommandResult)
	WriteDeviceLink(p influxdb.DeviceLink)
}

var _ Metrics = (*influxdb.Client)(nil)

// MetricsWriter records a command point for every outcome and a
// fleet_color point for every applied color. Writes are batched by the
// InfluxDB client, so OnOutcome never blocks on the network.
// fleet_color points carry the fleet write time, so the newest point is the
// fleet's color even when outcomes arrive out of order.
type MetricsWriter struct {
	metrics Metrics
}

var _ command.Listener = (*MetricsWriter)(nil)

// NewMetricsWriter creates a MetricsWriter.
func NewMetricsWriter(m Metrics) *MetricsWriter {
	return &MetricsWriter{metrics: m}
}

// OnOutcome implements command.Listener.
func (w *MetricsWriter) OnOutcome(_ context.Context, o command.Outcome) {
	w.metrics.WriteCommandResult(influxdb.CommandResult{
		Command: o.Command,
		Source:  o.Source,
		Result:  string(o.Result),
		Latency: o.Latency,
		Time:    o.At,
	})

	if o.Result == command.ResultApplied {
		w.metrics.WriteFleetColor(influxdb.FleetColor{
			Name:     o.ColorName,
			Packed:   uint32(o.Value),
			Devices:  o.Devices,
			Duration: o.Latency,
			Time:     fleetTime(o),
		})
	}
}

// StatsSource reports per-device transport statistics.
// device.Registry implements it.
type StatsSource interface {
	Stats() []yeelight.Stats
}

// LinkReporter periodically writes a device_link point per device.
type LinkReporter struct {
	source   StatsSource
	metrics  Metrics
	interval time.Duration
	now      func() time.Time
}

// NewLinkReporter creates a LinkReporter sampling every interval.
func NewLinkReporter(source StatsSource, m Metrics, interval time.Duration) *LinkReporter {
	return &LinkReporter{source: source, metrics: m, interval: interval, now: time.Now}
}

// Run samples until ctx is cancelled. It writes one sample immediately.
func (r *LinkReporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sample()
		}
	}
}

// Sample writes the current statistics once.
func (r *LinkReporter) Sample() {
	at := r.now()
	for _, s := range r.source.Stats() {
		r.metrics.WriteDeviceLink(influxdb.DeviceLink{
			Address:  s.Address,
			Requests: s.Requests,
			Failures: s.Failures,
			Time:     at,
		})
	}
}
