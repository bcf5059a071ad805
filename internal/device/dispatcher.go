package device

import (
	"context"
	"time"

	"github.com/nerrad567/lightrelay/internal/color"
	"github.com/nerrad567/lightrelay/internal/yeelight"
)

// DefaultBrightness is the brightness (percent) applied with every color.
const DefaultBrightness = 50

// Report summarises a fleet operation.
//
// Seq and CompletedAt are stamped inside the exclusive scope, so they order
// fleet writes the way the devices saw them even when the callers' own
// notifications race. Seq starts at 1 and is set for failed writes too.
type Report struct {
	Devices     int           // devices updated
	Brightness  int           // brightness applied
	Duration    time.Duration // time spent inside the exclusive scope
	Seq         uint64        // fleet write sequence, 0 if the scope was never entered
	CompletedAt time.Time     // when the last write finished or failed
}

// Dispatcher applies colors to every device in a Registry.
type Dispatcher struct {
	registry   *Registry
	brightness int
	logger     Logger

	// seq is only touched inside the registry's exclusive scope.
	seq uint64
}

// NewDispatcher creates a dispatcher for the registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		brightness: DefaultBrightness,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// Registry returns the registry the dispatcher drives.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// ApplyColor sets every device to value at DefaultBrightness.
//
// Devices are written one at a time, in registry order, while holding the
// registry's exclusive scope: set_rgb first, then set_bright, both with the
// sudden effect and no transition. The first failure stops the iteration and
// is returned as a *DeviceError; devices already written keep the new color.
//
// Parameters:
//   - ctx: Context for cancellation (waiting for the scope and each write)
//   - value: Packed 24-bit color
//
// Returns:
//   - Report: What was applied (zero devices for an empty registry); Seq is
//     set whenever the scope was entered, failures included
//   - error: *DeviceError on the first device failure, or the context error
func (d *Dispatcher) ApplyColor(ctx context.Context, value color.Packed) (Report, error) {
	var report Report

	err := d.registry.WithExclusiveAccess(ctx, func(handles []Handle) error {
		d.seq++
		report.Seq = d.seq
		start := time.Now()
		defer func() {
			end := time.Now()
			report.Duration = end.Sub(start)
			report.CompletedAt = end.UTC()
		}()

		for i, h := range handles {
			if err := h.SetRGB(ctx, value, yeelight.EffectSudden, 0); err != nil {
				return d.fail(i, h, OpSetRGB, err)
			}
			if err := h.SetBright(ctx, d.brightness, yeelight.EffectSudden, 0); err != nil {
				return d.fail(i, h, OpSetBright, err)
			}
			report.Devices++
			d.logger.Debug("device updated", "index", i, "address", h.Address(), "rgb", value)
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	report.Brightness = d.brightness
	return report, nil
}

func (d *Dispatcher) fail(index int, h Handle, op string, err error) error {
	d.logger.Warn("device write failed",
		"index", index,
		"address", h.Address(),
		"op", op,
		"error", err,
	)
	return &DeviceError{Index: index, Address: h.Address(), Op: op, Err: err}
}
