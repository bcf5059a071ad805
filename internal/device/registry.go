package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/lightrelay/internal/color"
	"github.com/nerrad567/lightrelay/internal/yeelight"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Handle is a live connection to one light.
// yeelight.Bulb is the production implementation.
type Handle interface {
	SetRGB(ctx context.Context, value color.Packed, effect yeelight.Effect, duration time.Duration) error
	SetBright(ctx context.Context, brightness int, effect yeelight.Effect, duration time.Duration) error
	Address() string
	Close() error
}

// StatsReporter is implemented by handles that expose transport counters.
type StatsReporter interface {
	Stats() yeelight.Stats
}

// Ensure yeelight.Bulb satisfies Handle and StatsReporter.
var (
	_ Handle        = (*yeelight.Bulb)(nil)
	_ StatsReporter = (*yeelight.Bulb)(nil)
)

// Connector opens and attaches the device at address.
type Connector func(ctx context.Context, address string) (Handle, error)

// YeelightConnector returns a Connector that dials and attaches Yeelight bulbs.
func YeelightConnector(cfg yeelight.Config) Connector {
	return func(ctx context.Context, address string) (Handle, error) {
		conn, err := yeelight.Dial(ctx, address, cfg)
		if err != nil {
			return nil, err
		}
		bulb, err := yeelight.Attach(conn, cfg)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return bulb, nil
	}
}

// Registry is the ordered, fixed set of attached devices.
//
// Membership is populated once (by Open or NewRegistry) and never changes.
// Device writes must go through WithExclusiveAccess.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - At most one caller is inside WithExclusiveAccess at a time.
type Registry struct {
	handles   []Handle
	addresses []string

	// sem is a one-slot semaphore guarding the handles. A channel rather than
	// a sync.Mutex so that waiting can be abandoned when the context ends.
	sem chan struct{}

	logger Logger
}

// NewRegistry builds a registry over existing handles, in order.
func NewRegistry(handles ...Handle) *Registry {
	r := &Registry{
		handles:   make([]Handle, len(handles)),
		addresses: make([]string, len(handles)),
		sem:       make(chan struct{}, 1),
		logger:    noopLogger{},
	}
	copy(r.handles, handles)
	for i, h := range handles {
		r.addresses[i] = h.Address()
	}
	return r
}

// Open connects and attaches every address, in order.
//
// Any failure closes the handles already attached and returns an error
// wrapping ErrAttachFailed; the process cannot run without its declared
// devices. An empty address list yields an empty, valid registry.
//
// Parameters:
//   - ctx: Context for cancellation of the connects
//   - addresses: Device network addresses
//   - connect: How to open one device
//
// Returns:
//   - *Registry: Registry holding one handle per address
//   - error: First connect/attach failure
func Open(ctx context.Context, addresses []string, connect Connector) (*Registry, error) {
	handles := make([]Handle, 0, len(addresses))

	for i, addr := range addresses {
		h, err := connect(ctx, addr)
		if err != nil {
			closeAll(handles)
			return nil, fmt.Errorf("%w: device %d (%s): %w", ErrAttachFailed, i, addr, err)
		}
		handles = append(handles, h)
	}

	return NewRegistry(handles...), nil
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// WithExclusiveAccess runs fn with the device handles while no other caller
// can reach them. The scope is released when fn returns or panics.
//
// Returns ctx.Err() if the context ends before the scope is acquired,
// otherwise whatever fn returns.
func (r *Registry) WithExclusiveAccess(ctx context.Context, fn func(handles []Handle) error) error {
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("waiting for device registry: %w", ctx.Err())
	}
	defer func() { <-r.sem }()

	return fn(r.handles)
}

// Len returns the number of devices.
func (r *Registry) Len() int {
	return len(r.handles)
}

// Addresses returns the device addresses in registry order.
func (r *Registry) Addresses() []string {
	out := make([]string, len(r.addresses))
	copy(out, r.addresses)
	return out
}

// Stats returns transport counters for every handle that reports them.
// It does not take the exclusive scope; counters are read atomically.
func (r *Registry) Stats() []yeelight.Stats {
	out := make([]yeelight.Stats, 0, len(r.handles))
	for _, h := range r.handles {
		if sr, ok := h.(StatsReporter); ok {
			out = append(out, sr.Stats())
			continue
		}
		out = append(out, yeelight.Stats{Address: h.Address()})
	}
	return out
}

// Close closes every handle. It waits for any in-flight fleet operation.
func (r *Registry) Close() error {
	r.sem <- struct{}{}
	defer func() { <-r.sem }()

	err := closeAll(r.handles)
	if err != nil {
		r.logger.Warn("closing devices", "error", err)
	}
	return err
}

func closeAll(handles []Handle) error {
	var errs []error
	for _, h := range handles {
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
