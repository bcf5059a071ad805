package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/lightrelay/internal/color"
	"github.com/nerrad567/lightrelay/internal/device"
)

// Fixed reply texts.
const (
	ReplyInvalidColor  = "Invalid color"
	ReplyInvalidFormat = "Invalid command format, color COLOR_NAME"
)

// Result classifies how a command ended.
type Result string

// Command results reported in Outcome.Result.
const (
	ResultApplied       Result = "applied"
	ResultListed        Result = "listed"
	ResultInvalidFormat Result = "invalid_format"
	ResultInvalidColor  Result = "invalid_color"
	ResultDeviceError   Result = "device_error"
)

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Fleet is the device side of the service. device.Dispatcher implements it.
type Fleet interface {
	ApplyColor(ctx context.Context, value color.Packed) (device.Report, error)
}

var _ Fleet = (*device.Dispatcher)(nil)

// Outcome describes one handled command.
type Outcome struct {
	ID        string
	Command   string
	Args      []string
	Source    string
	User      string
	ColorName string       // lowercased color argument, color only
	Value     color.Packed // applied value, ResultApplied and ResultDeviceError only
	Result    Result
	Err       error
	Devices   int // devices updated before the command finished
	Latency   time.Duration
	At        time.Time

	// FleetSeq and FleetAt come from device.Report: the order and time of
	// the fleet write. Listeners receive outcomes in whatever order the
	// handling goroutines finish, so anything that tracks the fleet's
	// current color must order by FleetSeq. Zero when no write happened.
	FleetSeq uint64
	FleetAt  time.Time
}

// Listener is notified after every handled command.
type Listener interface {
	OnOutcome(ctx context.Context, o Outcome)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, o Outcome)

// OnOutcome calls f.
func (f ListenerFunc) OnOutcome(ctx context.Context, o Outcome) {
	f(ctx, o)
}

// Service routes invocations to the color and colors handlers.
//
// Thread Safety: Handle is safe for concurrent use. Device access is
// serialised by the Fleet; listing colors never waits on it.
type Service struct {
	table *color.Table
	fleet Fleet

	mu        sync.RWMutex
	listeners []Listener

	logger Logger
}

// NewService creates a command service.
//
// Parameters:
//   - table: Color table used for translation and listing
//   - fleet: Applies colors to the devices
//   - logger: Logger instance (may be nil)
func NewService(table *color.Table, fleet Fleet, logger Logger) *Service {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Service{
		table:  table,
		fleet:  fleet,
		logger: logger,
	}
}

// AddListener registers a listener for command outcomes.
func (s *Service) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Table returns the color table the service resolves against.
func (s *Service) Table() *color.Table {
	return s.table
}

// Handle executes one invocation.
//
// Returns:
//   - error: nil when the command was handled (including usage and lookup
//     mistakes that were answered), ErrUnknownCommand for unrouted names,
//     a *device.DeviceError or context error when the fleet failed, or a
//     reply delivery failure
func (s *Service) Handle(ctx context.Context, inv Invocation) error {
	switch inv.Name {
	case NameColor:
		return s.handleColor(ctx, inv)
	case NameColors:
		return s.handleColors(ctx, inv)
	default:
		s.logger.Debug("ignoring unknown command", "command", inv.Name, "source", inv.Source)
		return fmt.Errorf("%w: %q", ErrUnknownCommand, inv.Name)
	}
}

func (s *Service) handleColor(ctx context.Context, inv Invocation) error {
	start := time.Now()
	out := newOutcome(inv, start)
	if len(inv.Args) == 1 {
		out.ColorName = strings.ToLower(inv.Args[0])
	}

	value, err := TranslateColor(s.table, inv.Args)
	switch {
	case errors.Is(err, ErrArgumentCount):
		out.Result, out.Err = ResultInvalidFormat, err
		return s.finish(ctx, inv, out, start, ReplyInvalidFormat)
	case errors.Is(err, ErrUnknownColor):
		out.Result, out.Err = ResultInvalidColor, err
		return s.finish(ctx, inv, out, start, ReplyInvalidColor)
	case err != nil:
		return err
	}

	out.Value = value
	report, err := s.fleet.ApplyColor(ctx, value)
	out.Devices = report.Devices
	out.FleetSeq, out.FleetAt = report.Seq, report.CompletedAt
	if err != nil {
		out.Result, out.Err = ResultDeviceError, err
		_ = s.finish(ctx, inv, out, start, "") // no reply on device errors
		return err
	}

	out.Result = ResultApplied
	s.logger.Info("color applied",
		"color", out.ColorName,
		"rgb", value.RGB().String(),
		"devices", report.Devices,
		"user", inv.User,
		"source", inv.Source,
	)
	return s.finish(ctx, inv, out, start, "")
}

func (s *Service) handleColors(ctx context.Context, inv Invocation) error {
	start := time.Now()
	out := newOutcome(inv, start)
	out.Result = ResultListed
	return s.finish(ctx, inv, out, start, FormatColorList(s.table))
}

// FormatColorList renders the colors reply: a leading newline then one
// "N. name" line per color.
func FormatColorList(table *color.Table) string {
	var b strings.Builder
	b.WriteString("\n")
	for _, l := range table.Enumerate() {
		b.WriteString(strconv.Itoa(l.Index))
		b.WriteString(". ")
		b.WriteString(l.Name)
		b.WriteString("\n")
	}
	return b.String()
}

// finish sends reply (if any), then notifies listeners.
func (s *Service) finish(ctx context.Context, inv Invocation, out Outcome, start time.Time, reply string) error {
	var replyErr error
	if reply != "" {
		replyErr = s.reply(ctx, inv, reply)
	}

	out.Latency = time.Since(start)
	s.notify(ctx, out)
	return replyErr
}

func (s *Service) reply(ctx context.Context, inv Invocation, text string) error {
	if inv.Reply == nil {
		s.logger.Warn("dropping reply, invocation has no reply target", "command", inv.Name, "source", inv.Source)
		return nil
	}
	if err := inv.Reply(ctx, text); err != nil {
		return fmt.Errorf("sending reply: %w", err)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, out Outcome) {
	s.mu.RLock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, l := range listeners {
		l.OnOutcome(ctx, out)
	}
}

func newOutcome(inv Invocation, start time.Time) Outcome {
	return Outcome{
		ID:      inv.ID,
		Command: inv.Name,
		Args:    inv.Args,
		Source:  inv.Source,
		User:    inv.User,
		At:      start.UTC(),
	}
}
