// Package chat holds what the chat transports share: the handler they feed
// and how they log a handled command's error.
//
// Transports live in subpackages:
//   - discord: Discord guild messages via discordgo
//   - mqttchat: JSON requests on lightrelay/chat/command
package chat

import (
	"context"
	"errors"

	"github.com/nerrad567/lightrelay/internal/command"
	"github.com/nerrad567/lightrelay/internal/device"
)

// Handler executes a parsed invocation. command.Service implements it.
type Handler interface {
	Handle(ctx context.Context, inv command.Invocation) error
}

var _ Handler = (*command.Service)(nil)

// Logger defines the logging interface used by the transports.
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

// OrNoop returns l, or a logger that discards everything when l is nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return noopLogger{}
	}
	return l
}

// Dispatch runs inv through h and logs the result.
//
// Unknown commands are ignored at debug level. A device failure is logged
// as an error and nothing is sent to the chat. Cancellation during shutdown
// is logged at debug level. Anything else, such as a failed reply, is a
// warning.
func Dispatch(ctx context.Context, h Handler, inv command.Invocation, logger Logger) {
	err := h.Handle(ctx, inv)

	var devErr *device.DeviceError
	switch {
	case err == nil:
	case errors.Is(err, command.ErrUnknownCommand):
		logger.Debug("ignoring unknown command", "command", inv.Name, "user", inv.User)
	case errors.As(err, &devErr):
		logger.Error("command failed on device",
			"command", inv.Name,
			"device", devErr.Address,
			"op", devErr.Op,
			"error", devErr.Err,
		)
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		logger.Debug("command abandoned on shutdown", "command", inv.Name)
	default:
		logger.Warn("command handling failed", "command", inv.Name, "user", inv.User, "error", err)
	}
}
