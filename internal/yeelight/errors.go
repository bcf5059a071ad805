package yeelight

import "errors"

// Sentinel errors for Yeelight operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectionFailed is returned when dialling a bulb fails.
	ErrConnectionFailed = errors.New("yeelight: connection failed")

	// ErrAttach is returned when a connection cannot be turned into a Bulb.
	ErrAttach = errors.New("yeelight: attach failed")

	// ErrInvalidAddress is returned for an empty or malformed bulb address.
	ErrInvalidAddress = errors.New("yeelight: invalid address")

	// ErrInvalidParam is returned before any I/O when a command argument
	// is out of range.
	ErrInvalidParam = errors.New("yeelight: invalid parameter")

	// ErrCommandFailed is returned when the bulb answers with an error or an
	// unexpected result.
	ErrCommandFailed = errors.New("yeelight: command failed")

	// ErrTimeout is returned when the bulb does not answer in time.
	ErrTimeout = errors.New("yeelight: operation timed out")

	// ErrProtocol is returned when the bulb sends something that is not a
	// protocol message.
	ErrProtocol = errors.New("yeelight: protocol error")

	// ErrClosed is returned for operations on a closed Bulb.
	ErrClosed = errors.New("yeelight: bulb closed")
)
