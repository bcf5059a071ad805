package device

import (
	"errors"
	"fmt"
)

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDevice) {
//	    // a device rejected or failed a write
//	}
var (
	// ErrDevice is matched by every *DeviceError.
	ErrDevice = errors.New("device: operation failed")

	// ErrAttachFailed is returned by Open when a configured device cannot
	// be connected or attached.
	ErrAttachFailed = errors.New("device: attach failed")
)

// Fleet operations reported in DeviceError.Op.
const (
	OpSetRGB    = "set_rgb"
	OpSetBright = "set_bright"
)

// DeviceError describes the first device failure of a fleet operation.
// Devices before Index already hold the new state.
type DeviceError struct { //nolint:revive // device.DeviceError reads better at call sites than device.Error
	Index   int    // position of the failing handle in the registry
	Address string // address of the failing handle
	Op      string // OpSetRGB or OpSetBright
	Err     error  // underlying transport or protocol failure
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %d (%s): %s: %v", e.Index, e.Address, e.Op, e.Err)
}

// Unwrap returns the underlying failure.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrDevice) true for every DeviceError.
func (e *DeviceError) Is(target error) bool {
	return target == ErrDevice
}
