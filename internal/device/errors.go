package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrUnreachable) {
//	    // report BRIDGE_UNREACHABLE
//	}
var (
	// ErrDeviceNotFound is returned when an endpoint ID is not registered.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when registering a duplicate endpoint ID.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when a catalog entry fails validation.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrUnknownFamily is returned for a catalog entry with an unsupported family.
	ErrUnknownFamily = errors.New("device: unknown family")

	// ErrUnreachable is returned when the device or the system bridging it
	// cannot be reached.
	ErrUnreachable = errors.New("device: unreachable")

	// ErrPointMissing is returned when a point the device needs has no value.
	ErrPointMissing = errors.New("device: point has no value")

	// ErrInvalidPointValue is returned when a point holds a value of the
	// wrong type.
	ErrInvalidPointValue = errors.New("device: invalid point value")

	// ErrUnknownInstance is returned for a range instance the device does not have.
	ErrUnknownInstance = errors.New("device: unknown instance")
)
