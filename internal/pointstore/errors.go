package pointstore

import "errors"

var (
	// ErrNotFound is returned when no value is known for a point.
	ErrNotFound = errors.New("pointstore: point not found")

	// ErrUnreachable is returned when the system behind the store cannot be
	// reached (broker disconnected, publish failed).
	ErrUnreachable = errors.New("pointstore: unreachable")

	// ErrInvalidPoint is returned for an empty point ID.
	ErrInvalidPoint = errors.New("pointstore: invalid point id")
)
