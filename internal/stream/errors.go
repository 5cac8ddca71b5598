package stream

import "errors"

var (
	// ErrNotCamera is returned when the endpoint is unknown or has no
	// camera stream.
	ErrNotCamera = errors.New("stream: not a camera")

	// ErrNoSnapshot is returned when the camera has no still-image URL.
	ErrNoSnapshot = errors.New("stream: camera has no snapshot source")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("stream: manager closed")
)
