package stream

import "errors"

var (
	// ErrNotFound means no channel exists for the device.
	ErrNotFound = errors.New("device stream not found")

	// ErrForbidden means the channel is bound to a different owner.
	ErrForbidden = errors.New("not authorized for this stream")

	// ErrNoFrame means the channel exists but no frame has arrived yet.
	ErrNoFrame = errors.New("no frame available")
)
