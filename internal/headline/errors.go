package headline

import "errors"

var (
	// ErrInvalidInput is returned when a headline is missing or empty after trimming.
	ErrInvalidInput = errors.New("headline is required")

	// ErrStoreUnavailable wraps any failure of the underlying backend on the write path.
	ErrStoreUnavailable = errors.New("headline store unavailable")

	// ErrCorruptState marks a stored document that could not be decoded.
	// Backends log it and fall back to empty state; it never reaches callers.
	ErrCorruptState = errors.New("headline state is corrupt")
)
