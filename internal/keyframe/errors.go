package keyframe

import "errors"

var (
	// ErrIO is returned when the backing file cannot be created, read or written.
	ErrIO = errors.New("timeline io failure")

	// ErrParse is returned when the backing file holds malformed content.
	ErrParse = errors.New("timeline parse failure")

	// ErrNotFound is returned when a referenced formation id does not exist.
	ErrNotFound = errors.New("formation not found")

	// ErrRange is returned when a new keyframe would end past the largest
	// representable timestamp.
	ErrRange = errors.New("keyframe out of range")

	// ErrPoisoned is returned by every call after a mutation failed midway and
	// the in-memory timeline can no longer be trusted to match the backing file.
	ErrPoisoned = errors.New("timeline guard poisoned")
)
