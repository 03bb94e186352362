package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrInvalidEntity is returned when a collection name is not a plain identifier.
	ErrInvalidEntity = errors.New("persistence: invalid entity name")
)
