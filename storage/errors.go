package storage

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when a key has no value.
	ErrNotFound = errors.New("key not found")

	// ErrInvalidKey is returned for keys a backend cannot represent.
	ErrInvalidKey = errors.New("invalid key")
)
