package id

import "errors"

// ErrInvalidUUID is returned when a UUID string is invalid.
var ErrInvalidUUID = errors.New("invalid UUID format")
