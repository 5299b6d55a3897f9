// Package errs contains sentinel errors shared by the store, service and relay layers.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the entity already exists (duplicate relation, taken username).
	ErrConflict = errors.New("conflict")

	// ErrInvalidArgument indicates a request that can never succeed as given.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrBackendUnavailable indicates the document store could not be reached.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrProtocol indicates a malformed or unrecognized relay envelope.
	ErrProtocol = errors.New("protocol error")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")
)

// Unavailable wraps a driver failure so callers can match ErrBackendUnavailable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrBackendUnavailable, err)
}

// Invalid wraps a validation failure as ErrInvalidArgument.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Protocol wraps an envelope decoding or dispatch failure as ErrProtocol.
func Protocol(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}
