package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrValidation signals malformed caller input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict signals a write that collides with an already indexed provider.
	ErrConflict = errors.New("conflict")
	// ErrStaleEvent signals an event whose sequence is not newer than the last applied one.
	ErrStaleEvent = errors.New("stale event")
	// ErrInfrastructure signals an unavailable or timed out index store. Retryable.
	ErrInfrastructure = errors.New("index store unavailable")
	// ErrProviderNotIndexed signals an event for a provider the index has not seen activated yet.
	// Retryable: redelivery after the activation event applies it.
	ErrProviderNotIndexed = errors.New("provider not indexed")
)

// IsRetryable reports whether the caller may retry the failed operation as-is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrInfrastructure) || errors.Is(err, ErrProviderNotIndexed)
}

// Validationf builds an ErrValidation-wrapped error.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Infrastructure wraps a storage failure as ErrInfrastructure, keeping the cause for logs.
func Infrastructure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrInfrastructure, err)
}
