// Package apperr defines the error taxonomy shared by the inspection
// pipeline and the HTTP layer. Callers match with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable marks a failed store round-trip. Not retried.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrReportNotFound   = errors.New("report not found")
	ErrRequestNotFound  = errors.New("request not found")
	// ErrMalformedRow marks stored data that breaks a catalog invariant,
	// e.g. a photo pointing at an image group of another category.
	ErrMalformedRow = errors.New("malformed row")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)

// Store wraps a driver error so that it matches both ErrStoreUnavailable
// and the original error.
func Store(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// Malformed builds an ErrMalformedRow with a description of the offending row.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedRow, fmt.Sprintf(format, args...))
}

// Invalid builds an ErrInvalidInput with a message safe to show to clients.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
