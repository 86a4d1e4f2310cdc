package store

import (
	"errors"
	"fmt"
)

// Storage errors shared by every backend.
var (
	// ErrNotFound is returned by Update and DeleteByID when the entity is absent.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned by Create when the identity already exists.
	ErrConflict = errors.New("store: conflict")

	// ErrNotConfigured is returned when a Backends slot is empty.
	ErrNotConfigured = errors.New("store: backend not configured")
)

// InternalError carries a backend-native failure.
type InternalError struct {
	Detail string
	Err    error
}

// Internal wraps err as an InternalError. The detail is the error text.
func Internal(err error) *InternalError {
	return &InternalError{Detail: err.Error(), Err: err}
}

// Internalf builds an InternalError from a formatted detail.
func Internalf(format string, args ...any) *InternalError {
	err := fmt.Errorf(format, args...)
	return &InternalError{Detail: err.Error(), Err: err}
}

func (e *InternalError) Error() string {
	return "store: internal: " + e.Detail
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// AsInternal reports whether err is an InternalError and returns its detail.
func AsInternal(err error) (string, bool) {
	var ie *InternalError
	if errors.As(err, &ie) {
		return ie.Detail, true
	}
	return "", false
}
