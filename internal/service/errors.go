package service

import (
	"errors"

	"github.com/nerrad567/gray-logic-telemetry/internal/store"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrNotFound is returned when the addressed entity does not exist.
	ErrNotFound = errors.New("service: not found")
	// ErrAlreadyExists is returned when creating an entity that is already stored.
	ErrAlreadyExists = errors.New("service: already exists")
	// ErrInvalidInput is returned for requests that fail validation.
	ErrInvalidInput = errors.New("service: invalid input")
	// ErrInternal is returned for backend failures the caller cannot fix.
	ErrInternal = errors.New("service: internal error")
)

// Error is a classified service failure.
type Error struct {
	Kind   error
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Detail
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: cause}
}

func notFound(detail string) error              { return newError(ErrNotFound, detail, nil) }
func invalidInput(cause error) error            { return newError(ErrInvalidInput, cause.Error(), cause) }
func internal(detail string, cause error) error { return newError(ErrInternal, detail, cause) }

// Detail returns the human-readable detail of a service error, or the
// error text for anything else.
func Detail(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Detail
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

type operation int

const (
	opCreate operation = iota
	opRead
	opUpdate
	opDelete
)

// translate maps a storage error to a service error.
//
// NotFound is meaningful only for update and delete; from any other
// operation it signals a broken backend and becomes Internal.
func translate(op operation, err error) error {
	if err == nil {
		return nil
	}

	if detail, ok := store.AsInternal(err); ok {
		return internal(detail, err)
	}

	switch {
	case errors.Is(err, store.ErrConflict):
		return newError(ErrAlreadyExists, "", err)
	case errors.Is(err, store.ErrNotFound):
		if op == opUpdate || op == opDelete {
			return newError(ErrNotFound, "", err)
		}
		return internal("backend reported not found during "+op.String(), err)
	case errors.Is(err, telemetry.ErrValidation), errors.Is(err, telemetry.ErrInvalidDevice):
		return invalidInput(err)
	default:
		return internal(err.Error(), err)
	}
}

func (op operation) String() string {
	switch op {
	case opCreate:
		return "create"
	case opRead:
		return "read"
	case opUpdate:
		return "update"
	default:
		return "delete"
	}
}
