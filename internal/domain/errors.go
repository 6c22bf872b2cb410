package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrBadRequest      = errors.New("bad request")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// ErrStale is returned by stores when an optimistic version check fails.
var ErrStale = &Error{Kind: ErrConflict, Message: "resource was modified by another request"}

// Error carries a kind for status mapping and a caller-facing message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) error { return newError(ErrNotFound, format, args...) }

func Forbiddenf(format string, args ...any) error { return newError(ErrForbidden, format, args...) }

func Conflictf(format string, args ...any) error { return newError(ErrConflict, format, args...) }

func BadRequestf(format string, args ...any) error { return newError(ErrBadRequest, format, args...) }

func Unauthenticatedf(format string, args ...any) error {
	return newError(ErrUnauthenticated, format, args...)
}
