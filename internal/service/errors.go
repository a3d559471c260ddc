package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/library-service/internal/repository"
)

// Error kinds.  Handlers switch on these with errors.Is to pick a status
// code.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation error")
)

// Error is a classified failure with a message safe to show to clients.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

func forbidden(format string, args ...any) error {
	return newError(ErrForbidden, format, args...)
}

func unauthorized(format string, args ...any) error {
	return newError(ErrUnauthorized, format, args...)
}

func conflict(format string, args ...any) error {
	return newError(ErrConflict, format, args...)
}

func invalid(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

// classify translates repository sentinels into service errors.  entity
// names the thing being looked up ("book 4").  Unknown errors are wrapped
// and left unclassified so handlers answer 500.
func classify(err error, entity string) error {
	var svcErr *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &svcErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return notFound("%s not found", entity)
	case errors.Is(err, repository.ErrEmailExists):
		return conflict("email already registered")
	case errors.Is(err, repository.ErrDuplicate):
		return conflict("%s already exists", entity)
	case errors.Is(err, repository.ErrConflict):
		return conflict("%s is still referenced", entity)
	}
	return fmt.Errorf("%s: %w", entity, err)
}
