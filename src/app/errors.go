package app

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidID          = errors.New("invalid identifier")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNoToken            = errors.New("not authorized, no token")
	ErrTokenInvalid       = errors.New("not authorized, token failed")
	ErrTokenExpired       = errors.New("token has expired, please login again")
	ErrTooLarge           = errors.New("payload too large")
	ErrStorage            = errors.New("storage error")
	ErrUpstream           = errors.New("object store error")
	ErrUnavailable        = errors.New("feature not configured")
)

// ValidationError describes the first field that failed validation.
// Index is the position inside a bulk request, -1 for single payloads.
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Index >= 0 && e.Field != "":
		return fmt.Sprintf("record %d: %s %s", e.Index, e.Field, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("%s %s", e.Field, e.Reason)
	default:
		return e.Reason
	}
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Index: -1, Field: field, Reason: reason}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
