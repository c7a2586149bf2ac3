package services

import (
	"errors"
	"fmt"
)

// ErrValidation marks caller mistakes. Handlers answer them with 400.
var ErrValidation = errors.New("validation failed")

// ValidationError carries the message shown to the caller.
type ValidationError struct {
	Msg string
	Err error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func invalidWrap(err error, format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...), Err: err}
}
