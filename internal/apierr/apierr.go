// Package apierr maps the error kinds in spec.md §7 to transport-level
// status codes and machine-readable codes.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Input wraps an InputError (spec.md §7): malformed body, unknown provider,
// missing parameter, invalid state transition.
func Input(code string, err error) *Error { return New(http.StatusBadRequest, code, err) }

// Conflict wraps the Conflict kind: a job with the given id already exists.
func Conflict(code string, err error) *Error { return New(http.StatusConflict, code, err) }

// NotFound wraps the NotFound kind.
func NotFound(code string, err error) *Error { return New(http.StatusNotFound, code, err) }

// Fatal wraps an unhandled pipeline exception; the transport surfaces 500.
func Fatal(code string, err error) *Error { return New(http.StatusInternalServerError, code, err) }

// As extracts an *Error from err, returning (nil, false) if err is not one.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
