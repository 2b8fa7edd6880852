package domain

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned when a report is requested before any capacity
// curve has been computed.
var ErrNotReady = errors.New("no capacity table has been computed yet")

// ErrNoScene indicates the delegate found no qualifying satellite scene for
// the requested window. Callers degrade to zero area rather than failing.
var ErrNoScene = errors.New("no suitable satellite scene for window")

// ValidationError marks malformed or missing user input. It maps to a 4xx
// response and is never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// DelegateError wraps a failure of the remote Earth-observation service:
// unreachable, unauthorized, or unable to answer a sub-query.
type DelegateError struct {
	Op  string // "classify_water", "mean_elevation", "mean_slope", "render_tiles"
	Err error
}

func (e *DelegateError) Error() string {
	return fmt.Sprintf("delegate %s: %v", e.Op, e.Err)
}

func (e *DelegateError) Unwrap() error { return e.Err }
