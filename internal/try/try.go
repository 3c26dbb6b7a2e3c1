// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package try provides deferred helpers for recovering panics and closing
// resources without losing errors.
package try

import (
	"errors"
	"fmt"
	"io"
)

// PanicError is the error recovered from a panicking goroutine.
type PanicError struct {
	Value any
}

// Error implements the [builtin.error] interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("recovered from panic: %v", e.Value)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Recover must be deferred directly. It converts a panic into a
// [PanicError] and joins it with any error already stored in err.
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}

	perr := PanicError{
		Value: r,
	}
	if *err == nil {
		*err = perr
		return
	}
	*err = errors.Join(*err, perr)
}

// CloseError wraps the error returned by a failed Close.
type CloseError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e CloseError) Error() string {
	return fmt.Sprintf("failed to close: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e CloseError) Unwrap() error {
	return e.Cause
}

// Is reports every CloseError as equal so callers can ignore close failures
// with errors.Is(err, try.CloseError{}).
func (CloseError) Is(target error) bool {
	_, ok := target.(CloseError)
	return ok
}

// Close closes v if it implements [io.Closer] and joins a failure into err.
func Close(err *error, v any) {
	c, ok := v.(io.Closer)
	if !ok || c == nil {
		return
	}

	cerr := c.Close()
	if cerr == nil {
		return
	}

	if *err == nil {
		*err = CloseError{Cause: cerr}
		return
	}
	*err = errors.Join(*err, CloseError{Cause: cerr})
}
