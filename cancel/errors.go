// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cancel

import "errors"

var (
	// ErrCanceled is the result of an Operation which was canceled before
	// its work completed.
	ErrCanceled = errors.New("canceled")

	// ErrReadTimeout is used if it takes too long to read from the client.
	ErrReadTimeout = errors.New("read timeout")

	// ErrWriteTimeout is used if it takes too long to write to the client,
	// despite data being available.
	ErrWriteTimeout = errors.New("write timeout")

	// ErrContentTimeout is used if it takes too long to decide what content
	// to respond to the client with.
	ErrContentTimeout = errors.New("content timeout")
)

// IsTimeout reports whether err is classified as one of the read, write or
// content timeouts.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrReadTimeout) ||
		errors.Is(err, ErrWriteTimeout) ||
		errors.Is(err, ErrContentTimeout)
}

// Kind returns the classification of err as a short, log friendly string.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCanceled):
		return ErrCanceled.Error()
	case errors.Is(err, ErrReadTimeout):
		return ErrReadTimeout.Error()
	case errors.Is(err, ErrWriteTimeout):
		return ErrWriteTimeout.Error()
	case errors.Is(err, ErrContentTimeout):
		return ErrContentTimeout.Error()
	default:
		return "error"
	}
}
