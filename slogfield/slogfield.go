// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package slogfield standardizes the attribute keys used in log records.
package slogfield

import (
	"log/slog"
	"time"
)

// Any returns an slog.Attr for the supplied value.
func Any(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// Bool returns an slog.Attr for a bool.
func Bool(key string, value bool) slog.Attr {
	return slog.Bool(key, value)
}

// Duration returns an slog.Attr for a time.Duration.
func Duration(key string, d time.Duration) slog.Attr {
	return slog.Duration(key, d)
}

// Error returns an slog.Attr for a error.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// String returns an slog.Attr for a string.
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Strings returns an slog.Attr for a slice of strings.
func Strings(key string, values []string) slog.Attr {
	return slog.Any(key, values)
}

// Int returns an slog.Attr for a int.
func Int(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Int64 returns an slog.Attr for a int64.
func Int64(key string, n int64) slog.Attr {
	return slog.Int64(key, n)
}

// Method is the HTTP request method.
func Method(m string) slog.Attr {
	return slog.String("http.method", m)
}

// Path is the HTTP request path, without the query.
func Path(p string) slog.Attr {
	return slog.String("http.path", p)
}

// Status is the HTTP response status code.
func Status(code int) slog.Attr {
	return slog.Int("http.status", code)
}

// Coding is the negotiated content coding.
func Coding(identifier string) slog.Attr {
	return slog.String("http.content_coding", identifier)
}

// RequestID is the identifier assigned to a single request.
func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

// Outcome is the classified result of a request, see cancel.Kind.
func Outcome(kind string) slog.Attr {
	return slog.String("outcome", kind)
}

// Elapsed is the time a request took, end to end.
func Elapsed(d time.Duration) slog.Attr {
	return slog.Duration("elapsed", d)
}
