// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package orchestrator

import (
	"net/http"
	"sync/atomic"
)

// responseWriter remembers the status line sent to the client.
type responseWriter struct {
	http.ResponseWriter
	status atomic.Int32
}

func (w *responseWriter) WriteHeader(code int) {
	w.status.CompareAndSwap(0, int32(code))
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.status.CompareAndSwap(0, http.StatusOK)
	return w.ResponseWriter.Write(b)
}

// Unwrap lets [http.ResponseController] reach the connection.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Status returns the status code sent, or zero if nothing was sent yet.
func (w *responseWriter) Status() int {
	return int(w.status.Load())
}
