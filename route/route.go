// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package route defines request handlers as cancelable operations and the
// immutable router which dispatches requests to them.
package route

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/swaggest/openapi-go/openapi3"
	"github.com/z5labs/stencil/cancel"
)

// State is the bookkeeping shared by everything serving a single request.
type State struct {
	finishing atomic.Bool

	// Cancelers fires once the request is finishing, for any reason.
	// Work started on behalf of the request registers here to be released.
	Cancelers cancel.Callbacks
}

// Finishing reports whether the outcome of the request is already decided.
// Once true, nothing else may be written to the response.
func (s *State) Finishing() bool {
	return s.finishing.Load()
}

// Finish marks the request as finishing and fires the Cancelers. Only the
// first caller gets true back and is then responsible for the outcome.
func (s *State) Finish() bool {
	if !s.finishing.CompareAndSwap(false, true) {
		return false
	}
	s.Cancelers.Call()
	return true
}

// Args are given to a [Handler] for every request it serves.
type Args struct {
	Response http.ResponseWriter
	Request  *http.Request
	State    *State
}

// Canceled returns an Operation which rejects once the request is finishing.
func (a *Args) Canceled() *cancel.Operation[struct{}] {
	return cancel.FromCallbacks(&a.State.Cancelers)
}

// Handler serves a request. The returned Operation must already be running
// and must settle once the response has been completely written, or the
// handler gave up on it.
type Handler interface {
	Handle(context.Context, *Args) *cancel.Operation[struct{}]
}

// HandlerFunc is a func implementation of [Handler].
type HandlerFunc func(context.Context, *Args) *cancel.Operation[struct{}]

// Handle implements the [Handler] interface.
func (f HandlerFunc) Handle(ctx context.Context, args *Args) *cancel.Operation[struct{}] {
	return f(ctx, args)
}

// Simple adapts a blocking func into a [Handler]. The func runs on its own
// goroutine and ctx is canceled when the returned Operation is.
func Simple(f func(context.Context, *Args) error) Handler {
	return HandlerFunc(func(ctx context.Context, args *Args) *cancel.Operation[struct{}] {
		return cancel.Go(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, f(ctx, args)
		})
	})
}

// FromHTTP adapts a standard [http.Handler] into a [Handler].
func FromHTTP(h http.Handler) Handler {
	return Simple(func(ctx context.Context, args *Args) error {
		h.ServeHTTP(args.Response, args.Request.WithContext(ctx))
		return nil
	})
}

// Route binds a handler to a path and the methods it serves.
type Route struct {
	Methods []string
	Path    string
	Handler Handler

	// Operation documents the route when it is non-nil.
	Operation *openapi3.Operation
}
