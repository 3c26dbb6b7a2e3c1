// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package orchestrator supervises every request: it dispatches to the
// matching route, races the route handler against cancellation, classifies
// the outcome and logs it exactly once.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/z5labs/stencil/cancel"
	"github.com/z5labs/stencil/otelslog"
	"github.com/z5labs/stencil/respond"
	"github.com/z5labs/stencil/route"
	"github.com/z5labs/stencil/slogfield"
	"go.opentelemetry.io/otel/trace"
)

// RequestIDHeader carries the identifier assigned to every request.
const RequestIDHeader = "X-Request-Id"

// Outcome describes how a request ended.
type Outcome struct {
	Method string

	// Route is the registered path which matched, or empty if none did.
	Route string

	Status  int
	Kind    string
	Elapsed time.Duration
}

// Recorder observes the outcome of every request.
type Recorder interface {
	Record(context.Context, Outcome)
}

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, Outcome) {}

// Options configure the [Orchestrator].
type Options struct {
	logHandler slog.Handler
	responder  *respond.Responder
	recorder   Recorder
	now        func() time.Time
}

// Option sets a value on [Options].
type Option func(*Options)

// LogHandler sets the [slog.Handler] every outcome is logged with.
func LogHandler(h slog.Handler) Option {
	return func(o *Options) {
		o.logHandler = h
	}
}

// Responder sets the [respond.Responder] used for 404 and 405 responses.
func Responder(r *respond.Responder) Option {
	return func(o *Options) {
		o.responder = r
	}
}

// WithRecorder registers a [Recorder] for request outcomes.
func WithRecorder(r Recorder) Option {
	return func(o *Options) {
		o.recorder = r
	}
}

// Orchestrator wraps route handlers in timing and cancellation bookkeeping.
type Orchestrator struct {
	router    *route.Router
	log       *slog.Logger
	responder *respond.Responder
	recorder  Recorder
	now       func() time.Time
}

// New returns an Orchestrator dispatching to the routes in router.
func New(router *route.Router, opts ...Option) *Orchestrator {
	o := &Options{
		logHandler: slog.DiscardHandler,
		responder:  respond.New(),
		recorder:   noopRecorder{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Orchestrator{
		router:    router,
		log:       slog.New(o.logHandler),
		responder: o.responder,
		recorder:  o.recorder,
		now:       o.now,
	}
}

// Orchestrate starts serving r and returns the Operation supervising it.
//
// The Operation resolves when the handler succeeds or ends with a read or
// write timeout, since a timed out request is a handled outcome. It rejects
// with the handler error for any other failure, and with [cancel.ErrCanceled]
// if it is canceled, or the client goes away, before the handler settles.
// In every case the handler has settled by the time the Operation does.
func (o *Orchestrator) Orchestrate(ctx context.Context, w http.ResponseWriter, r *http.Request) *cancel.Operation[struct{}] {
	state := &route.State{}
	op, settle := cancel.Deferred[struct{}]()
	op.OnCancel(state.Cancelers.Call)

	stop := context.AfterFunc(r.Context(), state.Cancelers.Call)

	id := ulid.Make().String()
	w.Header().Set(RequestIDHeader, id)
	// handlers may narrow it, but status lines written here and by the
	// fallback still need it
	w.Header().Set("Vary", respond.Vary)
	ctx = otelslog.WithAttrs(ctx, slogfield.RequestID(id))

	rt, matched := o.router.Match(r.Method, r.URL.Path)
	h := rt.Handler
	if !matched {
		h = o.fallback(r.URL.Path)
	} else {
		trace.SpanFromContext(ctx).SetName(r.Method + " " + rt.Path)
	}

	rw := &responseWriter{ResponseWriter: w}
	args := &route.Args{
		Response: rw,
		Request:  r,
		State:    state,
	}

	start := o.now()
	handler := h.Handle(ctx, args)
	canceled := cancel.FromCallbacks(&state.Cancelers)

	go func() {
		defer stop()

		winner := cancel.Race(handler, canceled)
		_, err := handler.Wait()
		if winner == 1 {
			err = cancel.ErrCanceled
		}

		// late signals after the outcome was decided are discarded
		if !state.Finish() {
			settle(struct{}{}, err)
			return
		}

		status := rw.Status()
		if status == 0 {
			status = unsentStatus(err)
			if status != 0 {
				rw.WriteHeader(status)
			}
		}

		out := Outcome{
			Method:  r.Method,
			Route:   rt.Path,
			Status:  status,
			Kind:    cancel.Kind(err),
			Elapsed: o.now().Sub(start),
		}
		o.logOutcome(ctx, r, out, err)
		o.recorder.Record(ctx, out)

		if err == nil || errors.Is(err, cancel.ErrWriteTimeout) || errors.Is(err, cancel.ErrReadTimeout) {
			settle(struct{}{}, nil)
			return
		}
		settle(struct{}{}, err)
	}()
	return op
}

// unsentStatus picks the status line for a request whose handler ended
// without sending one.
func unsentStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusNoContent
	case errors.Is(err, cancel.ErrWriteTimeout):
		return 0
	case errors.Is(err, cancel.ErrReadTimeout):
		return http.StatusRequestTimeout
	case errors.Is(err, cancel.ErrCanceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (o *Orchestrator) logOutcome(ctx context.Context, r *http.Request, out Outcome, err error) {
	attrs := []slog.Attr{
		slogfield.Method(out.Method),
		slogfield.Path(r.URL.Path),
		slogfield.Status(out.Status),
		slogfield.Outcome(out.Kind),
		slogfield.Elapsed(out.Elapsed),
	}
	switch {
	case err == nil:
		o.log.LogAttrs(ctx, slog.LevelInfo, "served request", attrs...)
	case cancel.IsTimeout(err):
		o.log.LogAttrs(ctx, slog.LevelWarn, "request timed out", attrs...)
	case errors.Is(err, cancel.ErrCanceled):
		o.log.LogAttrs(ctx, slog.LevelWarn, "request canceled", attrs...)
	default:
		o.log.LogAttrs(ctx, slog.LevelError, "failed to serve request", append(attrs, slogfield.Error(err))...)
	}
}

// fallback answers requests no route matched. Paths which are registered
// for other methods get a 405 listing them, everything else a 404.
func (o *Orchestrator) fallback(path string) route.Handler {
	allowed := o.router.Allowed(path)
	return route.Simple(func(ctx context.Context, args *route.Args) error {
		if len(allowed) > 0 {
			return o.responder.MethodNotAllowed(ctx, args.Response, allowed)
		}
		return o.responder.NotFound(ctx, args.Response)
	})
}
