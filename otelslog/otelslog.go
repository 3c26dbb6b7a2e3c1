// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otelslog provides a context aware slog.Handler which correlates
// log records with the active trace span and the request being served.
package otelslog

import (
	"context"
	"log/slog"

	"github.com/z5labs/stencil/slogfield"

	"go.opentelemetry.io/otel/trace"
)

type attrsKey struct{}

// WithAttrs returns a copy of ctx carrying attrs. Every record logged with
// the returned context through a [Handler] includes them.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	prev, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(prev)+len(attrs))
	merged = append(merged, prev...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, attrsKey{}, merged)
}

// Handler is an slog.Handler which helps standardize and correlate your
// logs by automatically adding the Trace ID and Span ID to your logs,
// along with any attributes attached by [WithAttrs].
type Handler struct {
	slog slog.Handler
}

// NewHandler wraps h.
func NewHandler(h slog.Handler) *Handler {
	return &Handler{slog: h}
}

// New provides a simple wrapper for slog.New(NewHandler(h)).
func New(h slog.Handler) *slog.Logger {
	return slog.New(NewHandler(h))
}

// Enabled implements the slog.Handler interface.
func (h *Handler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.slog.Enabled(ctx, lvl)
}

// Handle implements the slog.Handler interface.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	ctxAttrs, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	spanCtx := trace.SpanContextFromContext(ctx)
	if len(ctxAttrs) == 0 && !spanCtx.IsValid() {
		return h.slog.Handle(ctx, record)
	}

	r := record.Clone()
	r.AddAttrs(ctxAttrs...)
	if spanCtx.IsValid() {
		r.AddAttrs(
			slog.Group(
				"otel",
				slogfield.String("trace_id", spanCtx.TraceID().String()),
				slogfield.String("span_id", spanCtx.SpanID().String()),
			),
		)
	}
	return h.slog.Handle(ctx, r)
}

// WithAttrs implements the slog.Handler interface.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewHandler(h.slog.WithAttrs(attrs))
}

// WithGroup implements the slog.Handler interface.
func (h *Handler) WithGroup(name string) slog.Handler {
	return NewHandler(h.slog.WithGroup(name))
}
