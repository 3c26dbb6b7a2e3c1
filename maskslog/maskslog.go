// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package maskslog provides a slog.Handler which masks sensitive attributes,
// such as bearer tokens and signing secrets, before they are written.
package maskslog

import (
	"context"
	"log/slog"
)

type options struct {
	attrTransformers map[string]func(slog.Attr) slog.Attr
	message          func(string) string
}

// Option helps configure the Handler.
type Option interface {
	applyOption(*options)
}

type optionFunc func(*options)

func (f optionFunc) applyOption(opts *options) {
	f(opts)
}

// Message registers a function for masking slog.Record messages.
func Message(f func(string) string) Option {
	return optionFunc(func(o *options) {
		o.message = f
	})
}

// Attr registers a function for masking a slog.Attr given its key. Keys
// are matched at any group depth.
func Attr(key string, f func(slog.Attr) slog.Attr) Option {
	return optionFunc(func(o *options) {
		o.attrTransformers[key] = f
	})
}

// Keys masks every attribute with one of the given keys as "****".
func Keys(keys ...string) Option {
	return optionFunc(func(o *options) {
		for _, key := range keys {
			o.attrTransformers[key] = AnonymousStringAttr
		}
	})
}

// AnonymousStringAttr is a helper function for converting any slog.Attr
// into the anonymized string, "****". It completely ignores the given
// slog.Attr value type and always return a string value.
func AnonymousStringAttr(a slog.Attr) slog.Attr {
	return slog.String(a.Key, "****")
}

// Handler is an slog.Handler.
type Handler struct {
	slog slog.Handler
	opts *options
}

// NewHandler returns a new Handler.
func NewHandler(h slog.Handler, opts ...Option) *Handler {
	o := &options{
		attrTransformers: make(map[string]func(slog.Attr) slog.Attr),
	}
	for _, opt := range opts {
		opt.applyOption(o)
	}
	return &Handler{
		slog: h,
		opts: o,
	}
}

// Enabled implements the slog.Handler interface.
func (h *Handler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.slog.Enabled(ctx, lvl)
}

// Handle implements the slog.Handler interface.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	msg := record.Message
	if h.opts.message != nil {
		msg = h.opts.message(msg)
	}
	if len(h.opts.attrTransformers) == 0 {
		record.Message = msg
		return h.slog.Handle(ctx, record)
	}

	attrs := make([]slog.Attr, 0, record.NumAttrs())
	record.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.mask(a))
		return true
	})

	nr := slog.NewRecord(record.Time, record.Level, msg, record.PC)
	nr.AddAttrs(attrs...)
	return h.slog.Handle(ctx, nr)
}

func (h *Handler) mask(a slog.Attr) slog.Attr {
	if f, ok := h.opts.attrTransformers[a.Key]; ok {
		return f(a)
	}
	if a.Value.Kind() != slog.KindGroup {
		return a
	}

	group := a.Value.Group()
	masked := make([]slog.Attr, len(group))
	for i, ga := range group {
		masked[i] = h.mask(ga)
	}
	return slog.Attr{Key: a.Key, Value: slog.GroupValue(masked...)}
}

// WithAttrs implements the slog.Handler interface.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.mask(a)
	}
	return &Handler{
		slog: h.slog.WithAttrs(masked),
		opts: h.opts,
	}
}

// WithGroup implements the slog.Handler interface.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		slog: h.slog.WithGroup(name),
		opts: h.opts,
	}
}
