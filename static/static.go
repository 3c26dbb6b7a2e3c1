// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package static serves files which are compressed ahead of time into
// every supported content coding.
package static

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/z5labs/stencil/cancel"
	"github.com/z5labs/stencil/internal/fixedpool"
	"github.com/z5labs/stencil/internal/try"
	"github.com/z5labs/stencil/negotiate"
	"github.com/z5labs/stencil/respond"
	"github.com/z5labs/stencil/route"
	"github.com/z5labs/stencil/slogfield"
	"github.com/z5labs/stencil/stream"
)

// CacheControl is sent with every successful response.
const CacheControl = "public, max-age=2, stale-while-revalidate=10, stale-if-error=86400"

// Options configure a [Handler].
type Options struct {
	contentType string
	cacheDir    string
	retryAfter  time.Duration
	debounce    time.Duration
	responder   *respond.Responder
	logHandler  slog.Handler
}

// Option sets a value on [Options].
type Option func(*Options)

// ContentType sets the Content-Type the file is served as.
func ContentType(ct string) Option {
	return func(o *Options) {
		o.contentType = ct
	}
}

// CacheDir sets the directory compressed copies are written to.
func CacheDir(dir string) Option {
	return func(o *Options) {
		o.cacheDir = dir
	}
}

// RetryAfter is how long clients are asked to wait while the compressed
// copies are not ready.
func RetryAfter(d time.Duration) Option {
	return func(o *Options) {
		o.retryAfter = d
	}
}

// Debounce waits until the file has gone d without changing before
// preparing it again.
func Debounce(d time.Duration) Option {
	return func(o *Options) {
		o.debounce = d
	}
}

// Responder sets the [respond.Responder] every response is written with.
func Responder(r *respond.Responder) Option {
	return func(o *Options) {
		o.responder = r
	}
}

// LogHandler sets the [slog.Handler] used for logging.
func LogHandler(h slog.Handler) Option {
	return func(o *Options) {
		o.logHandler = h
	}
}

// Handler serves a single file from its precompressed copies.
type Handler struct {
	path        string
	key         string
	contentType string
	cacheDir    string
	retryAfter  time.Duration
	debounce    time.Duration
	responder   *respond.Responder
	log         *slog.Logger

	ready     atomic.Bool
	prepareMu sync.Mutex
}

// New returns a Handler for the file at path. Nothing is served until
// [Handler.Prepare] succeeds.
func New(path string, opts ...Option) *Handler {
	o := &Options{
		contentType: "application/octet-stream",
		cacheDir:    filepath.Join(os.TempDir(), "stencil"),
		retryAfter:  60 * time.Second,
		debounce:    100 * time.Millisecond,
		responder:   respond.New(),
		logHandler:  slog.DiscardHandler,
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Handler{
		path:        path,
		key:         cacheKey(path),
		contentType: o.contentType,
		cacheDir:    o.cacheDir,
		retryAfter:  o.retryAfter,
		debounce:    o.debounce,
		responder:   o.responder,
		log:         slog.New(o.logHandler),
	}
}

func cacheKey(path string) string {
	sum := sha512.Sum512([]byte(path))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func (h *Handler) cached(coding string) string {
	return filepath.Join(h.cacheDir, h.key+"."+coding)
}

// CompressError is returned when the file could not be compressed into
// one of the codings.
type CompressError struct {
	Path   string
	Coding string
	Cause  error
}

// Error implements the [builtin.error] interface.
func (e CompressError) Error() string {
	return fmt.Sprintf("failed to compress %s with %s: %s", e.Path, e.Coding, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e CompressError) Unwrap() error {
	return e.Cause
}

// Prepare compresses the file into every known coding concurrently. Each
// copy replaces the previous one atomically, so requests served meanwhile
// see either the old or the new content.
func (h *Handler) Prepare(ctx context.Context) error {
	h.prepareMu.Lock()
	defer h.prepareMu.Unlock()

	err := os.MkdirAll(h.cacheDir, 0o755)
	if err != nil {
		return err
	}

	codings := negotiate.Known()
	tasks := make([]fixedpool.Task, len(codings))
	for i, coding := range codings {
		tasks[i] = func(ctx context.Context) error {
			err := h.compress(coding)
			if err != nil {
				return CompressError{Path: h.path, Coding: coding, Cause: err}
			}
			return nil
		}
	}

	err = fixedpool.Wait(ctx, tasks...)
	if err != nil {
		return err
	}
	h.ready.Store(true)
	h.log.InfoContext(ctx, "prepared static file", slogfield.String("path", h.path))
	return nil
}

func (h *Handler) compress(coding string) (err error) {
	src, err := os.Open(h.path)
	if err != nil {
		return err
	}
	defer try.Close(&err, src)

	out := h.cached(coding)
	tmp, err := os.Create(out + ".tmp")
	if err != nil {
		return err
	}

	err = stream.Encode(tmp, coding, src)
	cerr := tmp.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), out)
}

// Healthy implements the health.Metric interface. It reports whether the
// compressed copies have been prepared at least once.
func (h *Handler) Healthy(context.Context) bool {
	return h.ready.Load()
}

// Watch prepares the file again whenever it is written or recreated, once
// the changes have settled. It blocks until ctx is done.
func (h *Handler) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// editors often replace files by renaming over them, which a watch on
	// the file itself would miss
	err = watcher.Add(filepath.Dir(h.path))
	if err != nil {
		return err
	}

	name := filepath.Clean(h.path)

	// a burst of events, like a truncate followed by writes, is prepared
	// once after it has been quiet for the debounce period
	settled := time.NewTimer(h.debounce)
	settled.Stop()
	defer settled.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			h.log.DebugContext(ctx, "static file changed", slogfield.String("path", h.path), slogfield.String("op", event.Op.String()))
			settled.Reset(h.debounce)
		case <-settled.C:
			err := h.Prepare(ctx)
			if err != nil {
				h.log.ErrorContext(ctx, "failed to prepare static file", slogfield.String("path", h.path), slogfield.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.log.ErrorContext(ctx, "static file watcher error", slogfield.String("path", h.path), slogfield.Error(err))
		}
	}
}

// Handle implements the [route.Handler] interface.
func (h *Handler) Handle(ctx context.Context, args *route.Args) *cancel.Operation[struct{}] {
	return route.Simple(h.serve).Handle(ctx, args)
}

func (h *Handler) serve(ctx context.Context, args *route.Args) error {
	w, r := args.Response, args.Request

	coding, ok := negotiate.Encoding(r.Header.Values("Accept-Encoding"))
	if !ok {
		return h.responder.UnsupportedEncoding(ctx, w)
	}
	if !h.ready.Load() {
		return h.responder.ServiceUnavailable(ctx, w, h.retryAfter)
	}

	f, err := os.Open(h.cached(coding.Identifier))
	if err != nil {
		h.log.WarnContext(ctx, "failed to open compressed copy", slogfield.Coding(coding.Identifier), slogfield.Error(err))
		return h.responder.ServiceUnavailable(ctx, w, h.retryAfter)
	}

	return h.responder.Send(ctx, w, respond.Response{
		Status: http.StatusOK,
		Header: http.Header{
			"Vary":          {"Accept-Encoding"},
			"Cache-Control": {CacheControl},
		},
		Coding:      coding.Identifier,
		ContentType: h.contentType,
		Body:        f,
		Encoded:     true,
	})
}
