// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package templates

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/z5labs/stencil/auth"
	"github.com/z5labs/stencil/cancel"
	"github.com/z5labs/stencil/negotiate"
	"github.com/z5labs/stencil/respond"
	"github.com/z5labs/stencil/route"
	"github.com/z5labs/stencil/schema"
	"github.com/z5labs/stencil/slogfield"
)

// Prefix is where template routes are mounted.
const Prefix = "/templates"

// Acceptable are the media types a template can be rendered as, in order
// of preference.
var Acceptable = []negotiate.MediaType{
	{Type: "text", Subtype: "html", Parameters: map[string]string{"charset": "utf-8"}},
	{Type: "text", Subtype: "html", Parameters: map[string]string{"charset": "utf8"}},
	{Type: "text", Subtype: "plain", Parameters: map[string]string{"charset": "utf-8"}},
	{Type: "text", Subtype: "plain", Parameters: map[string]string{"charset": "utf8"}},
}

const (
	unauthorizedMessage    = `Unauthorized: provide an Authorization header in the form "Bearer {jwt}"`
	invalidTokenMessage    = "Token was not understood, not signed correctly, or missing required claims"
	subjectMismatchMessage = "Token sub does not match route slug"
)

var errTooLarge = errors.New("request body too large")

// Options configure the routes built by [Route].
type Options struct {
	responder    *respond.Responder
	readTimeout  time.Duration
	maxBodyBytes int64
	logHandler   slog.Handler
}

// Option sets a value on [Options].
type Option func(*Options)

// Responder sets the [respond.Responder] every response is written with.
func Responder(r *respond.Responder) Option {
	return func(o *Options) {
		o.responder = r
	}
}

// ReadTimeout bounds how long the client may take to send the body.
func ReadTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.readTimeout = d
	}
}

// MaxBodyBytes is the largest body which will be read.
func MaxBodyBytes(n int64) Option {
	return func(o *Options) {
		if n > 0 {
			o.maxBodyBytes = n
		}
	}
}

// LogHandler sets the [slog.Handler] used for debug logging.
func LogHandler(h slog.Handler) Option {
	return func(o *Options) {
		o.logHandler = h
	}
}

// Group mounts a route for every template under [Prefix].
func Group(ts []Template, verifier *auth.Verifier, opts ...Option) route.Group {
	routes := make([]route.Route, len(ts))
	for i, t := range ts {
		routes[i] = Route(t, verifier, opts...)
	}
	return route.Group{
		Prefix: Prefix,
		Routes: routes,
	}
}

// Route builds the POST route rendering t. Only tokens verifier accepts
// and which were issued for the template slug are allowed through.
func Route(t Template, verifier *auth.Verifier, opts ...Option) route.Route {
	o := &Options{
		responder:    respond.New(),
		readTimeout:  5 * time.Second,
		maxBodyBytes: 1 << 20,
		logHandler:   slog.DiscardHandler,
	}
	for _, opt := range opts {
		opt(o)
	}

	h := &handler{
		tmpl:         t,
		verifier:     verifier,
		responder:    o.responder,
		readTimeout:  o.readTimeout,
		maxBodyBytes: o.maxBodyBytes,
		log:          slog.New(o.logHandler),
	}
	return route.Route{
		Methods:   []string{http.MethodPost},
		Path:      "/" + t.Slug,
		Handler:   route.Simple(h.serve),
		Operation: operation(t),
	}
}

type handler struct {
	tmpl         Template
	verifier     *auth.Verifier
	responder    *respond.Responder
	readTimeout  time.Duration
	maxBodyBytes int64
	log          *slog.Logger
}

func (h *handler) serve(ctx context.Context, args *route.Args) error {
	w, r := args.Response, args.Request

	coding, ok := negotiate.Encoding(r.Header.Values("Accept-Encoding"))
	if !ok {
		return h.responder.UnsupportedEncoding(ctx, w)
	}

	accepted, ok, err := negotiate.Accept(r.Header.Values("Accept"), Acceptable)
	if err != nil {
		h.log.DebugContext(ctx, "malformed accept header", slogfield.Error(err))
		return h.responder.BadRequest(ctx, w)
	}
	if !ok {
		return h.responder.NotAcceptable(ctx, w, coding.Identifier, Acceptable)
	}

	_, err = h.verifier.Verify(r.Header.Get("Authorization"), h.tmpl.Slug)
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return h.responder.Unauthorized(ctx, w, coding.Identifier, unauthorizedMessage)
	case errors.Is(err, auth.ErrSubjectMismatch):
		return h.responder.Forbidden(ctx, w, coding.Identifier, subjectMismatchMessage)
	case err != nil:
		h.log.DebugContext(ctx, "rejected bearer token", slogfield.Error(err))
		return h.responder.Forbidden(ctx, w, coding.Identifier, invalidTokenMessage)
	}
	if args.State.Finishing() {
		return cancel.ErrCanceled
	}

	body, err := h.load(ctx, args)
	switch {
	case errors.Is(err, cancel.ErrReadTimeout):
		return errors.Join(err, h.responder.RequestTimeout(ctx, w))
	case errors.Is(err, errTooLarge):
		return h.responder.PayloadTooLarge(ctx, w)
	case err != nil:
		return err
	}

	params, err := schema.Decode(body)
	if err != nil {
		h.log.DebugContext(ctx, "body is not json", slogfield.Error(err))
		return h.responder.BadRequest(ctx, w)
	}

	res := h.tmpl.Schema.Validate(params)
	if !res.Matches {
		return h.responder.UnprocessableEntity(ctx, w, coding.Identifier, respond.ValidationError{
			Error:     res.Error,
			ErrorPath: res.ErrorPath,
		})
	}

	var buf bytes.Buffer
	err = h.tmpl.Renderer.Render(&buf, params, Format(accepted.Subtype))
	if err != nil {
		return err
	}

	return h.responder.Send(ctx, w, respond.Response{
		Status:      http.StatusOK,
		Header:      http.Header{"Vary": {respond.Vary}},
		Coding:      coding.Identifier,
		ContentType: accepted.Type + "/" + accepted.Subtype + "; charset=utf-8",
		Body:        &buf,
	})
}

// load reads the whole body, giving up with [cancel.ErrReadTimeout] if the
// client is too slow to send it.
func (h *handler) load(ctx context.Context, args *route.Args) ([]byte, error) {
	r := args.Request
	if r.ContentLength > h.maxBodyBytes {
		return nil, errTooLarge
	}

	body := http.MaxBytesReader(args.Response, r.Body, h.maxBodyBytes)
	read := cancel.Go(ctx, func(context.Context) ([]byte, error) {
		return io.ReadAll(body)
	})
	timeout := cancel.Timeout(h.readTimeout)
	canceled := cancel.FromContext(ctx)

	switch cancel.Race(read, timeout, canceled) {
	case 0:
		b, err := read.Wait()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errTooLarge
		}
		return b, err
	case 1:
		h.abandon(args, read)
		return nil, cancel.ErrReadTimeout
	default:
		h.abandon(args, read)
		_, err := canceled.Wait()
		return nil, err
	}
}

// abandon unblocks a body read stuck on a slow client. The read is only
// awaited when the deadline could actually be applied.
func (h *handler) abandon(args *route.Args, read *cancel.Operation[[]byte]) {
	err := http.NewResponseController(args.Response).SetReadDeadline(time.Now())
	if err != nil {
		return
	}
	read.Wait()
}
