// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package respond writes complete responses, always through the streaming
// writer so every response is bound by the same timeouts.
package respond

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/z5labs/stencil/negotiate"
	"github.com/z5labs/stencil/stream"
)

// Vary lists both negotiation dimensions. Every response from a negotiated
// route carries it.
const Vary = "Accept, Accept-Encoding"

// Content types used by canned responses.
const (
	TextPlain = "text/plain; charset=utf-8"
	JSON      = "application/json; charset=utf-8"
)

// Response is a complete response to be written.
type Response struct {
	Status      int
	Header      http.Header
	Coding      string
	ContentType string
	Body        io.Reader

	// Encoded means Body is already encoded with Coding and is copied
	// through as is.
	Encoded bool
}

// Responder writes responses with a fixed set of stream options.
type Responder struct {
	opts []stream.Option
}

// New returns a Responder which passes opts to every [stream.Write].
func New(opts ...stream.Option) *Responder {
	return &Responder{opts: opts}
}

// Send writes the status line, headers and body. The body is encoded with
// resp.Coding, or identity when it is empty.
func (r *Responder) Send(ctx context.Context, w http.ResponseWriter, resp Response) error {
	coding := resp.Coding
	if coding == "" {
		coding = negotiate.Identity
	}
	body := resp.Body
	if body == nil {
		body = http.NoBody
	}

	h := w.Header()
	for k, vs := range resp.Header {
		h[k] = vs
	}
	if resp.ContentType != "" {
		h.Set("Content-Type", resp.ContentType)
	}
	h.Set("Content-Encoding", coding)
	h.Del("Content-Length")

	w.WriteHeader(resp.Status)

	streamCoding := coding
	if resp.Encoded {
		streamCoding = negotiate.Identity
	}
	_, err := stream.Write(ctx, w, body, streamCoding, r.opts...).Wait()
	return err
}

// Text sends a plain text body with the standard Vary header.
func (r *Responder) Text(ctx context.Context, w http.ResponseWriter, status int, coding, text string) error {
	return r.Send(ctx, w, Response{
		Status:      status,
		Header:      http.Header{"Vary": {Vary}},
		Coding:      coding,
		ContentType: TextPlain,
		Body:        strings.NewReader(text),
	})
}

// identityOnly sends an empty body with identity coding, advertising the
// codings which would have been acceptable.
func (r *Responder) identityOnly(ctx context.Context, w http.ResponseWriter, status int) error {
	return r.Send(ctx, w, Response{
		Status: status,
		Header: http.Header{
			"Vary":            {Vary},
			"Accept-Encoding": {negotiate.AcceptableEncodingsHeader},
		},
	})
}

// BadRequest is for low level mistakes, like an unparseable Accept header,
// which are unlikely in normal usage.
func (r *Responder) BadRequest(ctx context.Context, w http.ResponseWriter) error {
	return r.identityOnly(ctx, w, http.StatusBadRequest)
}

// PayloadTooLarge is sent when the body, by inspection or by its declared
// length, is larger than allowed.
func (r *Responder) PayloadTooLarge(ctx context.Context, w http.ResponseWriter) error {
	return r.identityOnly(ctx, w, http.StatusRequestEntityTooLarge)
}

// RequestTimeout is sent when the client took too long to send the body.
func (r *Responder) RequestTimeout(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Connection", "close")
	return r.identityOnly(ctx, w, http.StatusRequestTimeout)
}

// UnsupportedEncoding is sent when no content coding is acceptable.
func (r *Responder) UnsupportedEncoding(ctx context.Context, w http.ResponseWriter) error {
	return r.identityOnly(ctx, w, http.StatusUnsupportedMediaType)
}

// NotAcceptable is sent when none of the acceptable media types satisfies
// the Accept header. The body lists what would have been acceptable.
func (r *Responder) NotAcceptable(ctx context.Context, w http.ResponseWriter, coding string, acceptable []negotiate.MediaType) error {
	var sb strings.Builder
	for _, m := range acceptable {
		sb.WriteString(m.String())
		sb.WriteByte('\n')
	}
	return r.Text(ctx, w, http.StatusNotAcceptable, coding, sb.String())
}

// Unauthorized is sent when credentials are missing or malformed.
func (r *Responder) Unauthorized(ctx context.Context, w http.ResponseWriter, coding, message string) error {
	return r.Text(ctx, w, http.StatusUnauthorized, coding, message)
}

// Forbidden is sent when credentials were understood but are not accepted.
func (r *Responder) Forbidden(ctx context.Context, w http.ResponseWriter, coding, message string) error {
	return r.Text(ctx, w, http.StatusForbidden, coding, message)
}

// ValidationError is the body of an Unprocessable Entity response.
type ValidationError struct {
	Error     string   `json:"error"`
	ErrorPath []string `json:"errorPath"`
}

// UnprocessableEntity is sent when the body does not match the expected schema.
func (r *Responder) UnprocessableEntity(ctx context.Context, w http.ResponseWriter, coding string, verr ValidationError) error {
	if verr.ErrorPath == nil {
		verr.ErrorPath = []string{}
	}
	b, err := json.Marshal(verr)
	if err != nil {
		return err
	}
	return r.Send(ctx, w, Response{
		Status:      http.StatusUnprocessableEntity,
		Header:      http.Header{"Vary": {Vary}},
		Coding:      coding,
		ContentType: JSON,
		Body:        bytes.NewReader(b),
	})
}

// ServiceUnavailable is sent while a resource the request depends on is
// not ready yet.
func (r *Responder) ServiceUnavailable(ctx context.Context, w http.ResponseWriter, retryAfter time.Duration) error {
	secs := int(retryAfter.Round(time.Second) / time.Second)
	return r.Send(ctx, w, Response{
		Status: http.StatusServiceUnavailable,
		Header: http.Header{
			"Vary":        {Vary},
			"Retry-After": {strconv.Itoa(secs)},
		},
	})
}

// MethodNotAllowed is sent when the path is registered for other methods.
func (r *Responder) MethodNotAllowed(ctx context.Context, w http.ResponseWriter, allowed []string) error {
	return r.Send(ctx, w, Response{
		Status: http.StatusMethodNotAllowed,
		Header: http.Header{
			"Vary":  {Vary},
			"Allow": {strings.Join(allowed, ", ")},
		},
	})
}

// NotFound is sent when no route matches the path.
func (r *Responder) NotFound(ctx context.Context, w http.ResponseWriter) error {
	return r.Send(ctx, w, Response{
		Status: http.StatusNotFound,
		Header: http.Header{"Vary": {Vary}},
	})
}
