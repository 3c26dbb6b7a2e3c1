// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package respond

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/z5labs/stencil/negotiate"
)

func TestResponder_canned(t *testing.T) {
	r := New()

	testCases := []struct {
		Name          string
		Send          func(context.Context, http.ResponseWriter) error
		Status        int
		Header        map[string]string
		Body          string
		ContentCoding string
	}{
		{
			Name:   "bad request",
			Send:   r.BadRequest,
			Status: http.StatusBadRequest,
			Header: map[string]string{
				"Vary":            Vary,
				"Accept-Encoding": negotiate.AcceptableEncodingsHeader,
			},
		},
		{
			Name:   "unsupported encoding",
			Send:   r.UnsupportedEncoding,
			Status: http.StatusUnsupportedMediaType,
			Header: map[string]string{
				"Accept-Encoding": "br, gzip, identity",
			},
		},
		{
			Name:   "payload too large",
			Send:   r.PayloadTooLarge,
			Status: http.StatusRequestEntityTooLarge,
		},
		{
			Name:   "request timeout",
			Send:   r.RequestTimeout,
			Status: http.StatusRequestTimeout,
			Header: map[string]string{
				"Connection": "close",
			},
		},
		{
			Name: "service unavailable",
			Send: func(ctx context.Context, w http.ResponseWriter) error {
				return r.ServiceUnavailable(ctx, w, 60*time.Second)
			},
			Status: http.StatusServiceUnavailable,
			Header: map[string]string{
				"Retry-After": "60",
			},
		},
		{
			Name: "method not allowed",
			Send: func(ctx context.Context, w http.ResponseWriter) error {
				return r.MethodNotAllowed(ctx, w, []string{http.MethodGet, http.MethodHead})
			},
			Status: http.StatusMethodNotAllowed,
			Header: map[string]string{
				"Allow": "GET, HEAD",
				"Vary":  Vary,
			},
		},
		{
			Name:   "not found",
			Send:   r.NotFound,
			Status: http.StatusNotFound,
			Header: map[string]string{
				"Vary": Vary,
			},
		},
		{
			Name: "unauthorized",
			Send: func(ctx context.Context, w http.ResponseWriter) error {
				return r.Unauthorized(ctx, w, negotiate.Identity, "who are you")
			},
			Status: http.StatusUnauthorized,
			Header: map[string]string{
				"Content-Type": TextPlain,
				"Vary":         Vary,
			},
			Body: "who are you",
		},
		{
			Name: "not acceptable",
			Send: func(ctx context.Context, w http.ResponseWriter) error {
				return r.NotAcceptable(ctx, w, negotiate.Identity, []negotiate.MediaType{
					{Type: "text", Subtype: "plain", Parameters: map[string]string{"charset": "utf-8"}},
				})
			},
			Status: http.StatusNotAcceptable,
			Body:   "text/plain; charset=utf-8\n",
		},
	}

	for _, testCase := range testCases {
		t.Run("will write a "+testCase.Name+" response", func(t *testing.T) {
			w := httptest.NewRecorder()

			err := testCase.Send(context.Background(), w)
			if !assert.Nil(t, err) {
				return
			}

			resp := w.Result()
			if !assert.Equal(t, testCase.Status, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, negotiate.Identity, resp.Header.Get("Content-Encoding")) {
				return
			}
			for k, v := range testCase.Header {
				if !assert.Equal(t, v, resp.Header.Get(k), k) {
					return
				}
			}
			if !assert.Equal(t, testCase.Body, w.Body.String()) {
				return
			}
		})
	}
}

func TestResponder_UnprocessableEntity(t *testing.T) {
	t.Run("will write the error and its path as json", func(t *testing.T) {
		t.Run("if the body failed validation", func(t *testing.T) {
			w := httptest.NewRecorder()

			err := New().UnprocessableEntity(context.Background(), w, negotiate.Identity, ValidationError{
				Error:     "missing required key",
				ErrorPath: []string{"name"},
			})
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, http.StatusUnprocessableEntity, w.Code) {
				return
			}
			if !assert.Equal(t, JSON, w.Header().Get("Content-Type")) {
				return
			}

			var body ValidationError
			err = json.Unmarshal(w.Body.Bytes(), &body)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, []string{"name"}, body.ErrorPath) {
				return
			}
		})

		t.Run("if the error path is empty", func(t *testing.T) {
			w := httptest.NewRecorder()

			err := New().UnprocessableEntity(context.Background(), w, negotiate.Identity, ValidationError{
				Error: "expected object",
			})
			if !assert.Nil(t, err) {
				return
			}
			if !assert.JSONEq(t, `{"error":"expected object","errorPath":[]}`, w.Body.String()) {
				return
			}
		})
	})
}
