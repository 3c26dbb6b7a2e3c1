// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package orchestrator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/z5labs/stencil/cancel"
	"github.com/z5labs/stencil/respond"
	"github.com/z5labs/stencil/route"
)

var errBroken = errors.New("broken")

type recorded struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *recorded) Record(_ context.Context, out Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, out)
}

func newTestRouter(t *testing.T, started chan<- struct{}) *route.Router {
	r, err := route.NewRouter(route.Group{
		Prefix: "/test",
		Routes: []route.Route{
			{
				Methods: []string{http.MethodGet},
				Path:    "/ok",
				Handler: route.Simple(func(ctx context.Context, args *route.Args) error {
					args.Response.WriteHeader(http.StatusOK)
					_, err := io.WriteString(args.Response, "ok")
					return err
				}),
			},
			{
				Methods: []string{http.MethodGet},
				Path:    "/broken",
				Handler: route.Simple(func(ctx context.Context, args *route.Args) error {
					return errBroken
				}),
			},
			{
				Methods: []string{http.MethodGet},
				Path:    "/panic",
				Handler: route.Simple(func(ctx context.Context, args *route.Args) error {
					panic("oops")
				}),
			},
			{
				Methods: []string{http.MethodGet},
				Path:    "/write-timeout",
				Handler: route.Simple(func(ctx context.Context, args *route.Args) error {
					args.Response.WriteHeader(http.StatusOK)
					return cancel.ErrWriteTimeout
				}),
			},
			{
				Methods: []string{http.MethodGet},
				Path:    "/content-timeout",
				Handler: route.Simple(func(ctx context.Context, args *route.Args) error {
					args.Response.WriteHeader(http.StatusOK)
					return cancel.ErrContentTimeout
				}),
			},
			{
				Methods: []string{http.MethodGet},
				Path:    "/block",
				Handler: route.Simple(func(ctx context.Context, args *route.Args) error {
					started <- struct{}{}
					<-ctx.Done()
					return context.Cause(ctx)
				}),
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func decodeLogs(t *testing.T, buf *bytes.Buffer) []map[string]any {
	var records []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		err := json.Unmarshal(sc.Bytes(), &m)
		if err != nil {
			t.Fatal(err)
		}
		records = append(records, m)
	}
	return records
}

func TestOrchestrator_Orchestrate(t *testing.T) {
	testCases := []struct {
		Name   string
		Path   string
		Method string
		Status int
		Kind   string
		Err    error
		Level  string
	}{
		{Name: "resolve if the handler succeeds", Method: http.MethodGet, Path: "/test/ok", Status: http.StatusOK, Kind: "ok", Level: "INFO"},
		{Name: "resolve if the handler hits a write timeout", Method: http.MethodGet, Path: "/test/write-timeout", Status: http.StatusOK, Kind: "write timeout", Level: "WARN"},
		{Name: "reject if the handler hits a content timeout", Method: http.MethodGet, Path: "/test/content-timeout", Status: http.StatusOK, Kind: "content timeout", Err: cancel.ErrContentTimeout, Level: "WARN"},
		{Name: "reject if the handler fails", Method: http.MethodGet, Path: "/test/broken", Status: http.StatusInternalServerError, Kind: "error", Err: errBroken, Level: "ERROR"},
		{Name: "resolve if no route matches", Method: http.MethodGet, Path: "/test/nope", Status: http.StatusNotFound, Kind: "ok", Level: "INFO"},
		{Name: "resolve if the method is not registered", Method: http.MethodPost, Path: "/test/ok", Status: http.StatusMethodNotAllowed, Kind: "ok", Level: "INFO"},
	}

	for _, testCase := range testCases {
		t.Run("will "+testCase.Name, func(t *testing.T) {
			var buf bytes.Buffer
			rec := &recorded{}
			o := New(
				newTestRouter(t, nil),
				LogHandler(slog.NewJSONHandler(&buf, nil)),
				WithRecorder(rec),
			)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(testCase.Method, testCase.Path, nil)

			_, err := o.Orchestrate(context.Background(), w, req).Wait()
			if testCase.Err == nil {
				if !assert.Nil(t, err) {
					return
				}
			} else if !assert.ErrorIs(t, err, testCase.Err) {
				return
			}

			if !assert.Equal(t, testCase.Status, w.Code) {
				return
			}
			if !assert.NotEmpty(t, w.Header().Get(RequestIDHeader)) {
				return
			}
			if !assert.Equal(t, respond.Vary, w.Header().Get("Vary")) {
				return
			}

			records := decodeLogs(t, &buf)
			if !assert.Len(t, records, 1) {
				return
			}
			record := records[0]
			if !assert.Equal(t, testCase.Level, record["level"]) {
				return
			}
			if !assert.Equal(t, testCase.Method, record["http.method"]) {
				return
			}
			if !assert.Equal(t, testCase.Path, record["http.path"]) {
				return
			}
			if !assert.Equal(t, float64(testCase.Status), record["http.status"]) {
				return
			}
			if !assert.Equal(t, testCase.Kind, record["outcome"]) {
				return
			}
			if !assert.Contains(t, record, "elapsed") {
				return
			}

			if !assert.Len(t, rec.outcomes, 1) {
				return
			}
			if !assert.Equal(t, testCase.Kind, rec.outcomes[0].Kind) {
				return
			}
		})
	}

	t.Run("will set the Allow header", func(t *testing.T) {
		t.Run("if the path is registered for other methods", func(t *testing.T) {
			o := New(newTestRouter(t, nil))

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodDelete, "/test/ok", nil)

			_, err := o.Orchestrate(context.Background(), w, req).Wait()
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "GET", w.Header().Get("Allow")) {
				return
			}
		})
	})

	t.Run("will reject with a PanicError", func(t *testing.T) {
		t.Run("if the handler panics", func(t *testing.T) {
			o := New(newTestRouter(t, nil))

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test/panic", nil)

			_, err := o.Orchestrate(context.Background(), w, req).Wait()
			if !assert.Error(t, err) {
				return
			}
			if !assert.Equal(t, http.StatusInternalServerError, w.Code) {
				return
			}
		})
	})

	t.Run("will reject with ErrCanceled", func(t *testing.T) {
		t.Run("if the orchestrator is canceled before the handler settles", func(t *testing.T) {
			var buf bytes.Buffer
			started := make(chan struct{}, 1)
			o := New(newTestRouter(t, started), LogHandler(slog.NewJSONHandler(&buf, nil)))

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test/block", nil)

			op := o.Orchestrate(context.Background(), w, req)
			<-started
			op.Cancel()

			_, err := op.Wait()
			if !assert.ErrorIs(t, err, cancel.ErrCanceled) {
				return
			}
			if !assert.Equal(t, http.StatusServiceUnavailable, w.Code) {
				return
			}

			records := decodeLogs(t, &buf)
			if !assert.Len(t, records, 1) {
				return
			}
			if !assert.Equal(t, "canceled", records[0]["outcome"]) {
				return
			}
		})

		t.Run("if the client goes away", func(t *testing.T) {
			started := make(chan struct{}, 1)
			o := New(newTestRouter(t, started))

			ctx, disconnect := context.WithCancel(context.Background())
			defer disconnect()

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test/block", nil).WithContext(ctx)

			op := o.Orchestrate(context.Background(), w, req)
			<-started
			disconnect()

			_, err := op.Wait()
			if !assert.ErrorIs(t, err, cancel.ErrCanceled) {
				return
			}
		})
	})
}
