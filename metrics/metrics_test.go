// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/z5labs/stencil/orchestrator"
	"github.com/z5labs/stencil/route"
)

func TestCollector_Record(t *testing.T) {
	t.Run("will count requests by outcome", func(t *testing.T) {
		t.Run("if several requests are recorded", func(t *testing.T) {
			c := New()

			ok := orchestrator.Outcome{Method: http.MethodPost, Route: "/templates/sample", Status: 200, Kind: "ok", Elapsed: time.Millisecond}
			c.Record(context.Background(), ok)
			c.Record(context.Background(), ok)
			c.Record(context.Background(), orchestrator.Outcome{Method: http.MethodPost, Route: "/templates/sample", Kind: "write timeout"})

			if !assert.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues(http.MethodPost, "/templates/sample", "ok"))) {
				return
			}
			if !assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues(http.MethodPost, "/templates/sample", "write timeout"))) {
				return
			}
		})
	})

	t.Run("will label unmatched requests", func(t *testing.T) {
		t.Run("if no route matched", func(t *testing.T) {
			c := New()

			c.Record(context.Background(), orchestrator.Outcome{Method: http.MethodGet, Status: 404, Kind: "ok"})

			if !assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues(http.MethodGet, unmatched, "ok"))) {
				return
			}
		})
	})
}

func TestCollector_Handler(t *testing.T) {
	t.Run("will expose the collected metrics", func(t *testing.T) {
		t.Run("if a request was recorded", func(t *testing.T) {
			c := New(InFlight(func() int { return 3 }))
			c.Record(context.Background(), orchestrator.Outcome{Method: http.MethodGet, Route: "/management/hello_world", Status: 200, Kind: "ok"})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/management/metrics", nil)
			_, err := c.Handler().Handle(context.Background(), &route.Args{
				Response: w,
				Request:  r,
				State:    &route.State{},
			}).Wait()
			if !assert.Nil(t, err) {
				return
			}

			body := w.Body.String()
			if !assert.Contains(t, body, `stencil_requests_total{method="GET",outcome="ok",route="/management/hello_world"} 1`) {
				return
			}
			if !assert.Contains(t, body, "stencil_requests_in_flight 3") {
				return
			}
			if !assert.Contains(t, body, "stencil_request_duration_seconds_bucket") {
				return
			}
		})
	})
}
