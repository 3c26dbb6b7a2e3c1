// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/z5labs/stencil/respond"
	"github.com/z5labs/stencil/route"
)

func TestBinary_Toggle(t *testing.T) {
	t.Run("will make it healthy", func(t *testing.T) {
		t.Run("if the current state is the zero value", func(t *testing.T) {
			var m Binary
			m.Toggle()
			assert.True(t, m.Healthy(context.Background()))
		})
	})

	t.Run("will make it unhealthy", func(t *testing.T) {
		t.Run("if the current state is healthy", func(t *testing.T) {
			var m Binary
			m.Set(true)
			m.Toggle()
			assert.False(t, m.Healthy(context.Background()))
		})
	})
}

type healthyMetric bool

func (m healthyMetric) Healthy(_ context.Context) bool {
	return bool(m)
}

func TestAndMetric_Healthy(t *testing.T) {
	testCases := []struct {
		Name    string
		Metrics []Metric
		Healthy bool
	}{
		{Name: "if there is a single healthy metric", Metrics: []Metric{healthyMetric(true)}, Healthy: true},
		{Name: "if all metrics are healthy", Metrics: []Metric{healthyMetric(true), healthyMetric(true)}, Healthy: true},
		{Name: "if there are no metrics", Healthy: true},
		{Name: "if one of the metrics is unhealthy", Metrics: []Metric{healthyMetric(true), healthyMetric(false)}},
		{Name: "if all metrics are unhealthy", Metrics: []Metric{healthyMetric(false), healthyMetric(false)}},
	}

	for _, testCase := range testCases {
		t.Run("will and the metrics together", func(t *testing.T) {
			t.Run(testCase.Name, func(t *testing.T) {
				m := And(testCase.Metrics...)
				assert.Equal(t, testCase.Healthy, m.Healthy(context.Background()))
			})
		})
	}
}

func TestOrMetric_Healthy(t *testing.T) {
	testCases := []struct {
		Name    string
		Metrics []Metric
		Healthy bool
	}{
		{Name: "if one of the metrics is healthy", Metrics: []Metric{healthyMetric(false), healthyMetric(true)}, Healthy: true},
		{Name: "if all metrics are unhealthy", Metrics: []Metric{healthyMetric(false), healthyMetric(false)}},
		{Name: "if there are no metrics"},
	}

	for _, testCase := range testCases {
		t.Run("will or the metrics together", func(t *testing.T) {
			t.Run(testCase.Name, func(t *testing.T) {
				m := Or(testCase.Metrics...)
				assert.Equal(t, testCase.Healthy, m.Healthy(context.Background()))
			})
		})
	}
}

func TestNotMetric_Healthy(t *testing.T) {
	t.Run("will negate the metric", func(t *testing.T) {
		t.Run("if it is healthy", func(t *testing.T) {
			assert.False(t, Not(healthyMetric(true)).Healthy(context.Background()))
		})
	})
}

func TestHandler(t *testing.T) {
	serve := func(m Metric) *http.Response {
		h := Handler(m, respond.New(), 30*time.Second)
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/management/health", nil)

		_, err := h.Handle(context.Background(), &route.Args{
			Response: w,
			Request:  r,
			State:    &route.State{},
		}).Wait()
		if err != nil {
			t.Fatal(err)
		}
		return w.Result()
	}

	t.Run("will return 200", func(t *testing.T) {
		t.Run("if the metric is healthy", func(t *testing.T) {
			resp := serve(healthyMetric(true))
			if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
				return
			}
		})
	})

	t.Run("will return 503", func(t *testing.T) {
		t.Run("if the metric is unhealthy", func(t *testing.T) {
			resp := serve(healthyMetric(false))
			if !assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, "30", resp.Header.Get("Retry-After")) {
				return
			}
		})
	})
}
