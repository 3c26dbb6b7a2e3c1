// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package health reports whether the service, or the parts it is made of,
// are ready to serve traffic.
package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/z5labs/stencil/respond"
	"github.com/z5labs/stencil/route"
)

// Metric represents anything that can report its health status.
type Metric interface {
	Healthy(context.Context) bool
}

// Binary represents a health.Metric that is either healthy or not.
// The zero value is unhealthy until [Binary.Set] says otherwise.
type Binary struct {
	healthy atomic.Bool
}

// Set records whether the underlying resource is healthy.
func (m *Binary) Set(healthy bool) {
	m.healthy.Store(healthy)
}

// Toggle flips the state of Binary.
func (m *Binary) Toggle() {
	for {
		cur := m.healthy.Load()
		if m.healthy.CompareAndSwap(cur, !cur) {
			return
		}
	}
}

// Healthy implements the [Metric] interface.
func (m *Binary) Healthy(ctx context.Context) bool {
	return m.healthy.Load()
}

// AndMetric represents multiple Metrics all and'd together.
type AndMetric struct {
	metrics []Metric
}

// And returns a Metric which is healthy only when every underlying
// Metric is healthy.
func And(metrics ...Metric) AndMetric {
	return AndMetric{
		metrics: metrics,
	}
}

// Healthy implements the [Metric] interface.
func (m AndMetric) Healthy(ctx context.Context) bool {
	for _, metric := range m.metrics {
		if !metric.Healthy(ctx) {
			return false
		}
	}
	return true
}

// OrMetric represents multiple Metrics all or'd together.
type OrMetric struct {
	metrics []Metric
}

// Or returns a Metric which is healthy when any underlying Metric is.
func Or(metrics ...Metric) OrMetric {
	return OrMetric{
		metrics: metrics,
	}
}

// Healthy implements the [Metric] interface.
func (m OrMetric) Healthy(ctx context.Context) bool {
	for _, metric := range m.metrics {
		if metric.Healthy(ctx) {
			return true
		}
	}
	return false
}

// NotMetric represents the negated value of the underlying Metric.
type NotMetric struct {
	metric Metric
}

// Not returns a Metric whose health is the opposite of metric.
func Not(metric Metric) NotMetric {
	return NotMetric{
		metric: metric,
	}
}

// Healthy implements the [Metric] interface.
func (m NotMetric) Healthy(ctx context.Context) bool {
	return !m.metric.Healthy(ctx)
}

// Handler answers 200 when m is healthy, otherwise 503 asking the client
// to retry after retryAfter.
func Handler(m Metric, responder *respond.Responder, retryAfter time.Duration) route.Handler {
	return route.Simple(func(ctx context.Context, args *route.Args) error {
		if m.Healthy(ctx) {
			return responder.Send(ctx, args.Response, respond.Response{
				Status: http.StatusOK,
			})
		}
		return responder.ServiceUnavailable(ctx, args.Response, retryAfter)
	})
}
