// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package metrics exposes request outcomes in the Prometheus format.
package metrics

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/z5labs/stencil/orchestrator"
	"github.com/z5labs/stencil/route"
)

const namespace = "stencil"

// unmatched labels requests no route matched, keeping label cardinality
// bounded by the number of registered routes.
const unmatched = "unmatched"

// Collector records every request outcome. It implements [orchestrator.Recorder].
type Collector struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// Options configure a [Collector].
type Options struct {
	buckets  []float64
	inFlight func() float64
	runtime  bool
}

// Option sets a value on [Options].
type Option func(*Options)

// Buckets overrides the request duration histogram buckets, in seconds.
func Buckets(b ...float64) Option {
	return func(o *Options) {
		o.buckets = b
	}
}

// InFlight exports the number of requests currently being served, as
// reported by f.
func InFlight(f func() int) Option {
	return func(o *Options) {
		o.inFlight = func() float64 {
			return float64(f())
		}
	}
}

// RuntimeCollectors exports the Go runtime and process metrics too.
func RuntimeCollectors() Option {
	return func(o *Options) {
		o.runtime = true
	}
}

// New returns a Collector registered with its own registry.
func New(opts ...Option) *Collector {
	o := &Options{
		buckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(o)
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests served, by method, route and outcome.",
		}, []string{"method", "route", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from receiving a request until its outcome was decided.",
			Buckets:   o.buckets,
		}, []string{"method", "route", "status"}),
	}
	c.registry.MustRegister(c.requests, c.duration)

	if o.inFlight != nil {
		c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Requests currently being served.",
		}, o.inFlight))
	}
	if o.runtime {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// Record implements the [orchestrator.Recorder] interface.
func (c *Collector) Record(_ context.Context, out orchestrator.Outcome) {
	rt := out.Route
	if rt == "" {
		rt = unmatched
	}
	c.requests.WithLabelValues(out.Method, rt, out.Kind).Inc()
	c.duration.WithLabelValues(out.Method, rt, strconv.Itoa(out.Status)).Observe(out.Elapsed.Seconds())
}

// Gatherer returns the registry metrics are collected in.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

// Handler serves the Prometheus exposition of everything collected.
func (c *Collector) Handler() route.Handler {
	return route.FromHTTP(promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
}
