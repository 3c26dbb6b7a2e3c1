// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package management groups the operational endpoints under /management.
package management

import (
	"context"
	"net/http"
	"time"

	"github.com/swaggest/openapi-go/openapi3"
	"github.com/z5labs/stencil/health"
	"github.com/z5labs/stencil/metrics"
	"github.com/z5labs/stencil/negotiate"
	"github.com/z5labs/stencil/respond"
	"github.com/z5labs/stencil/route"
)

// Prefix is where every management route is mounted.
const Prefix = "/management"

const helloWorld = "Hello, world!\n"

// Options configure the management [route.Group].
type Options struct {
	responder  *respond.Responder
	retryAfter time.Duration
}

// Option sets a value on [Options].
type Option func(*Options)

// Responder sets the [respond.Responder] every response is written with.
func Responder(r *respond.Responder) Option {
	return func(o *Options) {
		o.responder = r
	}
}

// RetryAfter is sent with 503 responses from the health route.
func RetryAfter(d time.Duration) Option {
	return func(o *Options) {
		o.retryAfter = d
	}
}

// Group returns the hello_world, health and metrics routes.
func Group(ready health.Metric, collector *metrics.Collector, opts ...Option) route.Group {
	o := &Options{
		responder:  respond.New(),
		retryAfter: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}

	return route.Group{
		Prefix: Prefix,
		Routes: []route.Route{
			{
				Methods:   []string{http.MethodGet},
				Path:      "/hello_world",
				Handler:   helloWorldHandler(o.responder),
				Operation: operation("management-hello-world", "Responds with a fixed greeting", "text/plain"),
			},
			{
				Methods:   []string{http.MethodGet},
				Path:      "/health",
				Handler:   health.Handler(ready, o.responder, o.retryAfter),
				Operation: operation("management-health", "Reports whether the service is ready", ""),
			},
			{
				Methods:   []string{http.MethodGet},
				Path:      "/metrics",
				Handler:   collector.Handler(),
				Operation: operation("management-metrics", "Prometheus metrics in the text exposition format", "text/plain"),
			},
		},
	}
}

func helloWorldHandler(responder *respond.Responder) route.Handler {
	return route.Simple(func(ctx context.Context, args *route.Args) error {
		coding, ok := negotiate.Encoding(args.Request.Header.Values("Accept-Encoding"))
		if !ok {
			return responder.UnsupportedEncoding(ctx, args.Response)
		}
		return responder.Text(ctx, args.Response, http.StatusOK, coding.Identifier, helloWorld)
	})
}

func operation(id, summary, contentType string) *openapi3.Operation {
	op := &openapi3.Operation{
		Tags: []string{"management"},
	}
	op.WithID(id)
	op.WithSummary(summary)

	ok := openapi3.Response{Description: "OK"}
	if contentType != "" {
		ok.Content = map[string]openapi3.MediaType{
			contentType: {Schema: &openapi3.SchemaOrRef{Schema: new(openapi3.Schema).WithType(openapi3.SchemaTypeString)}},
		}
	}
	op.Responses = openapi3.Responses{
		MapOfResponseOrRefValues: map[string]openapi3.ResponseOrRef{
			"200": {Response: &ok},
		},
	}
	return op
}
