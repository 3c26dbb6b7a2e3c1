// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/option"
)

func TestNewProvider(t *testing.T) {
	t.Run("will return a noop provider", func(t *testing.T) {
		t.Run("if no exporter is configured", func(t *testing.T) {
			p, err := NewProvider(context.Background(), Config{})
			if !assert.Nil(t, err) {
				return
			}

			_, span := p.TracerProvider().Tracer("test").Start(context.Background(), "noop")
			span.End()
			if !assert.False(t, span.SpanContext().IsValid()) {
				return
			}
			if !assert.Nil(t, p.Shutdown(context.Background())) {
				return
			}
		})
	})

	t.Run("will write spans", func(t *testing.T) {
		t.Run("if the stdout exporter is configured", func(t *testing.T) {
			var buf bytes.Buffer
			p, err := NewProvider(context.Background(), Config{
				Exporter:    Stdout,
				ServiceName: "stencil-test",
			}, Writer(&buf))
			if !assert.Nil(t, err) {
				return
			}

			_, span := p.TracerProvider().Tracer("test").Start(context.Background(), "render-sample")
			if !assert.True(t, span.SpanContext().IsValid()) {
				return
			}
			span.End()

			err = p.Shutdown(context.Background())
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Contains(t, buf.String(), "render-sample") {
				return
			}
			if !assert.Contains(t, buf.String(), "stencil-test") {
				return
			}
		})
	})

	t.Run("will build a provider without connecting", func(t *testing.T) {
		t.Run("if the otlp exporter is configured", func(t *testing.T) {
			p, err := NewProvider(context.Background(), Config{
				Exporter: OTLP,
				Target:   "localhost:4317",
			})
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Nil(t, p.Shutdown(context.Background())) {
				return
			}
		})
	})

	t.Run("will build a Cloud Trace provider", func(t *testing.T) {
		t.Run("if the gcp exporter is configured with a project", func(t *testing.T) {
			p, err := NewProvider(
				context.Background(),
				Config{
					Exporter:    GCP,
					ServiceName: "stencil-test",
					ProjectID:   "stencil-test-project",
				},
				GCPClientOptions(
					option.WithoutAuthentication(),
					option.WithEndpoint("localhost:4317"),
				),
			)
			if !assert.Nil(t, err) {
				return
			}

			_, span := p.TracerProvider().Tracer("test").Start(context.Background(), "render-sample")
			if !assert.True(t, span.SpanContext().IsValid()) {
				return
			}
			if !assert.Nil(t, p.Shutdown(context.Background())) {
				return
			}
		})
	})

	t.Run("will return an UnknownExporterError", func(t *testing.T) {
		t.Run("if the exporter is not supported", func(t *testing.T) {
			_, err := NewProvider(context.Background(), Config{Exporter: "zipkin"})

			var uee UnknownExporterError
			if !assert.ErrorAs(t, err, &uee) {
				return
			}
			if !assert.Equal(t, Exporter("zipkin"), uee.Exporter) {
				return
			}
		})
	})
}
