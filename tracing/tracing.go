// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package tracing builds the OpenTelemetry tracer provider selected by
// configuration.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	texporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"go.opentelemetry.io/contrib/detectors/gcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Exporter names where spans are sent.
type Exporter string

const (
	None   Exporter = "none"
	Stdout Exporter = "stdout"
	OTLP   Exporter = "otlp"

	// GCP exports directly to Cloud Trace.
	GCP Exporter = "gcp"
)

// Config selects and configures the exporter.
type Config struct {
	Exporter    Exporter `config:"exporter"`
	Target      string   `config:"target"`
	ServiceName string   `config:"serviceName"`
	SampleRatio float64  `config:"sampleRatio"`

	// ProjectID is the Google Cloud project spans are exported to by the
	// [GCP] exporter.
	ProjectID string `config:"projectId"`
}

// UnknownExporterError is returned for an exporter name which is not one
// of the Exporter constants.
type UnknownExporterError struct {
	Exporter Exporter
}

// Error implements the [builtin.error] interface.
func (e UnknownExporterError) Error() string {
	return fmt.Sprintf("unknown trace exporter: %q", e.Exporter)
}

type options struct {
	out        io.Writer
	gcpOptions []option.ClientOption
}

// Option configures [NewProvider].
type Option func(*options)

// Writer sets where the stdout exporter writes spans.
func Writer(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// GCPClientOptions are passed to the Cloud Trace client, after the ones
// set by default.
func GCPClientOptions(opts ...option.ClientOption) Option {
	return func(o *options) {
		o.gcpOptions = append(o.gcpOptions, opts...)
	}
}

// Provider owns a tracer provider and whatever must be released with it.
type Provider struct {
	tp       trace.TracerProvider
	shutdown []func(context.Context) error
}

// NewProvider returns the Provider for cfg. An empty exporter is treated
// as [None].
func NewProvider(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	o := &options{out: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	switch cfg.Exporter {
	case None, "":
		return &Provider{tp: noop.NewTracerProvider()}, nil
	case Stdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(o.out))
		if err != nil {
			return nil, err
		}
		return newSDKProvider(ctx, cfg, exp)
	case GCP:
		clientOpts := append([]option.ClientOption{option.WithTelemetryDisabled()}, o.gcpOptions...)
		exp, err := texporter.New(
			texporter.WithProjectID(cfg.ProjectID),
			texporter.WithTraceClientOptions(clientOpts),
		)
		if err != nil {
			return nil, err
		}
		return newSDKProvider(ctx, cfg, exp, resource.WithDetectors(gcp.NewDetector()))
	case OTLP:
		// TLS to the collector is not supported yet
		conn, err := grpc.NewClient(cfg.Target, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, err
		}
		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, errors.Join(err, conn.Close())
		}
		p, err := newSDKProvider(ctx, cfg, exp)
		if err != nil {
			return nil, errors.Join(err, conn.Close())
		}
		p.shutdown = append(p.shutdown, func(context.Context) error {
			return conn.Close()
		})
		return p, nil
	default:
		return nil, UnknownExporterError{Exporter: cfg.Exporter}
	}
}

func newSDKProvider(ctx context.Context, cfg Config, exp sdktrace.SpanExporter, resOpts ...resource.Option) (*Provider, error) {
	resOpts = append(
		resOpts,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	res, err := resource.New(ctx, resOpts...)
	// detectors built against another semconv version still produce usable
	// attributes, only without a schema url
	if err != nil && !errors.Is(err, resource.ErrSchemaURLConflict) {
		return nil, err
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exp)),
	)
	return &Provider{
		tp:       tp,
		shutdown: []func(context.Context) error{tp.Shutdown},
	}, nil
}

// TracerProvider returns the underlying [trace.TracerProvider].
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.tp
}

// Install registers the provider and the W3C trace context propagator as
// the otel globals.
func (p *Provider) Install() {
	otel.SetTracerProvider(p.tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Shutdown flushes pending spans and releases the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	errs := make([]error, len(p.shutdown))
	for i, shutdown := range p.shutdown {
		errs[i] = shutdown(ctx)
	}
	return errors.Join(errs...)
}
