// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package service wires every component of the template rendering
// service into a single [stencil.App].
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/z5labs/stencil"
	"github.com/z5labs/stencil/app"
	"github.com/z5labs/stencil/auth"
	"github.com/z5labs/stencil/health"
	"github.com/z5labs/stencil/management"
	"github.com/z5labs/stencil/maskslog"
	"github.com/z5labs/stencil/metrics"
	"github.com/z5labs/stencil/notify"
	"github.com/z5labs/stencil/openapi"
	"github.com/z5labs/stencil/orchestrator"
	"github.com/z5labs/stencil/otelslog"
	"github.com/z5labs/stencil/respond"
	"github.com/z5labs/stencil/route"
	"github.com/z5labs/stencil/server"
	"github.com/z5labs/stencil/slogfield"
	"github.com/z5labs/stencil/static"
	"github.com/z5labs/stencil/stream"
	"github.com/z5labs/stencil/templates"
	"github.com/z5labs/stencil/tracing"
)

// Version is reported in the OpenAPI document.
var Version = "0.0.0"

// ErrMissingSecret is returned when no token signing secret is configured.
var ErrMissingSecret = errors.New("auth.secret must be set")

// DocsPath is where the OpenAPI document is served.
const DocsPath = "/openapi.json"

type options struct {
	logOutput io.Writer
	hostname  func() (string, error)
}

// Option configures [Build].
type Option func(*options)

// LogOutput sets where JSON logs are written.
func LogOutput(w io.Writer) Option {
	return func(o *options) {
		o.logOutput = w
	}
}

// NewLogHandler returns the root handler: JSON records with trace ids
// attached and secrets masked.
func NewLogHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return otelslog.NewHandler(
		maskslog.NewHandler(
			slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}),
			maskslog.Keys("authorization", "jwt_secret", "webhook_url"),
		),
	)
}

// Build assembles the service described by cfg.
func Build(ctx context.Context, cfg Config, opts ...Option) (stencil.App, error) {
	o := &options{
		logOutput: os.Stderr,
		hostname:  os.Hostname,
	}
	for _, opt := range opts {
		opt(o)
	}

	logHandler := NewLogHandler(o.logOutput, cfg.Log.Level)
	log := slog.New(logHandler)

	if cfg.Auth.Secret == "" {
		return nil, ErrMissingSecret
	}
	verifier := auth.NewVerifier([]byte(cfg.Auth.Secret), cfg.Auth.Issuer, cfg.Auth.Audience)

	provider, err := tracing.NewProvider(ctx, cfg.OTel)
	if err != nil {
		return nil, err
	}
	provider.Install()

	responder := respond.New(
		stream.ContentTimeout(cfg.HTTP.ContentTimeout),
		stream.WriteTimeout(cfg.HTTP.WriteTimeout),
		stream.FinalizeTimeout(cfg.HTTP.FinalizeTimeout),
		stream.LogHandler(logHandler),
	)

	cacheDir := cfg.Static.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "stencil")
	}
	err = os.MkdirAll(cacheDir, 0o755)
	if err != nil {
		return nil, err
	}

	docsFile := filepath.Join(cacheDir, "openapi.json")
	docs := static.New(
		docsFile,
		static.ContentType("application/json; charset=utf-8"),
		static.CacheDir(cacheDir),
		static.RetryAfter(cfg.Static.RetryAfter),
		static.Responder(responder),
		static.LogHandler(logHandler),
	)

	var (
		listening health.Binary
		srv       *server.Server
	)
	collector := metrics.New(
		metrics.RuntimeCollectors(),
		metrics.InFlight(func() int {
			return srv.InFlight()
		}),
	)

	router, err := route.NewRouter(
		templates.Group(
			templates.All(),
			verifier,
			templates.Responder(responder),
			templates.ReadTimeout(cfg.HTTP.ReadTimeout),
			templates.MaxBodyBytes(cfg.HTTP.MaxBodyBytes),
			templates.LogHandler(logHandler),
		),
		management.Group(
			health.And(&listening, docs),
			collector,
			management.Responder(responder),
			management.RetryAfter(cfg.Static.RetryAfter),
		),
		route.Group{
			Routes: []route.Route{
				{Methods: []string{http.MethodGet}, Path: DocsPath, Handler: docs},
			},
		},
	)
	if err != nil {
		return nil, err
	}

	spec, err := openapi.Build(
		router.Routes(),
		openapi.Title("stencil"),
		openapi.Version(Version),
		openapi.Description("Renders templates into negotiated, compressed response bodies."),
		openapi.BearerSecurity(templates.SecurityScheme),
	)
	if err != nil {
		return nil, err
	}
	err = openapi.WriteFile(docsFile, spec)
	if err != nil {
		return nil, err
	}

	notifier := notify.New(
		cfg.Notify.WebhookURL,
		notify.Channel(cfg.Notify.Channel),
		notify.LogHandler(logHandler),
		notify.HTTPClient(notify.NewHTTPClient(
			notify.Name("notify"),
			notify.Timeout(cfg.Notify.Timeout),
			notify.MaxRetries(cfg.Notify.MaxRetries),
			notify.TripAfter(5),
			notify.ClientLogHandler(logHandler),
		)),
	)

	serverOpts := []server.Option{
		server.Addr(cfg.HTTP.Host, cfg.HTTP.Port),
		server.ReadHeaderTimeout(cfg.HTTP.ReadHeaderTimeout),
		server.DrainTimeout(cfg.HTTP.DrainTimeout),
		server.LogHandler(logHandler),
		server.OnReady(func(ctx context.Context, addr net.Addr) {
			listening.Set(true)

			hostname, err := o.hostname()
			if err != nil {
				log.WarnContext(ctx, "failed to resolve hostname", slogfield.Error(err))
				hostname = addr.String()
			}
			notifier.Ready(ctx, hostname)
		}),
	}
	if cfg.HTTP.TLS.CertFile != "" || cfg.HTTP.TLS.KeyFile != "" {
		serverOpts = append(serverOpts, server.TLS(cfg.HTTP.TLS.CertFile, cfg.HTTP.TLS.KeyFile))
	}

	orch := orchestrator.New(
		router,
		orchestrator.LogHandler(logHandler),
		orchestrator.Responder(responder),
		orchestrator.WithRecorder(collector),
	)
	srv = server.New(orch, serverOpts...)

	run := app.Concurrently(srv, app.Func(docs.Watch))
	return app.Recover(app.WithLifecycleHooks(run, app.Lifecycle{
		PreRun: app.LifecycleHookFunc(docs.Prepare),
		PostRun: app.LifecycleHookFunc(func(ctx context.Context) error {
			listening.Set(false)
			return provider.Shutdown(ctx)
		}),
	})), nil
}
