// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package server binds the listener, hands every request to the
// orchestrator and drains in-flight requests on shutdown.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/z5labs/stencil/cancel"
	"github.com/z5labs/stencil/orchestrator"
	"github.com/z5labs/stencil/slogfield"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

// ErrPartialTLS is returned when only one of the certificate and key
// files is configured.
var ErrPartialTLS = errors.New("tls requires both a certificate and a key file")

// ListenError is returned when the listener could not be bound.
type ListenError struct {
	Addr  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ListenError) Error() string {
	return fmt.Sprintf("failed to listen on %s: %s", e.Addr, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ListenError) Unwrap() error {
	return e.Cause
}

// TLSError is returned when the certificate and key could not be loaded.
type TLSError struct {
	CertFile string
	KeyFile  string
	Cause    error
}

// Error implements the [builtin.error] interface.
func (e TLSError) Error() string {
	return fmt.Sprintf("failed to load tls key pair (%s, %s): %s", e.CertFile, e.KeyFile, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e TLSError) Unwrap() error {
	return e.Cause
}

type options struct {
	host              string
	port              uint
	certFile          string
	keyFile           string
	readHeaderTimeout time.Duration
	drainTimeout      time.Duration
	logHandler        slog.Handler
	onReady           []func(context.Context, net.Addr)
}

// Option configures a [Server].
type Option func(*options)

// Addr sets the host and port to listen on. Port 0 picks a free port.
func Addr(host string, port uint) Option {
	return func(o *options) {
		o.host = host
		o.port = port
	}
}

// TLS serves https using the PEM encoded certificate and key files. Both
// must be given together.
func TLS(certFile, keyFile string) Option {
	return func(o *options) {
		o.certFile = certFile
		o.keyFile = keyFile
	}
}

// ReadHeaderTimeout bounds how long a client may take to send headers.
func ReadHeaderTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readHeaderTimeout = d
	}
}

// DrainTimeout bounds how long shutdown waits for in-flight requests once
// they have been canceled.
func DrainTimeout(d time.Duration) Option {
	return func(o *options) {
		o.drainTimeout = d
	}
}

// LogHandler sets the [slog.Handler] used by the server.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// OnReady registers f to be called, on its own goroutine, once the
// listener is bound.
func OnReady(f func(context.Context, net.Addr)) Option {
	return func(o *options) {
		o.onReady = append(o.onReady, f)
	}
}

// Server is the process wide HTTP server lifecycle.
type Server struct {
	orch   *orchestrator.Orchestrator
	opts   *options
	log    *slog.Logger
	listen func(network, addr string) (net.Listener, error)

	mu       sync.Mutex
	closing  bool
	nextID   uint64
	inFlight map[uint64]*cancel.Operation[struct{}]
}

// New returns a Server handing every request to orch.
func New(orch *orchestrator.Orchestrator, opts ...Option) *Server {
	o := &options{
		host:              "127.0.0.1",
		port:              2999,
		readHeaderTimeout: 5 * time.Second,
		drainTimeout:      10 * time.Second,
		logHandler:        slog.DiscardHandler,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Server{
		orch:     orch,
		opts:     o,
		log:      slog.New(o.logHandler),
		listen:   net.Listen,
		inFlight: make(map[uint64]*cancel.Operation[struct{}]),
	}
}

// Run serves until ctx is done, then stops accepting, cancels every
// in-flight request and waits at most the drain timeout for them.
func (s *Server) Run(ctx context.Context) error {
	ls, err := s.listener()
	if err != nil {
		s.log.ErrorContext(ctx, "failed to listen for connections", slogfield.Error(err))
		return err
	}

	httpServer := &http.Server{
		Handler:           otelhttp.NewHandler(s, "stencil"),
		ReadHeaderTimeout: s.opts.readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(s.opts.logHandler, slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown(httpServer)
	})
	g.Go(func() error {
		s.log.InfoContext(ctx, "listening", slogfield.String("addr", ls.Addr().String()))
		for _, f := range s.opts.onReady {
			go f(gctx, ls.Addr())
		}
		return httpServer.Serve(ls)
	})

	err = g.Wait()
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	s.log.ErrorContext(ctx, "server encountered unexpected error", slogfield.Error(err))
	return err
}

func (s *Server) listener() (net.Listener, error) {
	addr := net.JoinHostPort(s.opts.host, strconv.FormatUint(uint64(s.opts.port), 10))

	var cfg *tls.Config
	switch {
	case s.opts.certFile == "" && s.opts.keyFile == "":
	case s.opts.certFile == "" || s.opts.keyFile == "":
		return nil, ErrPartialTLS
	default:
		cert, err := tls.LoadX509KeyPair(s.opts.certFile, s.opts.keyFile)
		if err != nil {
			return nil, TLSError{CertFile: s.opts.certFile, KeyFile: s.opts.keyFile, Cause: err}
		}
		cfg = &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{"http/1.1"},
			MinVersion:   tls.VersionTLS12,
		}
	}

	ls, err := s.listen("tcp", addr)
	if err != nil {
		return nil, ListenError{Addr: addr, Cause: err}
	}
	if cfg != nil {
		ls = tls.NewListener(ls, cfg)
	}
	return ls, nil
}

func (s *Server) shutdown(httpServer *http.Server) error {
	s.log.Info("shutting down server", slogfield.Int("in_flight", s.InFlight()))
	defer s.log.Info("shut down server")

	ctx, cancelDrain := context.WithTimeout(context.Background(), s.opts.drainTimeout)
	defer cancelDrain()

	// Shutdown stops accepting immediately, then waits on handlers
	done := make(chan error, 1)
	go func() {
		done <- httpServer.Shutdown(ctx)
	}()

	s.cancelInFlight()

	err := <-done
	if errors.Is(err, context.DeadlineExceeded) {
		s.log.Warn("drain timed out, closing remaining connections", slogfield.Int("in_flight", s.InFlight()))
		return httpServer.Close()
	}
	return err
}

// ServeHTTP implements the [http.Handler] interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	op := s.orch.Orchestrate(context.WithoutCancel(r.Context()), w, r)

	id := s.track(op)
	defer s.untrack(id)

	// failures are logged by the orchestrator
	op.Wait()
}

func (s *Server) track(op *cancel.Operation[struct{}]) uint64 {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.inFlight[id] = op
	closing := s.closing
	s.mu.Unlock()

	if closing {
		op.Cancel()
	}
	return id
}

func (s *Server) untrack(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

func (s *Server) cancelInFlight() {
	s.mu.Lock()
	s.closing = true
	ops := make([]*cancel.Operation[struct{}], 0, len(s.inFlight))
	for _, op := range s.inFlight {
		ops = append(ops, op)
	}
	s.mu.Unlock()

	for _, op := range ops {
		op.Cancel()
	}
}

// InFlight returns the number of requests currently being served.
func (s *Server) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}
