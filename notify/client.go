// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package notify

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
	"github.com/z5labs/stencil/slogfield"
)

type circuitOptions struct {
	maxRequests uint32
	interval    time.Duration
	timeout     time.Duration
	tripCount   uint32
	statusCodes []int
}

type retryOptions struct {
	maxRetries int
	waitMin    time.Duration
	waitMax    time.Duration
}

type clientOptions struct {
	timeout    time.Duration
	rt         http.RoundTripper
	name       string
	logHandler slog.Handler

	co *circuitOptions
	ro *retryOptions
}

// ClientOption configures the [http.Client] built by [NewHTTPClient].
type ClientOption func(*clientOptions)

func withCircuitOption(f func(*circuitOptions)) ClientOption {
	return func(o *clientOptions) {
		if o.co == nil {
			o.co = &circuitOptions{tripCount: 5}
		}
		f(o.co)
	}
}

func withRetryOption(f func(*retryOptions)) ClientOption {
	return func(o *clientOptions) {
		if o.ro == nil {
			o.ro = &retryOptions{
				maxRetries: 3,
				waitMin:    100 * time.Millisecond,
				waitMax:    2 * time.Second,
			}
		}
		f(o.ro)
	}
}

// HalfOpenRequests is how many requests are let through while the
// circuit is half open.
func HalfOpenRequests(n uint32) ClientOption {
	return withCircuitOption(func(co *circuitOptions) {
		co.maxRequests = n
	})
}

// OpenStateTimeout is how long the circuit stays open before letting a
// request through again.
func OpenStateTimeout(d time.Duration) ClientOption {
	return withCircuitOption(func(co *circuitOptions) {
		co.timeout = d
	})
}

// CountResetInterval clears the failure counts periodically while closed.
func CountResetInterval(d time.Duration) ClientOption {
	return withCircuitOption(func(co *circuitOptions) {
		co.interval = d
	})
}

// TripAfter opens the circuit after n consecutive failures.
func TripAfter(n uint32) ClientOption {
	return withCircuitOption(func(co *circuitOptions) {
		co.tripCount = n
	})
}

// TripOn sets the response status codes counted as failures by the
// circuit breaker, in addition to transport errors.
func TripOn(codes ...int) ClientOption {
	return withCircuitOption(func(co *circuitOptions) {
		co.statusCodes = codes
	})
}

// MaxRetries retries failed requests up to n times.
func MaxRetries(n int) ClientOption {
	return withRetryOption(func(ro *retryOptions) {
		ro.maxRetries = n
	})
}

// RetryWait bounds the backoff between retries.
func RetryWait(min, max time.Duration) ClientOption {
	return withRetryOption(func(ro *retryOptions) {
		ro.waitMin = min
		ro.waitMax = max
	})
}

// Name is used to tell clients apart in logs.
func Name(s string) ClientOption {
	return func(o *clientOptions) {
		o.name = s
	}
}

// RoundTripper sets the transport requests are finally sent with.
func RoundTripper(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) {
		o.rt = rt
	}
}

// Timeout bounds every attempt, including reading the response body.
func Timeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// ClientLogHandler sets the [slog.Handler] requests are logged with.
func ClientLogHandler(h slog.Handler) ClientOption {
	return func(o *clientOptions) {
		o.logHandler = h
	}
}

// NewHTTPClient returns an [http.Client] which logs every request and,
// when configured, retries with backoff and trips a circuit breaker on
// repeated failures. The breaker sits beneath the retries, so retries are
// refused quickly while the circuit is open.
func NewHTTPClient(opts ...ClientOption) *http.Client {
	o := &clientOptions{
		rt:         http.DefaultTransport,
		logHandler: slog.DiscardHandler,
	}
	for _, opt := range opts {
		opt(o)
	}

	logger := slog.New(o.logHandler)
	if o.name != "" {
		logger = logger.With(slogfield.String("http_client", o.name))
	}

	var rt http.RoundTripper = &logRoundTripper{
		base: o.rt,
		log:  logger,
	}

	if o.co != nil {
		co := o.co
		codes := co.statusCodes
		if len(codes) == 0 {
			codes = []int{
				http.StatusTooManyRequests,     // 429
				http.StatusInternalServerError, // 500
				http.StatusBadGateway,          // 502
				http.StatusServiceUnavailable,  // 503
				http.StatusGatewayTimeout,      // 504
			}
		}

		rt = &circuitRoundTripper{
			base: rt,
			cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:        o.name,
				MaxRequests: co.maxRequests,
				Interval:    co.interval,
				Timeout:     co.timeout,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= co.tripCount
				},
				OnStateChange: func(name string, from, to gobreaker.State) {
					switch to {
					case gobreaker.StateOpen:
						logger.Error("circuit has been opened")
					case gobreaker.StateHalfOpen:
						logger.Warn(
							"circuit is now half open and letting some requests through",
							slogfield.Int64("max_requests_allowed_through", int64(co.maxRequests)),
						)
					case gobreaker.StateClosed:
						logger.Info("circuit has been closed")
					}
				},
			}),
			failed: func(code int) bool {
				return slices.Contains(codes, code)
			},
		}
	}
	if o.ro == nil {
		return &http.Client{
			Timeout:   o.timeout,
			Transport: rt,
		}
	}

	ro := o.ro
	rc := retryablehttp.Client{
		HTTPClient: &http.Client{
			Timeout:   o.timeout,
			Transport: rt,
		},
		Logger:       nil,
		RetryWaitMin: ro.waitMin,
		RetryWaitMax: ro.waitMax,
		RetryMax:     ro.maxRetries,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}
	return rc.StandardClient()
}

type logRoundTripper struct {
	base http.RoundTripper
	log  *slog.Logger
}

func (rt *logRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()
	rt.log.DebugContext(ctx, "request sent", slogfield.String("url", req.URL.Redacted()))

	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		rt.log.WarnContext(ctx, "request failed", slogfield.String("url", req.URL.Redacted()), slogfield.Error(err))
		return nil, err
	}
	rt.log.DebugContext(
		ctx,
		"response received",
		slogfield.String("url", req.URL.Redacted()),
		slogfield.Status(resp.StatusCode),
		slogfield.Duration("latency", time.Since(start)),
	)
	return resp, nil
}

// statusCodeError lets a response through the breaker while still
// counting it as a failure.
type statusCodeError struct {
	resp *http.Response
}

func (e statusCodeError) Error() string {
	return "unsuccessful status code: " + e.resp.Status
}

type circuitRoundTripper struct {
	base   http.RoundTripper
	cb     *gobreaker.CircuitBreaker
	failed func(int) bool
}

func (rt *circuitRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	v, err := rt.cb.Execute(func() (interface{}, error) {
		resp, err := rt.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if rt.failed(resp.StatusCode) {
			return nil, statusCodeError{resp: resp}
		}
		return resp, nil
	})

	var sce statusCodeError
	if errors.As(err, &sce) {
		return sce.resp, nil
	}
	if err != nil {
		return nil, err
	}
	return v.(*http.Response), nil
}
