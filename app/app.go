// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app provides wrappers for common [stencil.App] patterns.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/z5labs/stencil"
	"github.com/z5labs/stencil/internal/try"
	"golang.org/x/sync/errgroup"
)

// Func is a functional implementation of [stencil.App].
type Func func(context.Context) error

// Run implements the [stencil.App] interface.
func (f Func) Run(ctx context.Context) error {
	return f(ctx)
}

// Recover will wrap the given [stencil.App] with panic recovery.
// A recovered panic is returned as a [try.PanicError].
func Recover(app stencil.App) stencil.App {
	return Func(func(ctx context.Context) (err error) {
		defer try.Recover(&err)

		return app.Run(ctx)
	})
}

// WithSignalNotifications wraps a given [stencil.App] in an implementation
// that cancels the [context.Context] that's passed to app.Run if an [os.Signal]
// is received by the running process.
func WithSignalNotifications(app stencil.App, signals ...os.Signal) stencil.App {
	return Func(func(ctx context.Context) error {
		sigCtx, cancel := signal.NotifyContext(ctx, signals...)
		defer cancel()

		return app.Run(sigCtx)
	})
}

// Concurrently runs every app on its own goroutine. The first to fail
// cancels the context of the others.
func Concurrently(apps ...stencil.App) stencil.App {
	return Func(func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		for _, a := range apps {
			g.Go(func() error {
				return a.Run(gctx)
			})
		}
		return g.Wait()
	})
}

// LifecycleHook represents functionality that needs to be performed
// at a specific "time" relative to the execution of [stencil.App.Run].
type LifecycleHook interface {
	Run(context.Context) error
}

// LifecycleHookFunc is a convenient helper type for implementing a [LifecycleHook]
// from just a regular func.
type LifecycleHookFunc func(context.Context) error

// Run implements the [LifecycleHook] interface.
func (f LifecycleHookFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// ComposeLifecycleHooks combines multiple [LifecycleHook]s into a single hook.
// Each hook is called sequentially, even after a previous hook failed.
// Every error is returned once all hooks have run.
func ComposeLifecycleHooks(hooks ...LifecycleHook) LifecycleHook {
	return LifecycleHookFunc(func(ctx context.Context) error {
		errs := make([]error, 0, len(hooks))
		for _, hook := range hooks {
			err := hook.Run(ctx)
			if err == nil {
				continue
			}
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})
}

// Lifecycle
type Lifecycle struct {
	// PreRun is executed before the underlying [stencil.App]. If it fails
	// the app is not run.
	PreRun LifecycleHook

	// PostRun is always executed regardless if the underlying [stencil.App]
	// returns an error or panics.
	PostRun LifecycleHook
}

// WithLifecycleHooks wraps a given [stencil.App] in an implementation
// that runs [LifecycleHook]s around the execution of app.Run.
func WithLifecycleHooks(app stencil.App, lifecycle Lifecycle) stencil.App {
	return Func(func(ctx context.Context) (err error) {
		if lifecycle.PreRun != nil {
			err = lifecycle.PreRun.Run(ctx)
			if err != nil {
				return err
			}
		}

		// PostRun sees a context which outlives shutdown of the app
		defer runPostRunHook(context.WithoutCancel(ctx), lifecycle.PostRun, &err)

		return app.Run(ctx)
	})
}

func runPostRunHook(ctx context.Context, hook LifecycleHook, err *error) {
	if hook == nil {
		return
	}

	hookErr := hook.Run(ctx)
	*err = errors.Join(*err, hookErr)
}
