// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package stencil reads configuration, builds the template rendering
// service and runs it.
package stencil

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"

	"github.com/z5labs/stencil/config"
)

//go:embed default_config.yaml
var defaultConfig []byte

// DefaultConfig returns the embedded defaults. They are rendered as a
// text/template first, so STENCIL_HOST and STENCIL_PORT may fill them in.
func DefaultConfig() config.Source {
	return config.FromYaml(config.RenderTextTemplate(bytes.NewReader(defaultConfig)))
}

// App represents the entry point for user specific code.
type App interface {
	Run(context.Context) error
}

// AppBuilder represents anything which can initialize an App.
type AppBuilder[T any] interface {
	Build(ctx context.Context, cfg T) (App, error)
}

// AppBuilderFunc is a functional implementation of
// the AppBuilder interface.
type AppBuilderFunc[T any] func(context.Context, T) (App, error)

// Build implements the [AppBuilder] interface.
func (f AppBuilderFunc[T]) Build(ctx context.Context, cfg T) (App, error) {
	return f(ctx, cfg)
}

// Run reads the provided config sources, unmarshals them into T, uses
// the config and builder to build the [App] and, lastly, runs the
// returned [App].
func Run[T any](ctx context.Context, builder AppBuilder[T], srcs ...config.Source) error {
	m, err := config.Read(srcs...)
	if err != nil {
		return ConfigReadError{Cause: err}
	}

	var cfg T
	err = m.Unmarshal(&cfg)
	if err != nil {
		return ConfigUnmarshalError{Cause: err}
	}

	app, err := builder.Build(ctx, cfg)
	if err != nil {
		return AppBuildError{Cause: err}
	}

	err = app.Run(ctx)
	if err != nil {
		return AppRunError{Cause: err}
	}
	return nil
}

// ConfigReadError is returned when a config source could not be applied.
type ConfigReadError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ConfigReadError) Error() string {
	return fmt.Sprintf("failed to read config source(s): %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ConfigReadError) Unwrap() error {
	return e.Cause
}

// ConfigUnmarshalError is returned when the merged config does not fit
// the config type.
type ConfigUnmarshalError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ConfigUnmarshalError) Error() string {
	return fmt.Sprintf("failed to unmarshal read config source(s) into custom type: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ConfigUnmarshalError) Unwrap() error {
	return e.Cause
}

// AppBuildError
type AppBuildError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e AppBuildError) Error() string {
	return fmt.Sprintf("failed to build app: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e AppBuildError) Unwrap() error {
	return e.Cause
}

// AppRunError
type AppRunError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e AppRunError) Error() string {
	return fmt.Sprintf("failed to run app: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e AppRunError) Unwrap() error {
	return e.Cause
}
