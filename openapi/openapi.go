// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package openapi assembles the OpenAPI document describing the routes
// the service serves.
package openapi

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/swaggest/openapi-go/openapi3"
	"github.com/z5labs/stencil/route"
)

// Options configure the document built by [Build].
type Options struct {
	title       string
	version     string
	description string
	bearer      []string
}

// Option sets a value on [Options].
type Option func(*Options)

// Title sets the document title.
func Title(s string) Option {
	return func(o *Options) {
		o.title = s
	}
}

// Version sets the document version.
func Version(s string) Option {
	return func(o *Options) {
		o.version = s
	}
}

// Description sets the document description.
func Description(s string) Option {
	return func(o *Options) {
		o.description = s
	}
}

// BearerSecurity declares a security scheme, named name, for operations
// which require a bearer JWT.
func BearerSecurity(name string) Option {
	return func(o *Options) {
		o.bearer = append(o.bearer, name)
	}
}

// AddOperationError is returned when a route could not be documented.
type AddOperationError struct {
	Method string
	Path   string
	Cause  error
}

// Error implements the [builtin.error] interface.
func (e AddOperationError) Error() string {
	return fmt.Sprintf("failed to document %s %s: %s", e.Method, e.Path, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e AddOperationError) Unwrap() error {
	return e.Cause
}

// Build documents every route which carries an operation. Routes without
// one, like the document itself, are left out.
func Build(routes []route.Route, opts ...Option) (*openapi3.Spec, error) {
	o := &Options{
		title:   "stencil",
		version: "0.0.1",
	}
	for _, opt := range opts {
		opt(o)
	}

	spec := &openapi3.Spec{
		Openapi: "3.0.3",
	}
	spec.Info.Title = o.title
	spec.Info.Version = o.version
	if o.description != "" {
		spec.Info.WithDescription(o.description)
	}
	for _, name := range o.bearer {
		spec.SetHTTPBearerTokenSecurity(name, "JWT", "HS256 signed token whose sub claim is the route slug")
	}

	for _, rt := range routes {
		if rt.Operation == nil {
			continue
		}
		for _, method := range rt.Methods {
			err := spec.AddOperation(strings.ToLower(method), rt.Path, *rt.Operation)
			if err != nil {
				return nil, AddOperationError{Method: method, Path: rt.Path, Cause: err}
			}
		}
	}
	return spec, nil
}

// WriteFile writes spec as indented JSON to path. The file is replaced
// atomically so a watcher never sees it half written.
func WriteFile(path string, spec *openapi3.Spec) error {
	b, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	_, err = tmp.Write(b)
	cerr := tmp.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
