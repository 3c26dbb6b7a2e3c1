// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"reflect"
	"sync"
	"text/template"

	"github.com/z5labs/stencil/internal/try"
)

// RenderTextTemplateOption represents options for configuring the TextTemplateRenderer.
type RenderTextTemplateOption func(*TextTemplateRenderer)

// TemplateFunc registers the given function, f, for use in the config
// template via the given name.
func TemplateFunc(name string, f any) RenderTextTemplateOption {
	return func(ttr *TextTemplateRenderer) {
		ttr.funcs[name] = f
	}
}

// TemplateDelims sets the action delimiters to the specified strings.
// An empty delimiter stands for the corresponding default: {{ or }}.
func TemplateDelims(left, right string) RenderTextTemplateOption {
	return func(ttr *TextTemplateRenderer) {
		ttr.leftDelim = left
		ttr.rightDelim = right
	}
}

// TextTemplateRenderer is an io.Reader that renders a text/template from
// a given io.Reader. The rendered template can then be read via [TextTemplateRenderer.Read].
//
// The functions env and default are always available:
//
//	port: {{env "PORT" | default 8080}}
type TextTemplateRenderer struct {
	r io.Reader

	leftDelim  string
	rightDelim string
	funcs      template.FuncMap
	renderOnce sync.Once
	renderErr  error
	buf        bytes.Buffer
}

// RenderTextTemplate configures a TextTemplateRenderer.
func RenderTextTemplate(r io.Reader, opts ...RenderTextTemplateOption) *TextTemplateRenderer {
	ttr := &TextTemplateRenderer{
		r: r,
		funcs: template.FuncMap{
			"env":     os.Getenv,
			"default": defaultValue,
		},
	}
	for _, opt := range opts {
		opt(ttr)
	}
	return ttr
}

// defaultValue returns def if v is nil or the zero value for its type.
func defaultValue(def, v any) any {
	if v == nil {
		return def
	}
	if reflect.ValueOf(v).IsZero() {
		return def
	}
	return v
}

// TextTemplateParseError occurs when the config template fails to be parsed.
type TextTemplateParseError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e TextTemplateParseError) Error() string {
	return fmt.Sprintf("failed to parse config template: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e TextTemplateParseError) Unwrap() error {
	return e.Cause
}

// TextTemplateExecError occurs when a template fails to execute. Most
// likely cause is using template functions returning an error or panicing.
type TextTemplateExecError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e TextTemplateExecError) Error() string {
	return fmt.Sprintf("failed to exec config template: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e TextTemplateExecError) Unwrap() error {
	return e.Cause
}

// Read implements the [io.Reader] interface.
func (ttr *TextTemplateRenderer) Read(b []byte) (int, error) {
	ttr.renderOnce.Do(func() {
		ttr.renderErr = ttr.render()
	})
	if ttr.renderErr != nil {
		return 0, ttr.renderErr
	}
	return ttr.buf.Read(b)
}

func (ttr *TextTemplateRenderer) render() (err error) {
	defer try.Close(&err, ttr.r)

	src, err := io.ReadAll(ttr.r)
	if err != nil {
		return err
	}

	tmpl, err := template.New("config").
		Delims(ttr.leftDelim, ttr.rightDelim).
		Funcs(ttr.funcs).
		Parse(string(src))
	if err != nil {
		return TextTemplateParseError{Cause: err}
	}

	err = tmpl.Execute(&ttr.buf, struct{}{})
	if err != nil {
		return TextTemplateExecError{Cause: err}
	}
	return nil
}
