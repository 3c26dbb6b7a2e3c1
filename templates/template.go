// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package templates holds the templates the service renders and builds the
// routes which serve them.
package templates

import (
	"embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io"
	"io/fs"
	"net/url"
	texttemplate "text/template"

	"github.com/z5labs/stencil/schema"
)

//go:embed files/*.tmpl
var files embed.FS

// Format is the flavour of output a template renders.
type Format string

const (
	HTML  Format = "html"
	Plain Format = "plain"
)

// UnknownFormatError is returned when rendering a format which has no template.
type UnknownFormatError struct {
	Format Format
}

// Error implements the [builtin.error] interface.
func (e UnknownFormatError) Error() string {
	return fmt.Sprintf("no template for format: %s", e.Format)
}

// Renderer renders the html and plain flavours of a single template.
type Renderer struct {
	html  *htmltemplate.Template
	plain *texttemplate.Template
}

// query encodes alternating keys and values as a URL query string.
func query(pairs ...string) string {
	if len(pairs)%2 != 0 {
		panic("templates: query requires key value pairs")
	}
	vals := make(url.Values, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		vals.Add(pairs[i], pairs[i+1])
	}
	return vals.Encode()
}

var (
	htmlFuncs = htmltemplate.FuncMap{
		"query": func(pairs ...string) htmltemplate.URL {
			return htmltemplate.URL(query(pairs...))
		},
	}
	textFuncs = texttemplate.FuncMap{
		"query": query,
	}
)

// Parse loads "<name>.html.tmpl" and "<name>.txt.tmpl" from fsys. Shared
// html definitions are read from "layout.html.tmpl" when it exists.
func Parse(fsys fs.FS, name string) (*Renderer, error) {
	htmlPatterns := []string{name + ".html.tmpl"}
	_, err := fs.Stat(fsys, "layout.html.tmpl")
	if err == nil {
		htmlPatterns = append(htmlPatterns, "layout.html.tmpl")
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	html, err := htmltemplate.New(name + ".html.tmpl").
		Funcs(htmlFuncs).
		ParseFS(fsys, htmlPatterns...)
	if err != nil {
		return nil, err
	}

	plain, err := texttemplate.New(name + ".txt.tmpl").
		Funcs(textFuncs).
		ParseFS(fsys, name+".txt.tmpl")
	if err != nil {
		return nil, err
	}
	return &Renderer{html: html, plain: plain}, nil
}

// MustParse is like [Parse] but panics on failure. It reads from the
// templates embedded in this package.
func MustParse(name string) *Renderer {
	sub, err := fs.Sub(files, "files")
	if err != nil {
		panic(err)
	}
	r, err := Parse(sub, name)
	if err != nil {
		panic(err)
	}
	return r
}

// Render writes params rendered in the given format to w.
func (r *Renderer) Render(w io.Writer, params any, format Format) error {
	switch format {
	case HTML:
		return r.html.Execute(w, params)
	case Plain:
		return r.plain.Execute(w, params)
	default:
		return UnknownFormatError{Format: format}
	}
}

// Template is a renderable template and everything needed to serve it.
type Template struct {
	// Slug is the last path segment of the route, and the subject tokens
	// for this template must be issued for.
	Slug string

	Summary     string
	Description string

	// Schema validates request bodies before they reach Renderer.
	Schema schema.Field

	Renderer *Renderer
}
