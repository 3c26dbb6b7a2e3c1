// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package route

import (
	"fmt"
	"slices"
	"strings"
)

// Group is a set of routes sharing a path prefix.
type Group struct {
	Prefix string
	Routes []Route
}

// DuplicateRouteError is returned by [NewRouter] if the same method is
// registered twice for one path.
type DuplicateRouteError struct {
	Method string
	Path   string
}

// Error implements the [builtin.error] interface.
func (e DuplicateRouteError) Error() string {
	return fmt.Sprintf("route registered more than once: %s %s", e.Method, e.Path)
}

// Router matches requests to routes by method and exact path segments.
// It is immutable once built and safe for concurrent use.
type Router struct {
	routes []Route
	byPath map[string][]int
}

// NewRouter composes every group prefix with the paths of its routes.
// Registration order is preserved, the first matching route always wins.
func NewRouter(groups ...Group) (*Router, error) {
	r := &Router{
		byPath: make(map[string][]int),
	}
	for _, g := range groups {
		for _, rt := range g.Routes {
			rt.Path = Join(g.Prefix, rt.Path)
			rt.Methods = slices.Clone(rt.Methods)

			key := normalize(rt.Path)
			for _, method := range rt.Methods {
				for _, idx := range r.byPath[key] {
					if slices.Contains(r.routes[idx].Methods, method) {
						return nil, DuplicateRouteError{Method: method, Path: rt.Path}
					}
				}
			}

			r.byPath[key] = append(r.byPath[key], len(r.routes))
			r.routes = append(r.routes, rt)
		}
	}
	return r, nil
}

// Match returns the route registered for method and path. A path which is
// only registered for other methods does not match, see [Router.Allowed].
func (r *Router) Match(method, path string) (Route, bool) {
	for _, idx := range r.byPath[normalize(path)] {
		rt := r.routes[idx]
		if slices.Contains(rt.Methods, method) {
			return rt, true
		}
	}
	return Route{}, false
}

// Allowed returns every method registered for path, in registration order.
func (r *Router) Allowed(path string) []string {
	var methods []string
	for _, idx := range r.byPath[normalize(path)] {
		for _, m := range r.routes[idx].Methods {
			if !slices.Contains(methods, m) {
				methods = append(methods, m)
			}
		}
	}
	return methods
}

// Routes returns every registered route with its full path.
func (r *Router) Routes() []Route {
	return slices.Clone(r.routes)
}

// Join composes a prefix with a path, yielding a path with exactly one
// slash between each segment.
func Join(prefix, path string) string {
	segments := append(split(prefix), split(path)...)
	return "/" + strings.Join(segments, "/")
}

func split(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s == "" {
			continue
		}
		segments = append(segments, s)
	}
	return segments
}

func normalize(path string) string {
	return strings.Join(split(path), "/")
}
