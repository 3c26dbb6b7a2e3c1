// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"os"
	"strings"

	"github.com/z5labs/stencil/config/key"
)

// Env represents a Source where its underlying values
// are extracted from environment variables.
type Env struct {
	prefix  string
	environ func() []string
}

// FromEnv returns a Source which applies every environment variable
// starting with prefix. The remainder of the name is split on "_" into
// nested keys, e.g. STENCIL_HTTP_PORT with prefix "STENCIL_" sets http.port.
func FromEnv(prefix string) Env {
	return Env{
		prefix:  prefix,
		environ: os.Environ,
	}
}

// Apply implements the [Source] interface.
func (src Env) Apply(store Store) error {
	for _, pair := range src.environ() {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		name, ok := strings.CutPrefix(k, src.prefix)
		if !ok {
			continue
		}
		chain := key.Split(strings.ToLower(name), "_")
		if len(chain) == 0 {
			continue
		}
		err := store.Set(chain, v)
		if err != nil {
			return err
		}
	}
	return nil
}
