// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/z5labs/stencil/config/key"
)

type readFunc func([]byte) (int, error)

func (f readFunc) Read(b []byte) (int, error) {
	return f(b)
}

type httpConfig struct {
	HTTP struct {
		Host         string        `config:"host"`
		Port         uint          `config:"port"`
		MaxBodyBytes int64         `config:"maxBodyBytes"`
		ReadTimeout  time.Duration `config:"readTimeout"`
		TLS          struct {
			CertFile string `config:"certFile"`
		} `config:"tls"`
	} `config:"http"`
	Debug bool `config:"debug"`
}

func environ(pairs ...string) func() []string {
	return func() []string {
		return pairs
	}
}

func TestRead(t *testing.T) {
	t.Run("will let later sources override earlier ones", func(t *testing.T) {
		t.Run("if both set the same key", func(t *testing.T) {
			m, err := Read(
				FromYaml(strings.NewReader("http:\n  host: 127.0.0.1\n  port: 2999\n")),
				Map{"http": map[string]any{"port": 8080}},
			)
			if !assert.Nil(t, err) {
				return
			}

			var cfg httpConfig
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "127.0.0.1", cfg.HTTP.Host) {
				return
			}
			if !assert.Equal(t, uint(8080), cfg.HTTP.Port) {
				return
			}
		})

		t.Run("if the environment uses different casing", func(t *testing.T) {
			env := FromEnv("STENCIL_")
			env.environ = environ(
				"STENCIL_HTTP_MAXBODYBYTES=2048",
				"STENCIL_HTTP_TLS_CERTFILE=/etc/stencil/cert.pem",
				"STENCIL_DEBUG=true",
				"HOME=/root",
			)

			m, err := Read(
				FromYaml(strings.NewReader("http:\n  maxBodyBytes: 1024\n  readTimeout: 5s\n")),
				env,
			)
			if !assert.Nil(t, err) {
				return
			}

			var cfg httpConfig
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, int64(2048), cfg.HTTP.MaxBodyBytes) {
				return
			}
			if !assert.Equal(t, "/etc/stencil/cert.pem", cfg.HTTP.TLS.CertFile) {
				return
			}
			if !assert.Equal(t, 5*time.Second, cfg.HTTP.ReadTimeout) {
				return
			}
			if !assert.True(t, cfg.Debug) {
				return
			}
		})
	})

	t.Run("will return an InvalidYamlError", func(t *testing.T) {
		t.Run("if the yaml is malformed", func(t *testing.T) {
			_, err := Read(FromYaml(strings.NewReader("http: [")))

			var yerr InvalidYamlError
			if !assert.ErrorAs(t, err, &yerr) {
				return
			}
		})
	})

	t.Run("will return an UnexpectedKeyValueTypeError", func(t *testing.T) {
		t.Run("if a plain value is nested into", func(t *testing.T) {
			_, err := Read(
				Map{"http": "plain"},
				Map{"http": map[string]any{"port": 1}},
			)

			var uerr UnexpectedKeyValueTypeError
			if !assert.ErrorAs(t, err, &uerr) {
				return
			}
			if !assert.Equal(t, "http", uerr.Key) {
				return
			}
		})
	})

	t.Run("will return an EmptyKeyChainError", func(t *testing.T) {
		t.Run("if a source sets an empty chain", func(t *testing.T) {
			_, err := Read(SourceFunc(func(s Store) error {
				return s.Set(key.Chain{}, 1)
			}))

			var eerr EmptyKeyChainError
			if !assert.ErrorAs(t, err, &eerr) {
				return
			}
		})
	})
}

func TestManager_Unmarshal(t *testing.T) {
	t.Run("will return a TypeCoercionError", func(t *testing.T) {
		t.Run("if a duration does not parse", func(t *testing.T) {
			m, err := Read(Map{"http": map[string]any{"readTimeout": "soon"}})
			if !assert.Nil(t, err) {
				return
			}

			var cfg httpConfig
			err = m.Unmarshal(&cfg)

			if !assert.ErrorContains(t, err, "failed to coerce value") {
				return
			}
		})
	})
}
