// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/z5labs/stencil/auth"
	"github.com/z5labs/stencil/config"
	"github.com/z5labs/stencil/service"
)

func TestFlags_Sources(t *testing.T) {
	t.Run("will let flags override the config file", func(t *testing.T) {
		t.Run("if both set the port", func(t *testing.T) {
			t.Setenv("STENCIL_HOST", "")
			t.Setenv("STENCIL_PORT", "")

			path := filepath.Join(t.TempDir(), "stencil.yaml")
			err := os.WriteFile(path, []byte("http:\n  port: 4000\n  host: 0.0.0.0\n"), 0o644)
			if !assert.Nil(t, err) {
				return
			}

			cmd := newRootCmd()
			err = cmd.ParseFlags([]string{"--config", path, "--port", "5000", "--ssl-certfile", "cert.pem", "--ssl-keyfile", "key.pem"})
			if !assert.Nil(t, err) {
				return
			}

			f := &flags{configFile: path, port: 5000, certFile: "cert.pem", keyFile: "key.pem"}
			m, err := config.Read(f.sources(cmd)...)
			if !assert.Nil(t, err) {
				return
			}

			var cfg service.Config
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, uint(5000), cfg.HTTP.Port) {
				return
			}
			if !assert.Equal(t, "0.0.0.0", cfg.HTTP.Host) {
				return
			}
			if !assert.Equal(t, "cert.pem", cfg.HTTP.TLS.CertFile) {
				return
			}
			if !assert.Equal(t, "key.pem", cfg.HTTP.TLS.KeyFile) {
				return
			}
		})
	})
}

func TestTokenCmd(t *testing.T) {
	t.Run("will print a token for the template", func(t *testing.T) {
		t.Run("if a secret is configured", func(t *testing.T) {
			t.Setenv("STENCIL_AUTH_SECRET", "not-a-real-secret")

			var out bytes.Buffer
			cmd := newRootCmd()
			cmd.SetOut(&out)
			cmd.SetArgs([]string{"token", "sample"})

			err := cmd.ExecuteContext(context.Background())
			if !assert.Nil(t, err) {
				return
			}

			v := auth.NewVerifier([]byte("not-a-real-secret"), "stencil", "stencil-templates")
			_, err = v.Verify("Bearer "+strings.TrimSpace(out.String()), "sample")
			if !assert.Nil(t, err) {
				return
			}
		})
	})

	t.Run("will return ErrMissingSecret", func(t *testing.T) {
		t.Run("if no secret is configured", func(t *testing.T) {
			t.Setenv("STENCIL_AUTH_SECRET", "")

			cmd := newRootCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs([]string{"token", "sample"})

			err := cmd.ExecuteContext(context.Background())
			if !assert.ErrorIs(t, err, service.ErrMissingSecret) {
				return
			}
		})
	})
}
