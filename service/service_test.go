// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/z5labs/stencil/tracing"
)

func testConfig(t *testing.T) Config {
	t.Helper()

	var cfg Config
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = 0
	cfg.HTTP.ReadHeaderTimeout = time.Second
	cfg.HTTP.ReadTimeout = time.Second
	cfg.HTTP.WriteTimeout = time.Second
	cfg.HTTP.ContentTimeout = time.Second
	cfg.HTTP.FinalizeTimeout = time.Second
	cfg.HTTP.DrainTimeout = time.Second
	cfg.HTTP.MaxBodyBytes = 1 << 20
	cfg.Auth.Secret = "not-a-real-secret"
	cfg.Auth.Issuer = "stencil"
	cfg.Auth.Audience = "stencil-templates"
	cfg.Static.CacheDir = t.TempDir()
	cfg.Static.RetryAfter = time.Second
	cfg.OTel.Exporter = tracing.None
	cfg.Notify.Channel = "ops"
	cfg.Notify.Timeout = time.Second
	return cfg
}

func hostname(name string) Option {
	return func(o *options) {
		o.hostname = func() (string, error) {
			return name, nil
		}
	}
}

func TestBuild(t *testing.T) {
	t.Run("will return ErrMissingSecret", func(t *testing.T) {
		t.Run("if no signing secret is configured", func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Auth.Secret = ""

			_, err := Build(context.Background(), cfg, LogOutput(io.Discard))
			if !assert.ErrorIs(t, err, ErrMissingSecret) {
				return
			}
		})
	})

	t.Run("will write the openapi document", func(t *testing.T) {
		t.Run("if the app is built", func(t *testing.T) {
			cfg := testConfig(t)

			_, err := Build(context.Background(), cfg, LogOutput(io.Discard))
			if !assert.Nil(t, err) {
				return
			}

			b, err := os.ReadFile(filepath.Join(cfg.Static.CacheDir, "openapi.json"))
			if !assert.Nil(t, err) {
				return
			}

			var doc struct {
				Paths map[string]any `json:"paths"`
			}
			err = json.Unmarshal(b, &doc)
			if !assert.Nil(t, err) {
				return
			}
			for _, path := range []string{"/templates/sample", "/templates/resetPassword", "/templates/verifyEmailCode", "/management/health"} {
				if !assert.Contains(t, doc.Paths, path) {
					return
				}
			}
		})
	})

	t.Run("will announce it is ready", func(t *testing.T) {
		t.Run("if the listener is bound", func(t *testing.T) {
			received := make(chan string, 1)
			webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var m struct {
					Text string `json:"text"`
				}
				json.NewDecoder(r.Body).Decode(&m)
				received <- m.Text
			}))
			t.Cleanup(webhook.Close)

			cfg := testConfig(t)
			cfg.Notify.WebhookURL = webhook.URL

			a, err := Build(context.Background(), cfg, LogOutput(io.Discard), hostname("box-1"))
			if !assert.Nil(t, err) {
				return
			}

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				done <- a.Run(ctx)
			}()

			select {
			case text := <-received:
				if !assert.Equal(t, "stencil box-1 ready", text) {
					cancel()
					<-done
					return
				}
			case <-time.After(5 * time.Second):
				cancel()
				<-done
				t.Fatal("timed out waiting for the ready notification")
			}

			cancel()
			err = <-done
			if !assert.Nil(t, err) {
				return
			}
		})
	})
}
