// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package service

import (
	"log/slog"
	"time"

	"github.com/z5labs/stencil/tracing"
)

// TLSConfig names the PEM encoded certificate and key. Both or neither
// must be set.
type TLSConfig struct {
	CertFile string `config:"certFile"`
	KeyFile  string `config:"keyFile"`
}

// HTTPConfig configures the listener and the per request budgets.
type HTTPConfig struct {
	Host              string        `config:"host"`
	Port              uint          `config:"port"`
	TLS               TLSConfig     `config:"tls"`
	ReadHeaderTimeout time.Duration `config:"readHeaderTimeout"`
	ReadTimeout       time.Duration `config:"readTimeout"`
	WriteTimeout      time.Duration `config:"writeTimeout"`
	ContentTimeout    time.Duration `config:"contentTimeout"`
	FinalizeTimeout   time.Duration `config:"finalizeTimeout"`
	DrainTimeout      time.Duration `config:"drainTimeout"`
	MaxBodyBytes      int64         `config:"maxBodyBytes"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	Secret   string `config:"secret"`
	Issuer   string `config:"issuer"`
	Audience string `config:"audience"`
}

// StaticConfig configures precompressed static files.
type StaticConfig struct {
	CacheDir   string        `config:"cacheDir"`
	RetryAfter time.Duration `config:"retryAfter"`
}

// NotifyConfig configures the ready notification webhook.
type NotifyConfig struct {
	WebhookURL string        `config:"webhookUrl"`
	Channel    string        `config:"channel"`
	Timeout    time.Duration `config:"timeout"`
	MaxRetries int           `config:"maxRetries"`
}

// LogConfig configures the root logger.
type LogConfig struct {
	Level slog.Level `config:"level"`
}

// Config is resolved once at startup and passed to [Build].
type Config struct {
	HTTP   HTTPConfig     `config:"http"`
	Auth   AuthConfig     `config:"auth"`
	Static StaticConfig   `config:"static"`
	OTel   tracing.Config `config:"otel"`
	Notify NotifyConfig   `config:"notify"`
	Log    LogConfig      `config:"log"`
}
