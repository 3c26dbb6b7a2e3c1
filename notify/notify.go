// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package notify posts short operational messages to a chat webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/z5labs/stencil/internal/try"
	"github.com/z5labs/stencil/slogfield"
)

// UnexpectedStatusError is returned when the webhook answers with a
// non-2xx status.
type UnexpectedStatusError struct {
	StatusCode int
}

// Error implements the [builtin.error] interface.
func (e UnexpectedStatusError) Error() string {
	return fmt.Sprintf("webhook responded with unexpected status code: %d", e.StatusCode)
}

// Option configures a [Notifier].
type Option func(*Notifier)

// Channel sets the channel messages are posted to. An empty name keeps
// the default, "ops".
func Channel(name string) Option {
	return func(n *Notifier) {
		if name != "" {
			n.channel = name
		}
	}
}

// HTTPClient sets the client used to reach the webhook.
func HTTPClient(c *http.Client) Option {
	return func(n *Notifier) {
		n.client = c
	}
}

// LogHandler sets the [slog.Handler] failures are logged with.
func LogHandler(h slog.Handler) Option {
	return func(n *Notifier) {
		n.log = slog.New(h)
	}
}

// Notifier posts messages to a webhook. A Notifier without a webhook URL
// silently drops every message.
type Notifier struct {
	url     string
	channel string
	client  *http.Client
	log     *slog.Logger
}

// New returns a Notifier for webhookURL.
func New(webhookURL string, opts ...Option) *Notifier {
	n := &Notifier{
		url:     webhookURL,
		channel: "ops",
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.client == nil {
		n.client = NewHTTPClient(
			Name("notify"),
			ClientLogHandler(n.log.Handler()),
			MaxRetries(3),
			TripAfter(5),
		)
	}
	return n
}

// Enabled reports whether messages will actually be sent.
func (n *Notifier) Enabled() bool {
	return n.url != ""
}

type message struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// Post sends text to the configured channel.
func (n *Notifier) Post(ctx context.Context, text string) (err error) {
	if !n.Enabled() {
		return nil
	}

	b, err := json.Marshal(message{Channel: n.channel, Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer try.Close(&err, resp.Body)

	_, err = io.Copy(io.Discard, resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return UnexpectedStatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// Ready announces that the instance on hostname is serving. Failures are
// logged rather than returned since they must never stop the server.
func (n *Notifier) Ready(ctx context.Context, hostname string) {
	err := n.Post(ctx, "stencil "+hostname+" ready")
	if err != nil {
		n.log.WarnContext(ctx, "failed to send ready notification", slogfield.String("hostname", hostname), slogfield.Error(err))
	}
}
