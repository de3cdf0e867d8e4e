// Package logging builds the process logger: slog over a text handler,
// wrapped so secret-bearing attributes never reach the output.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// redactedValue replaces any attribute whose key names secret material.
const redactedValue = "[redacted]"

// sensitiveKeyParts flags attributes to redact. Matching is by substring
// on the lowercased key, so "bearer_token" and "sessionSeed" both hit.
var sensitiveKeyParts = []string{
	"token",
	"seed",
	"secret",
	"signature",
	"mnemonic",
	"passphrase",
	"private",
}

// New returns a logger writing to w. Verbose enables debug level.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactAttr,
	})
	return slog.New(&redactingHandler{inner: h})
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		a.Value = slog.StringValue(redactedValue)
	}
	return a
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(k, part) {
			return true
		}
	}
	return false
}

// redactingHandler scrubs attributes attached via With before they are
// baked into the inner handler, where ReplaceAttr cannot reach them on
// some handler implementations.
type redactingHandler struct {
	inner slog.Handler
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scrubbed := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		scrubbed[i] = redactAttr(nil, a)
	}
	return &redactingHandler{inner: h.inner.WithAttrs(scrubbed)}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{inner: h.inner.WithGroup(name)}
}
