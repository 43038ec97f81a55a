// Package logging configures the process-wide slog.Logger: multi-writer
// output (stdout/stderr/rotated file) and a redacting handler wrapper that
// applies the shared secret-redaction and truncation rules to every
// attribute before it reaches the underlying text or JSON handler.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/codecritics/codecritic/internal/config"
	"github.com/codecritics/codecritic/internal/types"
)

// truncatedKeys are attribute keys whose values are capped at 100 runes,
// matching the Dispatcher's post-ACK logging rule for free-text fields.
var truncatedKeys = map[string]bool{
	"title":        true,
	"comment_body": true,
}

// Setup builds the process logger from cfg.Log and installs it as the
// slog default. The returned close func flushes and closes any rotated log
// file writers; call it during graceful shutdown.
func Setup(cfg *config.Config) (*slog.Logger, func() error) {
	var writers []io.Writer
	var closers []io.Closer

	for _, output := range strings.Split(cfg.Log.Output, ",") {
		output = strings.TrimSpace(output)
		switch output {
		case "":
			continue
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			l := &lumberjack.Logger{
				Filename:   output,
				MaxSize:    cfg.Log.Rotation.MaxSize,
				MaxBackups: cfg.Log.Rotation.MaxBackups,
				MaxAge:     cfg.Log.Rotation.MaxAge,
				Compress:   cfg.Log.Rotation.Compress,
			}
			writers = append(writers, l)
			closers = append(closers, l)
		}
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	opts := &slog.HandlerOptions{Level: cfg.GetLogLevel()}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(io.MultiWriter(writers...), opts)
	} else {
		handler = slog.NewTextHandler(io.MultiWriter(writers...), opts)
	}

	logger := slog.New(&redactingHandler{next: handler})
	slog.SetDefault(logger)

	closeAll := func() error {
		var firstErr error
		for _, c := range closers {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	return logger, closeAll
}

// redactingHandler sanitizes every string attribute before delegating to the
// wrapped handler, so secrets and oversized free text never reach a log
// sink regardless of which component produced the record.
type redactingHandler struct {
	next slog.Handler
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, record slog.Record) error {
	clean := record.Clone()
	clean.Message = types.Sanitize(record.Message)

	attrs := make([]slog.Attr, 0, record.NumAttrs())
	record.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, sanitizeAttr(a))
		return true
	})

	out := slog.NewRecord(record.Time, record.Level, clean.Message, record.PC)
	out.AddAttrs(attrs...)
	return h.next.Handle(ctx, out)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitized := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitized[i] = sanitizeAttr(a)
	}
	return &redactingHandler{next: h.next.WithAttrs(sanitized)}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{next: h.next.WithGroup(name)}
}

func sanitizeAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	v := types.Sanitize(a.Value.String())
	if truncatedKeys[a.Key] {
		v = types.Truncate(v, 100)
	}
	return slog.String(a.Key, v)
}
