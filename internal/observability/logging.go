// Package observability provides Tyler's structured logging: a slog.Handler
// that redacts sensitive values out of every log record and, for call
// sites that thread a request/thread/agent-tagged context through, adds
// correlation attributes automatically (spec.md's ambient stack).
package observability

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// ContextKey is the type for context keys carrying correlation ids.
type ContextKey string

const (
	// RequestIDKey correlates every log line emitted while handling one
	// HTTP request.
	RequestIDKey ContextKey = "request_id"

	// ThreadIDKey correlates every log line emitted while processing one
	// Thread through Ingress/Agent.
	ThreadIDKey ContextKey = "thread_id"

	// AgentKey names the agent persona handling the current turn.
	AgentKey ContextKey = "agent"
)

// WithRequestID returns a context tagged with requestID for the handler
// NewHandler builds to surface as a log attribute.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithThreadID returns a context tagged with threadID.
func WithThreadID(ctx context.Context, threadID string) context.Context {
	return context.WithValue(ctx, ThreadIDKey, threadID)
}

// WithAgent returns a context tagged with the agent name handling it.
func WithAgent(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, AgentKey, agent)
}

// LogConfig configures the handler NewHandler builds.
type LogConfig struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error".
	Level string

	// Format selects "json" (default, production) or "text" (development).
	Format string

	// Output is the writer for log output; defaults to os.Stdout.
	Output io.Writer

	// AddSource includes file and line number in log records.
	AddSource bool

	// RedactPatterns are additional regexes appended to DefaultRedactPatterns.
	RedactPatterns []string
}

// DefaultRedactPatterns covers the secret shapes most likely to end up in
// a log line by accident: provider API keys, bearer tokens, JWTs, and
// generic password/secret key-value pairs.
var DefaultRedactPatterns = []string{
	`(?i)(api[_-]?key|apikey)[\s:=]+["']?([a-zA-Z0-9_\-]{16,})["']?`,
	`(?i)(bearer|token)[\s:]+([a-zA-Z0-9_\-.]{16,})`,
	`(?i)(secret|password|passwd|pwd)[\s:=]+["']?([^\s"']{8,})["']?`,
	`sk-ant-[a-zA-Z0-9_-]{95,}`,
	`sk-[a-zA-Z0-9]{48,}`,
	`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`,
	`(?i)(secret|key|token)[\s:=]+["']?([a-fA-F0-9]{32,})["']?`,
}

// NewHandler builds the slog.Handler cmd/tyler installs with
// slog.SetDefault, so every package that logs through slog.Default()
// (internal/mcp, internal/attachment, internal/filestore, ...) gets
// redaction and correlation for free without importing this package
// itself.
func NewHandler(cfg LogConfig) slog.Handler {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	level := levelFromString(cfg.Level)
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}

	var inner slog.Handler
	if cfg.Format == "text" {
		inner = slog.NewTextHandler(cfg.Output, opts)
	} else {
		inner = slog.NewJSONHandler(cfg.Output, opts)
	}

	patterns := make([]*regexp.Regexp, 0, len(DefaultRedactPatterns)+len(cfg.RedactPatterns))
	for _, p := range append(DefaultRedactPatterns, cfg.RedactPatterns...) {
		if re, err := regexp.Compile(p); err == nil {
			patterns = append(patterns, re)
		}
	}

	return &redactingHandler{next: inner, patterns: patterns}
}

func levelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// redactingHandler wraps another slog.Handler, scrubbing secret-shaped
// substrings out of the message and every attribute, and promoting
// RequestIDKey/ThreadIDKey/AgentKey context values to attributes.
type redactingHandler struct {
	next     slog.Handler
	patterns []*regexp.Regexp
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, record slog.Record) error {
	redacted := slog.NewRecord(record.Time, record.Level, h.redactString(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		redacted.AddAttrs(h.redactAttr(a))
		return true
	})

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		redacted.AddAttrs(slog.String("request_id", requestID))
	}
	if threadID, ok := ctx.Value(ThreadIDKey).(string); ok && threadID != "" {
		redacted.AddAttrs(slog.String("thread_id", threadID))
	}
	if agent, ok := ctx.Value(AgentKey).(string); ok && agent != "" {
		redacted.AddAttrs(slog.String("agent", agent))
	}

	return h.next.Handle(ctx, redacted)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redactAttr(a)
	}
	return &redactingHandler{next: h.next.WithAttrs(redacted), patterns: h.patterns}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{next: h.next.WithGroup(name), patterns: h.patterns}
}

func (h *redactingHandler) redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.redactString(a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, h.redactString(err.Error()))
		}
		if b, err := json.Marshal(a.Value.Any()); err == nil {
			return slog.String(a.Key, h.redactString(string(b)))
		}
		return a
	default:
		return a
	}
}

func (h *redactingHandler) redactString(s string) string {
	for _, re := range h.patterns {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}
