// Package logger provides structured logging using slog with request context support.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey is the context key for request ID.
	RequestIDKey contextKey = "request_id"
	// CorrelationIDKey is the context key for the correlation ID shown on error pages.
	CorrelationIDKey contextKey = "correlation_id"
)

// Logger wraps slog.Logger with additional context-aware methods.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger writing to stdout with the specified level and format.
func New(level slog.Level, json bool) *Logger {
	return NewWithWriter(os.Stdout, level, json)
}

// NewWithWriter creates a new Logger writing to w.
func NewWithWriter(w io.Writer, level slog.Level, json bool) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(NewContextHandler(handler)),
	}
}

// FromConfig creates a logger from textual level and format settings.
// Unknown levels fall back to INFO, unknown formats to JSON.
func FromConfig(level, format string) *Logger {
	return New(ParseLevel(level), !strings.EqualFold(format, "text"))
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// WithComponent returns a new Logger with the component field.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", component),
	}
}

// ContextWithRequestID adds a request ID to the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// ContextWithCorrelationID adds a correlation ID to the context.
func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

// CorrelationIDFromContext extracts the correlation ID from context.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// contextHandler adds the request and correlation ids carried by the context
// to every record logged through a *Context method.
type contextHandler struct {
	slog.Handler
}

// NewContextHandler wraps h so records pick up ids from their context.
func NewContextHandler(h slog.Handler) slog.Handler {
	return contextHandler{Handler: h}
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
			r.AddAttrs(slog.String("request_id", id))
		}
		if id, ok := ctx.Value(CorrelationIDKey).(string); ok && id != "" {
			r.AddAttrs(slog.String("correlation_id", id))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{Handler: h.Handler.WithGroup(name)}
}
