// Package logging provides structured JSON logging for Granite.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with compaction-oriented context helpers.
type Logger struct {
	*slog.Logger
}

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	tabletIDKey  contextKey = "tablet_id"
	tableIDKey   contextKey = "table_id"
)

// New creates a Logger with JSON output to stdout at info level.
func New() *Logger {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a Logger with JSON output to the provided writer.
func NewWithWriter(w io.Writer) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &Logger{Logger: slog.New(handler)}
}

// NewVerbose creates a Logger that also emits debug-level records.
// Benign outcomes such as "no suitable version" are logged at debug.
func NewVerbose(w io.Writer) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	return &Logger{Logger: slog.New(handler)}
}

// With returns a new logger with additional attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithTablet returns a logger carrying tablet and table identity.
func (l *Logger) WithTablet(tabletID, tableID int64) *Logger {
	return &Logger{Logger: l.Logger.With(
		slog.Int64("tablet_id", tabletID),
		slog.Int64("table_id", tableID),
	)}
}

// WithContext returns a logger with request-scoped context values attached.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	logger := l.Logger
	if requestID, ok := ctx.Value(requestIDKey).(string); ok && requestID != "" {
		logger = logger.With(slog.String("request_id", requestID))
	}
	if tabletID, ok := ctx.Value(tabletIDKey).(int64); ok && tabletID != 0 {
		logger = logger.With(slog.Int64("tablet_id", tabletID))
	}
	if tableID, ok := ctx.Value(tableIDKey).(int64); ok && tableID != 0 {
		logger = logger.With(slog.Int64("table_id", tableID))
	}
	return &Logger{Logger: logger}
}

// ContextWithRequestID adds a request ID to the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ContextWithTabletID adds a tablet ID to the context.
func ContextWithTabletID(ctx context.Context, tabletID int64) context.Context {
	return context.WithValue(ctx, tabletIDKey, tabletID)
}

// ContextWithTableID adds a table ID to the context.
func ContextWithTableID(ctx context.Context, tableID int64) context.Context {
	return context.WithValue(ctx, tableIDKey, tableID)
}
