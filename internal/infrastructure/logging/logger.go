// Package logging provides structured logging infrastructure for moneta.
// It wraps Go's standard log/slog package with context-aware logging,
// correlation IDs, and sync-domain log attributes.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// contextKey is used for storing logger-related values in context.
type contextKey string

const (
	// CorrelationIDKey is the context key for correlation IDs.
	CorrelationIDKey contextKey = "correlation_id"
	// CycleIDKey is the context key for sync cycle IDs.
	CycleIDKey contextKey = "cycle_id"
	// UserIDKey is the context key for the owning principal.
	UserIDKey contextKey = "user_id"
	// EntityKindKey is the context key for the record kind being synced.
	EntityKindKey contextKey = "entity_kind"
)

// Level represents log levels.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format represents log output formats.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	Format     Format
	Output     io.Writer
	AddSource  bool
	TimeFormat string
}

// DefaultConfig returns sensible default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Format:     FormatText,
		Output:     os.Stderr,
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}
}

// Logger wraps slog.Logger with additional functionality for moneta.
type Logger struct {
	slogger *slog.Logger
	level   slog.Level
	mu      sync.RWMutex
}

// global is the package-level default logger.
var (
	global     *Logger
	globalOnce sync.Once
)

// Init initializes the global logger with the provided configuration.
func Init(cfg Config) *Logger {
	globalOnce.Do(func() {
		global = New(cfg)
	})
	return global
}

// Default returns the global logger, initializing it with defaults if necessary.
func Default() *Logger {
	if global == nil {
		Init(DefaultConfig())
	}
	return global
}

// New creates a new Logger with the provided configuration.
func New(cfg Config) *Logger {
	level := parseLevel(cfg.Level)

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Customize time format
			if a.Key == slog.TimeKey && cfg.TimeFormat != "" {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
				}
			}
			return a
		},
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{
		slogger: slog.New(handler),
		level:   level,
	}
}

// parseLevel converts a Level to slog.Level.
func parseLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel dynamically changes the log level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = parseLevel(level)
}

// With returns a new Logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slogger: l.slogger.With(args...),
		level:   l.level,
	}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...any) {
	l.slogger.Debug(msg, args...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) {
	l.slogger.Info(msg, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) {
	l.slogger.Warn(msg, args...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, args ...any) {
	l.slogger.Error(msg, args...)
}

// DebugContext logs at debug level with context.
func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.slogger.DebugContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// InfoContext logs at info level with context.
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.slogger.InfoContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// WarnContext logs at warn level with context.
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.slogger.WarnContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// ErrorContext logs at error level with context.
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slogger.ErrorContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// enrichArgs extracts context values and adds them as log attributes.
func (l *Logger) enrichArgs(ctx context.Context, args []any) []any {
	enriched := make([]any, 0, len(args)+8)

	// Extract standard context values
	if v := ctx.Value(CorrelationIDKey); v != nil {
		enriched = append(enriched, "correlation_id", v)
	}
	if v := ctx.Value(CycleIDKey); v != nil {
		enriched = append(enriched, "cycle_id", v)
	}
	if v := ctx.Value(UserIDKey); v != nil {
		enriched = append(enriched, "user_id", v)
	}
	if v := ctx.Value(EntityKindKey); v != nil {
		enriched = append(enriched, "entity_kind", v)
	}

	enriched = append(enriched, args...)
	return enriched
}

// --- Context helpers ---

// WithCorrelationID adds a correlation ID to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// WithCycleID adds a sync cycle ID to the context.
func WithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CycleIDKey, id)
}

// WithUserID adds the owning principal to the context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// WithEntityKind adds the record kind being synced to the context.
func WithEntityKind(ctx context.Context, kind string) context.Context {
	return context.WithValue(ctx, EntityKindKey, kind)
}

// CorrelationID extracts the correlation ID from context.
func CorrelationID(ctx context.Context) string {
	if v := ctx.Value(CorrelationIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// CycleID extracts the sync cycle ID from context.
func CycleID(ctx context.Context) string {
	if v := ctx.Value(CycleIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// --- Domain-specific logging helpers ---

// LogCycleStart logs the start of a sync cycle.
func LogCycleStart(ctx context.Context, logger *Logger, direction string) {
	logger.InfoContext(ctx, "sync cycle started",
		"direction", direction,
	)
}

// LogCycleComplete logs the completion of a sync cycle.
func LogCycleComplete(ctx context.Context, logger *Logger, direction string, synced, failed int, duration time.Duration) {
	logger.InfoContext(ctx, "sync cycle completed",
		"direction", direction,
		"synced", synced,
		"failed", failed,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogCycleAborted logs a sync cycle that stopped before completing.
func LogCycleAborted(ctx context.Context, logger *Logger, direction, reason string, err error) {
	args := []any{
		"direction", direction,
		"reason", reason,
	}
	if err != nil {
		args = append(args, "error", err.Error())
	}
	logger.WarnContext(ctx, "sync cycle aborted", args...)
}

// LogRecordSyncFailed logs a per-record sync failure. The record keeps its
// status and is retried on the next cycle, so this is the only trace of the
// failure.
func LogRecordSyncFailed(ctx context.Context, logger *Logger, kind string, localID int64, op string, err error) {
	logger.ErrorContext(ctx, "record sync failed",
		"entity_kind", kind,
		"local_id", localID,
		"op", op,
		"error", err.Error(),
	)
}

// LogRemoteRequest logs an outgoing remote store request.
func LogRemoteRequest(ctx context.Context, logger *Logger, method, collection string) {
	logger.DebugContext(ctx, "remote store request",
		"method", method,
		"collection", collection,
	)
}

// LogMarkDropped logs a mark-for-upload request dropped because the queue is
// full. The record is still picked up once its row status lands.
func LogMarkDropped(logger *Logger, kind string, localID int64) {
	logger.Warn("mark-for-upload queue full, dropping request",
		"entity_kind", kind,
		"local_id", localID,
	)
}
