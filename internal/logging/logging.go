// Package logging provides structured logging for the read engine using
// Go's slog package.
package logging

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	// OperationIDKey is the context key for a per-Open() correlation ID.
	OperationIDKey ContextKey = "operation_id"
)

var (
	// defaultLogger is the global logger instance.
	defaultLogger *slog.Logger
)

func init() {
	InitLogger(LevelInfo, FormatAuto)
}

// Level represents a log level.
type Level int

const (
	// LevelDebug is for debug messages.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// Format represents a log output format.
type Format int

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON Format = iota
	// FormatText outputs logs in human-readable text format.
	FormatText
	// FormatAuto picks Text when stdout is a terminal and JSON otherwise,
	// matching the convention of piping structured logs to a collector
	// but keeping a human's terminal readable.
	FormatAuto
)

// resolveFormat turns FormatAuto into a concrete choice.
func resolveFormat(f Format) Format {
	if f != FormatAuto {
		return f
	}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return FormatText
	}
	return FormatJSON
}

// InitLogger initializes the global logger with the specified level and format.
func InitLogger(level Level, format Format) {
	var slogLevel slog.Level
	switch level {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelInfo:
		slogLevel = slog.LevelInfo
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if resolveFormat(format) == FormatJSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// GetLogger returns the global logger instance.
func GetLogger() *slog.Logger {
	return defaultLogger
}

// NewOperationID mints a correlation ID for a single Open() call, so log
// lines from page faults, schema loading, and WAL scanning during one open
// can be grouped even when several databases are open concurrently.
func NewOperationID() string {
	return uuid.NewString()
}

// WithOperationID attaches an operation ID to ctx.
func WithOperationID(ctx context.Context, operationID string) context.Context {
	return context.WithValue(ctx, OperationIDKey, operationID)
}

// GetOperationID retrieves the operation ID from ctx, or "" if absent.
func GetOperationID(ctx context.Context) string {
	if id, ok := ctx.Value(OperationIDKey).(string); ok {
		return id
	}
	return ""
}

// LoggerFromContext returns a logger with context values attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger := defaultLogger
	if id := GetOperationID(ctx); id != "" {
		logger = logger.With("operation_id", id)
	}
	return logger
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

// DebugContext logs a debug message with context.
func DebugContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Debug(msg, args...)
}

// InfoContext logs an info message with context.
func InfoContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Info(msg, args...)
}

// WarnContext logs a warning message with context.
func WarnContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Warn(msg, args...)
}

// ErrorContext logs an error message with context.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Error(msg, args...)
}

// DatabaseOpened logs a successful open with a human-readable file size
// alongside the raw byte count, so an operator scanning logs doesn't have
// to do the division themselves.
func DatabaseOpened(ctx context.Context, path string, sizeBytes int64, pageSize int, pageCount uint32, args ...any) {
	allArgs := []any{
		"path", path,
		"size_bytes", sizeBytes,
		"size", humanize.Bytes(uint64(sizeBytes)),
		"page_size", pageSize,
		"page_count", pageCount,
	}
	allArgs = append(allArgs, args...)
	LoggerFromContext(ctx).Info("database_opened", allArgs...)
}

// PageFault logs a page-cache miss that had to be served by the underlying
// source.
func PageFault(ctx context.Context, pageNumber uint32, args ...any) {
	allArgs := []any{"page", pageNumber}
	allArgs = append(allArgs, args...)
	LoggerFromContext(ctx).Debug("page_fault", allArgs...)
}

// CorruptPage logs a detected B-tree or record corruption, carrying the
// offending page number per the engine's error taxonomy.
func CorruptPage(ctx context.Context, pageNumber uint32, reason string, args ...any) {
	allArgs := []any{"page", pageNumber, "reason", reason}
	allArgs = append(allArgs, args...)
	LoggerFromContext(ctx).Error("corrupt_page", allArgs...)
}

// SchemaLoaded logs the result of a sqlite_master scan.
func SchemaLoaded(ctx context.Context, tableCount, indexCount int, duration time.Duration, args ...any) {
	allArgs := []any{
		"table_count", tableCount,
		"index_count", indexCount,
		"duration_ms", duration.Milliseconds(),
	}
	allArgs = append(allArgs, args...)
	LoggerFromContext(ctx).Info("schema_loaded", allArgs...)
}

// WALFrameIndexed logs the outcome of scanning a WAL file into a frame
// index at open.
func WALFrameIndexed(ctx context.Context, frameCount int, walBytes int64, effectivePageCount uint32, args ...any) {
	allArgs := []any{
		"frame_count", frameCount,
		"wal_size", humanize.Bytes(uint64(walBytes)),
		"effective_page_count", effectivePageCount,
	}
	allArgs = append(allArgs, args...)
	LoggerFromContext(ctx).Info("wal_frame_indexed", allArgs...)
}

// CacheEvicted logs a page evicted from the bounded page cache to make
// room for a new entry.
func CacheEvicted(ctx context.Context, pageNumber uint32, cacheSize int, args ...any) {
	allArgs := []any{"page", pageNumber, "cache_size", cacheSize}
	allArgs = append(allArgs, args...)
	LoggerFromContext(ctx).Debug("cache_evicted", allArgs...)
}
