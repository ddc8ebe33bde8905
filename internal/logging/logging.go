// Package logging provides slog-based logging for the text tools server
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Custom logging levels (compatible with slog)
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug // -4
	LevelInfo  = slog.LevelInfo  // 0
	LevelWarn  = slog.LevelWarn  // 4
	LevelError = slog.LevelError // 8
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Level]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

// ParseLevel converts a level name from configuration into a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "fatal":
		return LevelFatal, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// LoggerFactory is a factory for creating logger instances.
// All loggers share the factory's handler, so loggers created for different
// components write to the same destination with the same level.
type LoggerFactory struct {
	writer  io.Writer
	handler slog.Handler
}

// NewLoggerFactory creates a new factory writing to stderr at info level.
// Stdout is reserved for the stdio transport, so log output never goes there.
func NewLoggerFactory() *LoggerFactory {
	return NewLoggerFactoryWithConfig(os.Stderr, LevelInfo)
}

// NewLoggerFactoryWithConfig creates a new factory with a custom writer and level
func NewLoggerFactoryWithConfig(w io.Writer, level slog.Level) *LoggerFactory {
	if w == nil {
		w = os.Stderr
	}

	options := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: customizeLogLevels,
	}

	return &LoggerFactory{
		writer:  w,
		handler: slog.NewTextHandler(w, options),
	}
}

// SetLevel sets the logging level for the factory.
// slog handlers cannot change level after creation, so a new handler is
// built on the factory's writer. Loggers created before the call keep the
// old level.
func (f *LoggerFactory) SetLevel(level slog.Level) {
	options := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: customizeLogLevels,
	}
	f.handler = slog.NewTextHandler(f.writer, options)
}

// CreateLogger creates a new logger tagged with the component name
func (f *LoggerFactory) CreateLogger(name string) *slog.Logger {
	return slog.New(f.handler).With("component", name)
}

// customizeLogLevels maps the custom levels to their names in log output
func customizeLogLevels(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		if name, ok := levelNames[level]; ok {
			return slog.Attr{Key: a.Key, Value: slog.StringValue(name)}
		}
	}
	return a
}

// Trace logs at trace level
func Trace(logger *slog.Logger, msg string, args ...any) {
	if logger == nil {
		return
	}
	logger.Log(context.TODO(), LevelTrace, msg, args...)
}

// Debug logs at debug level
func Debug(logger *slog.Logger, msg string, args ...any) {
	if logger == nil {
		return
	}
	logger.Debug(msg, args...)
}

// Info logs at info level
func Info(logger *slog.Logger, msg string, args ...any) {
	if logger == nil {
		return
	}
	logger.Info(msg, args...)
}

// Warn logs at warn level
func Warn(logger *slog.Logger, msg string, args ...any) {
	if logger == nil {
		return
	}
	logger.Warn(msg, args...)
}

// Error logs at error level
func Error(logger *slog.Logger, msg string, args ...any) {
	if logger == nil {
		return
	}
	logger.Error(msg, args...)
}

// Fatal logs at fatal level and exits
func Fatal(logger *slog.Logger, msg string, args ...any) {
	if logger != nil {
		logger.Log(context.TODO(), LevelFatal, msg, args...)
	}
	os.Exit(1)
}
