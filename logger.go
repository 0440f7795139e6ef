package kick

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Logger defines the interface for framework logging.
// kick uses structured logging with key-value pairs so that framework
// output (controller mapping, route registration, request telemetry) stays
// parseable regardless of the logging backend.
//
//	logger.Info("Route registered", "method", "GET", "path", "/users")
//
// *slog.Logger satisfies this interface directly.
type Logger interface {
	// Info logs normal lifecycle events such as route registration.
	Info(msg string, args ...any)

	// Error logs failures, including errors reaching the terminal error stage.
	Error(msg string, args ...any)

	// Warn logs unusual but recoverable conditions.
	Warn(msg string, args ...any)

	// Debug logs detailed diagnostics such as per-request completion.
	Debug(msg string, args ...any)
}

// LogLevel is the severity of a tracked request log entry.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// ParseLogLevel converts a configured level name to a LogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	switch LogLevel(strings.ToLower(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug, nil
	case LevelInfo, "":
		return LevelInfo, nil
	case LevelWarn, "warning":
		return LevelWarn, nil
	case LevelError:
		return LevelError, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLogLevel, s)
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// logAt dispatches msg to the logger method matching level.
func logAt(logger Logger, level LogLevel, msg string, args ...any) {
	switch level {
	case LevelDebug:
		logger.Debug(msg, args...)
	case LevelWarn:
		logger.Warn(msg, args...)
	case LevelError:
		logger.Error(msg, args...)
	default:
		logger.Info(msg, args...)
	}
}

// NewLogger builds a slog-backed Logger from the logging configuration.
// Format "json" selects the JSON handler, anything else the text handler.
func NewLogger(cfg LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level.slogLevel()}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), nil
}

type discardLogger struct{}

func (discardLogger) Info(string, ...any)  {}
func (discardLogger) Error(string, ...any) {}
func (discardLogger) Warn(string, ...any)  {}
func (discardLogger) Debug(string, ...any) {}

// NopLogger returns a Logger that drops everything.
func NopLogger() Logger { return discardLogger{} }
