// Package log provides structured logging for go-rover.
// It wraps slog with sensible defaults for an onboard controller.
package log

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger  *slog.Logger
	leveler = new(slog.LevelVar)
	once    sync.Once
)

// Init initializes the global logger with the specified level.
// Valid levels: "debug", "info", "warn", "error"
func Init(level string) {
	once.Do(func() {
		leveler.Set(parseLevel(level))

		opts := &slog.HandlerOptions{
			Level: leveler,
		}

		// Use JSON in production, text on the bench
		if os.Getenv("GO_ENV") == "production" {
			logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
		} else {
			logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
		}

		slog.SetDefault(logger)
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetDebug switches the global level between debug and info at runtime.
// The DEBUG:0|1 protocol command lands here.
func SetDebug(enabled bool) {
	if enabled {
		leveler.Set(slog.LevelDebug)
	} else {
		leveler.Set(slog.LevelInfo)
	}
}

// L returns the global logger instance.
func L() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
