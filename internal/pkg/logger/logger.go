// Package logger emits the gateway's structured JSON log stream. This is
// transport- and lifecycle-level output only; the record of what happened to
// the data is the audit trail, never a log line.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	base     *slog.Logger
	initOnce sync.Once
)

// Init installs the process-wide JSON logger at the configured level. Later
// calls are no-ops, so tests and helpers may call it freely.
func Init(level string) {
	initOnce.Do(func() {
		handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLevel(level),
		})
		base = slog.New(handler)
		slog.SetDefault(base)
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

func get() *slog.Logger {
	if base == nil {
		Init("info")
	}
	return base
}

func Debug(msg string, args ...any) {
	get().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	get().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	get().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	get().Error(msg, args...)
}

// LogError records err under the "error" key and drops nil errors, so call
// sites need no guard of their own.
func LogError(ctx context.Context, err error, msg string, args ...any) {
	if err == nil {
		return
	}
	args = append(args, slog.String("error", err.Error()))
	get().ErrorContext(ctx, msg, args...)
}
