package logger

import (
	"io"
	"log/slog"
	"os"
)

// Logger тонкая обёртка над slog с key/value аргументами
type Logger struct {
	l *slog.Logger
}

func NewLogger(jsonOutput bool, level string) *Logger {
	return New(os.Stdout, jsonOutput, level)
}

func New(w io.Writer, jsonOutput bool, level string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler
	if jsonOutput {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return &Logger{l: slog.New(h)}
}

// Nop логгер, который ничего не пишет; удобен в тестах
func Nop() *Logger {
	return New(io.Discard, false, "error")
}

func parseLevel(level string) slog.Level {
	switch level {
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

func (l *Logger) Debug(msg string, args ...any) { l.l.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.l.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.l.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.l.Error(msg, args...) }

// With возвращает логгер с постоянными полями
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l: l.l.With(args...)}
}
