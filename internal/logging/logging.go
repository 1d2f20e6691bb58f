// Package logging builds the root slog logger for the service. Output is
// text on a terminal and JSON otherwise, overridable with LOG_FORMAT;
// verbosity comes from LOG_LEVEL.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns a logger writing to w, honoring the LOG_FORMAT and LOG_LEVEL
// environment variables.
func New(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     Level(os.Getenv("LOG_LEVEL")),
		AddSource: true,
	}

	if useTextFormat(w) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// SetDefault builds the root logger on stdout and installs it as the slog
// default, so package-level slog calls and the migration runner share it.
func SetDefault() *slog.Logger {
	logger := New(os.Stdout)
	slog.SetDefault(logger)
	return logger
}

// Level parses a LOG_LEVEL value, defaulting to info.
func Level(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

func useTextFormat(w io.Writer) bool {
	switch os.Getenv("LOG_FORMAT") {
	case "text":
		return true
	case "json":
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}
