// Package slogger configures the process-wide slog logger.
//
// The level comes from the LOG_LEVEL environment variable when set, otherwise
// from the value passed to Init (normally the log_level config key).
// Valid values: "debug", "info", "warn", "error". Default: "info".
package slogger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// level holds the dynamic log level so it can be queried at runtime.
var level *slog.LevelVar

// Init installs a TextHandler on stderr as the default logger. stdout is
// left to command output.
func Init(configured string) {
	InitWriter(os.Stderr, configured)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, configured string) {
	s := os.Getenv("LOG_LEVEL")
	if strings.TrimSpace(s) == "" {
		s = configured
	}
	level = &slog.LevelVar{}
	level.Set(ParseLevel(s))

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// Level returns the current slog.Level.
func Level() slog.Level {
	if level == nil {
		return slog.LevelInfo
	}
	return level.Level()
}

// IsDebug returns true when the current log level is debug or lower.
func IsDebug() bool {
	return Level() <= slog.LevelDebug
}

// ParseLevel converts a string log level to slog.Level. Unknown values map
// to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
