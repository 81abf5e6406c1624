// Package logging provides the slog setup shared by every command and
// package in the processing core, following the level-string convention
// of the teacher CLI's initLogging (internal/cmd/root.go).
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Level parses a log-level string (debug, info, warn, error), defaulting
// to info on anything unrecognised.
func Level(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init builds and installs the default slog.Logger for the process,
// writing structured text to stderr at the given level.
func Init(levelStr string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: Level(levelStr)})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// For returns a child logger tagged with a "component" attribute, used by
// every internal package to identify its log lines.
func For(component string) *slog.Logger {
	return slog.Default().With("component", component)
}
