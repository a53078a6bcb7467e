// ABOUTME: Default slog logger setup
// ABOUTME: Text logs to stdout, or JSON logs to a file, at a named level
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// ParseLevel maps none|error|warn|info|debug to a slog level. ok is false
// for "none".
func ParseLevel(level string) (lvl slog.Level, ok bool, err error) {
	switch level {
	case "none":
		return 0, false, nil
	case "error":
		return slog.LevelError, true, nil
	case "warn":
		return slog.LevelWarn, true, nil
	case "info":
		return slog.LevelInfo, true, nil
	case "debug":
		return slog.LevelDebug, true, nil
	default:
		return 0, false, fmt.Errorf("unexpected log level %q", level)
	}
}

// Configure installs the default logger. With an empty file it writes text
// to stdout; otherwise it writes JSON to file, which the caller must close.
func Configure(level, file string) (*os.File, error) {
	lvl, enabled, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if !enabled {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return nil, nil
	}

	opts := &slog.HandlerOptions{Level: lvl}

	if file == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, opts)))
		return nil, nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(f, opts)))
	return f, nil
}
