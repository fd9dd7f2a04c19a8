// Package logging configures the process-wide slog logger and reports
// evaluation progress through it.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options selects the log level, handler format and an optional log file.
type Options struct {
	Level  slog.Level
	Format string // "text" or "json"
	File   string
}

// Init creates and sets the package-level default slog logger. Records go
// to stderr and, when File is set, are appended to that file as well. The
// returned function closes the file.
func Init(opts Options) (func() error, error) {
	var w io.Writer = os.Stderr
	closer := func() error { return nil }

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) // #nosec G304 -- configured log path
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closer = f.Close
	}

	slog.SetDefault(slog.New(NewHandler(w, opts)))
	return closer, nil
}

// NewHandler builds the handler Init installs, writing to w.
func NewHandler(w io.Writer, opts Options) slog.Handler {
	hopts := &slog.HandlerOptions{Level: opts.Level}
	if opts.Format == "json" {
		return slog.NewJSONHandler(w, hopts)
	}
	return slog.NewTextHandler(w, hopts)
}

// ParseLevel converts a string ("debug", "info", "warn", "error") to slog.Level.
// Unknown strings default to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
