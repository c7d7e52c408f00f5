// Package logging configures the global slog logger. All log output goes
// to stderr: stdout is reserved for the single plugin summary line.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Setup configures the global slog logger. Non-verbose runs log at warn
// level only, so a healthy check stays silent apart from its stdout line.
func Setup(format string, verbose bool) {
	var w io.Writer = os.Stderr
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}
