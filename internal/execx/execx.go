// Package execx runs external commands with a bounded per-call timeout.
// Every probe in the pipeline goes through a Runner so that a hung host
// utility surfaces as a timeout error instead of blocking the check, and
// so tests can substitute canned output.
package execx

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"time"
)

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// WithTimeout returns a Runner that bounds each invocation with d on top
// of whatever deadline the caller's context already carries.
func WithTimeout(d time.Duration) Runner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		start := time.Now()
		out, err := exec.CommandContext(ctx, name, args...).Output()
		slog.Debug("ran command", "name", name, "args", args, "duration", time.Since(start), "error", err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return out, err
	}
}

// IsTimeout reports whether err came from an expired command deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
