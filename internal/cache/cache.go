// Package cache persists the previously emitted summary line so repeated
// polls within the validity window replay it without re-probing the host.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Cache is a single-slot, time-boxed result cache backed by one file.
type Cache struct {
	Path string
	TTL  time.Duration
	Now  func() time.Time
}

func (c *Cache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Check returns the cached summary line when the cache file exists and is
// younger than the TTL. An expired file is deleted and reported as a
// miss. Read errors on an existing file are returned: the check cannot
// tell whether it previously succeeded.
func (c *Cache) Check() (line string, hit bool, err error) {
	info, err := os.Stat(c.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("stat cache %s: %w", c.Path, err)
	}

	age := c.now().Sub(info.ModTime())
	if age >= c.TTL {
		slog.Debug("cache expired", "path", c.Path, "age", age)
		if err := os.Remove(c.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", false, fmt.Errorf("removing expired cache %s: %w", c.Path, err)
		}
		return "", false, nil
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return "", false, fmt.Errorf("reading cache %s: %w", c.Path, err)
	}

	slog.Debug("cache hit", "path", c.Path, "age", age)
	return strings.TrimSpace(string(data)), true, nil
}

// Write persists the summary line unless a cache file already exists.
// The O_EXCL create means the first writer after expiry wins and two
// racing invocations cannot corrupt the file.
func (c *Cache) Write(line string) error {
	f, err := os.OpenFile(c.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			slog.Debug("cache already written by a concurrent run", "path", c.Path)
			return nil
		}
		return fmt.Errorf("creating cache %s: %w", c.Path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("writing cache %s: %w", c.Path, err)
	}
	return nil
}
