package check

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nickjeffrey/check-linux-security-posture/internal/cache"
	"github.com/nickjeffrey/check-linux-security-posture/internal/patch"
	"github.com/nickjeffrey/check-linux-security-posture/internal/plugin"
	"github.com/nickjeffrey/check-linux-security-posture/internal/probe"
	"github.com/nickjeffrey/check-linux-security-posture/internal/services"
)

// hostFixture simulates a host: fake binaries, os-release, unit files,
// apt cache and a counting command runner.
type hostFixture struct {
	runner    *Runner
	execCalls *int
}

func executable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

// newHostFixture builds a representative Ubuntu host scenario: APT
// cache 70 days old, firewalld and fail2ban installed and active, no
// SELinux tooling, no AIDE database.
func newHostFixture(t *testing.T) *hostFixture {
	t.Helper()
	bin := t.TempDir()
	now := time.Now()

	osRelease := filepath.Join(bin, "os-release")
	if err := os.WriteFile(osRelease, []byte("PRETTY_NAME=\"Ubuntu 22.04.3 LTS\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	aptCache := filepath.Join(bin, "pkgcache.bin")
	if err := os.WriteFile(aptCache, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := now.Add(-70 * 24 * time.Hour)
	if err := os.Chtimes(aptCache, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	unitDir := t.TempDir()
	for _, unit := range []string{"firewalld.service", "fail2ban.service"} {
		if err := os.WriteFile(filepath.Join(unitDir, unit), []byte("[Unit]\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	catalog, err := services.DefaultCatalog()
	if err != nil {
		t.Fatal(err)
	}
	catalog.UnitDirs = []string{unitDir}

	listing := `UNIT               LOAD   ACTIVE SUB     DESCRIPTION
firewalld.service  loaded active running firewalld - dynamic firewall daemon
fail2ban.service   loaded active running Fail2Ban Service
`

	calls := 0
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls++
		switch {
		case strings.HasSuffix(name, "uname"):
			return []byte("Linux\n"), nil
		case strings.HasSuffix(name, "systemctl"):
			return []byte(listing), nil
		}
		return nil, os.ErrNotExist
	}

	prober := &probe.Prober{
		UnamePaths:     []string{executable(t, bin, "uname")},
		SystemctlPath:  executable(t, bin, "systemctl"),
		GetenforcePath: filepath.Join(bin, "getenforce"), // absent
		OSReleasePath:  osRelease,
		Run:            run,
	}

	return &hostFixture{
		runner: &Runner{
			Prober: prober,
			Patch: &patch.Calculator{
				AptCachePath: aptCache,
				RPMPath:      filepath.Join(bin, "rpm"), // absent
				Run:          run,
				Now:          func() time.Time { return now },
			},
			Registry: &services.Registry{
				Catalog:   catalog,
				AideDBDir: filepath.Join(bin, "aide"), // absent
				Run:       run,
			},
			Cache: &cache.Cache{
				Path: filepath.Join(t.TempDir(), "posture.cache"),
				TTL:  24 * time.Hour,
			},
		},
		execCalls: &calls,
	}
}

func TestRunEndToEnd(t *testing.T) {
	f := newHostFixture(t)

	status, line := f.runner.Run(context.Background())
	if status != plugin.StatusOK {
		t.Fatalf("Run() status = %v, output %q, want OK", status, line)
	}

	wantFragments := []string{
		"linux_version:Ubuntu22.04",
		"days_since_patch:70",
		"selinux:NotInstalled firewall:active fail2ban:active auditd:no fapolicyd:no aide:no",
		"| days_since_patch=70;;;;",
	}
	for _, frag := range wantFragments {
		if !strings.Contains(line, frag) {
			t.Errorf("output %q missing %q", line, frag)
		}
	}
}

func TestRunCacheIdempotence(t *testing.T) {
	f := newHostFixture(t)

	status1, line1 := f.runner.Run(context.Background())
	if status1 != plugin.StatusOK {
		t.Fatalf("first Run() status = %v", status1)
	}
	callsAfterFirst := *f.execCalls

	status2, line2 := f.runner.Run(context.Background())
	if status2 != plugin.StatusOK {
		t.Fatalf("second Run() status = %v", status2)
	}

	if line1 != line2 {
		t.Errorf("cached output differs:\n  first  %q\n  second %q", line1, line2)
	}
	if *f.execCalls != callsAfterFirst {
		t.Errorf("second run executed %d probe commands, want 0",
			*f.execCalls-callsAfterFirst)
	}
}

func TestRunCacheExpiryReprobes(t *testing.T) {
	f := newHostFixture(t)

	if _, line := f.runner.Run(context.Background()); line == "" {
		t.Fatal("first run produced no output")
	}

	old := time.Now().Add(-25 * time.Hour)
	if err := os.Chtimes(f.runner.Cache.Path, old, old); err != nil {
		t.Fatal(err)
	}
	callsBefore := *f.execCalls

	status, _ := f.runner.Run(context.Background())
	if status != plugin.StatusOK {
		t.Fatalf("Run() after expiry status = %v", status)
	}
	if *f.execCalls == callsBefore {
		t.Error("expired cache should force a fresh probe cycle")
	}

	info, err := os.Stat(f.runner.Cache.Path)
	if err != nil {
		t.Fatalf("cache file missing after re-probe: %v", err)
	}
	if info.ModTime().Before(time.Now().Add(-time.Minute)) {
		t.Error("cache file was not rewritten after expiry")
	}
}

func TestRunSkipCache(t *testing.T) {
	f := newHostFixture(t)
	f.runner.SkipCache = true

	f.runner.Run(context.Background())
	callsAfterFirst := *f.execCalls

	f.runner.Run(context.Background())
	if *f.execCalls == callsAfterFirst {
		t.Error("SkipCache run should probe even with a valid cache present")
	}
}

func TestRunMissingPreconditionIsCriticalWithoutCacheWrite(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *hostFixture, t *testing.T)
	}{
		{"uname missing", func(f *hostFixture, t *testing.T) {
			f.runner.Prober.UnamePaths = []string{filepath.Join(t.TempDir(), "uname")}
		}},
		{"systemctl missing", func(f *hostFixture, t *testing.T) {
			f.runner.Prober.SystemctlPath = filepath.Join(t.TempDir(), "systemctl")
		}},
		{"os-release missing", func(f *hostFixture, t *testing.T) {
			f.runner.Prober.OSReleasePath = filepath.Join(t.TempDir(), "os-release")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHostFixture(t)
			tt.mutate(f, t)

			status, line := f.runner.Run(context.Background())
			if status != plugin.StatusCritical {
				t.Errorf("Run() status = %v, want CRITICAL", status)
			}
			if !strings.HasPrefix(line, "CRITICAL: ") {
				t.Errorf("output %q should carry the CRITICAL diagnostic prefix", line)
			}
			if _, err := os.Stat(f.runner.Cache.Path); !os.IsNotExist(err) {
				t.Error("failed run must not create a cache file")
			}
		})
	}
}

func TestRunNonLinuxKernelIsCritical(t *testing.T) {
	f := newHostFixture(t)
	inner := f.runner.Prober.Run
	f.runner.Prober.Run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if strings.HasSuffix(name, "uname") {
			return []byte("Darwin\n"), nil
		}
		return inner(ctx, name, args...)
	}

	status, line := f.runner.Run(context.Background())
	if status != plugin.StatusCritical {
		t.Errorf("Run() status = %v, want CRITICAL for Darwin", status)
	}
	if !strings.Contains(line, "Linux only") {
		t.Errorf("output %q should explain the Linux-only contract", line)
	}
	if _, err := os.Stat(f.runner.Cache.Path); !os.IsNotExist(err) {
		t.Error("unsupported-platform run must not create a cache file")
	}
}

func TestRunHungUnameIsUnknown(t *testing.T) {
	f := newHostFixture(t)
	f.runner.Prober.Run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, context.DeadlineExceeded
	}

	status, _ := f.runner.Run(context.Background())
	if status != plugin.StatusUnknown {
		t.Errorf("Run() status = %v, want UNKNOWN for timed-out probe", status)
	}
}
