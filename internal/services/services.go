// Package services probes the activation state of a fixed catalog of
// security subsystems: SELinux and AIDE through filesystem/command
// probes, everything else through one bulk service-manager query.
package services

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nickjeffrey/check-linux-security-posture/internal/execx"
)

// Sentinel states for keys not backed by a unit file.
const (
	StateNotInstalled = "no"      // unit file absent from every unit dir
	StateUnknown      = "unknown" // probe ran but the unit never appeared in the listing
)

// SELinux states reported by the enforcement probe.
const (
	SELinuxPermissive   = "Permissive"
	SELinuxEnforcing    = "Enforcing"
	SELinuxDisabled     = "Disabled"
	SELinuxNotInstalled = "NotInstalled"
)

// DefaultAideDBDir is the AIDE integrity database location. Presence of
// the directory means AIDE is installed; whether scans actually run is
// not knowable without elevated read access and is not attempted.
const DefaultAideDBDir = "/var/lib/aide"

// States maps service keys to their probed state.
type States map[string]string

// Registry probes service states. Catalog and SystemctlPath must be set;
// GetenforcePath empty means SELinux tooling is absent.
type Registry struct {
	Catalog        *Catalog
	SystemctlPath  string
	GetenforcePath string
	AideDBDir      string
	Run            execx.Runner
}

func (r *Registry) aideDBDir() string {
	if r.AideDBDir != "" {
		return r.AideDBDir
	}
	return DefaultAideDBDir
}

// Collect populates the full registry: every catalog key is present in
// the returned map, plus the selinux and aide probe results.
func (r *Registry) Collect(ctx context.Context) States {
	states := States{
		"selinux": r.selinuxState(ctx),
		"aide":    r.aideState(),
	}

	probeList := r.discover(states)
	if len(probeList) > 0 {
		r.bulkQuery(ctx, probeList, states)
	}

	return states
}

// selinuxState classifies getenforce output. Substrings are checked in
// Permissive, Enforcing, Disabled order per line, and the last matching
// line wins overall.
func (r *Registry) selinuxState(ctx context.Context) string {
	if r.GetenforcePath == "" {
		return SELinuxNotInstalled
	}

	out, err := r.Run(ctx, r.GetenforcePath)
	if err != nil {
		slog.Debug("getenforce failed", "error", err)
		return StateUnknown
	}

	state := StateUnknown
	for _, line := range strings.Split(string(out), "\n") {
		switch {
		case strings.Contains(line, SELinuxPermissive):
			state = SELinuxPermissive
		case strings.Contains(line, SELinuxEnforcing):
			state = SELinuxEnforcing
		case strings.Contains(line, SELinuxDisabled):
			state = SELinuxDisabled
		}
	}
	return state
}

// aideState reports whether the AIDE database directory exists.
func (r *Registry) aideState() string {
	if info, err := os.Stat(r.aideDBDir()); err == nil && info.IsDir() {
		return "yes"
	}
	return StateNotInstalled
}

// discover finds which catalog keys have a unit file on this host.
// Keys with no unit file on disk are recorded as not installed and left
// out of the bulk query; keys with one get a provisional unknown state
// until the listing reports them.
func (r *Registry) discover(states States) map[string]string {
	probeList := make(map[string]string)

	for _, entry := range r.Catalog.Services {
		states[entry.Key] = StateNotInstalled
		for _, unit := range entry.Units {
			if r.unitFileExists(unit) {
				probeList[entry.Key] = unit
				states[entry.Key] = StateUnknown
				break
			}
		}
	}

	slog.Debug("discovered installed units", "count", len(probeList))
	return probeList
}

func (r *Registry) unitFileExists(unit string) bool {
	for _, dir := range r.Catalog.UnitDirs {
		if _, err := os.Stat(filepath.Join(dir, unit)); err == nil {
			return true
		}
	}
	return false
}

// bulkQuery lists every unit once and fills in the ACTIVE field for each
// discovered key. One invocation amortizes the process spawn over the
// whole catalog.
func (r *Registry) bulkQuery(ctx context.Context, probeList map[string]string, states States) {
	out, err := r.Run(ctx, r.SystemctlPath, "list-units", "--all", "--no-pager", "--plain")
	if err != nil {
		slog.Debug("systemctl list-units failed", "error", err)
		return
	}

	running := 0
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		// Header matched by shape, not position, so banner variations
		// and footer summaries fall through harmlessly.
		if fields[0] == "UNIT" && fields[1] == "LOAD" {
			continue
		}

		for key, unit := range probeList {
			if fields[0] == unit {
				states[key] = fields[2]
			}
		}
		if fields[2] == "active" {
			running++
		}
	}

	slog.Debug("bulk unit query complete", "active_units", running)
}
