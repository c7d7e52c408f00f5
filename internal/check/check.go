// Package check orchestrates the posture pipeline: cache lookup, then
// environment probing, distribution identification, patch recency, the
// service-state registry and finally summary rendering plus cache write.
package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nickjeffrey/check-linux-security-posture/internal/cache"
	"github.com/nickjeffrey/check-linux-security-posture/internal/config"
	"github.com/nickjeffrey/check-linux-security-posture/internal/distro"
	"github.com/nickjeffrey/check-linux-security-posture/internal/execx"
	"github.com/nickjeffrey/check-linux-security-posture/internal/patch"
	"github.com/nickjeffrey/check-linux-security-posture/internal/plugin"
	"github.com/nickjeffrey/check-linux-security-posture/internal/probe"
	"github.com/nickjeffrey/check-linux-security-posture/internal/report"
	"github.com/nickjeffrey/check-linux-security-posture/internal/services"
)

// Runner holds the wired pipeline stages. All mutable aggregation lives
// in the HostFacts value threaded through one Run call; the Runner itself
// carries no state between runs.
type Runner struct {
	Prober    *probe.Prober
	Patch     *patch.Calculator
	Registry  *services.Registry
	Cache     *cache.Cache
	SkipCache bool
}

// New wires a Runner from configuration with the conventional host paths.
func New(cfg *config.Config) (*Runner, error) {
	catalog, err := services.LoadCatalog(cfg.Catalog.File)
	if err != nil {
		return nil, fmt.Errorf("loading service catalog: %w", err)
	}

	run := execx.WithTimeout(cfg.Probe.Timeout)

	return &Runner{
		Prober: &probe.Prober{Run: run},
		Patch:  &patch.Calculator{Run: run},
		Registry: &services.Registry{
			Catalog:       catalog,
			SystemctlPath: probe.DefaultSystemctlPath,
			Run:           run,
		},
		Cache: &cache.Cache{Path: cfg.Cache.Path, TTL: cfg.Cache.TTL},
	}, nil
}

// Run executes the pipeline and returns the exit status plus the exact
// line to print (newline included). Failure paths return a one-line
// diagnostic and never write the cache.
func (r *Runner) Run(ctx context.Context) (plugin.Status, string) {
	if !r.SkipCache {
		line, hit, err := r.Cache.Check()
		if err != nil {
			return plugin.StatusUnknown, plugin.Message(plugin.StatusUnknown, "%v", err) + "\n"
		}
		if hit {
			return plugin.StatusOK, line + "\n"
		}
	}

	env, err := r.Prober.Locate()
	if err != nil {
		return plugin.StatusCritical, plugin.Message(plugin.StatusCritical, "%v", err) + "\n"
	}

	kernel, err := r.Prober.KernelName(ctx, env.Uname)
	if err != nil {
		return statusForProbeError(err), plugin.Message(statusForProbeError(err), "%v", err) + "\n"
	}
	if err := probe.VerifyLinux(kernel); err != nil {
		return plugin.StatusCritical, plugin.Message(plugin.StatusCritical, "%v", err) + "\n"
	}

	facts := &report.HostFacts{Distribution: distro.Unknown}

	if tag, err := distro.Identify(env.OSRelease); err == nil {
		facts.Distribution = tag
	} else {
		// Prober verified the file exists; a read failure here is
		// best-effort territory, the tag stays unknown.
		slog.Debug("distribution identification failed", "error", err)
	}

	recency := r.Patch.LastPatch(ctx)
	facts.DaysSincePatch = recency.Days
	facts.PatchYear, facts.PatchMonth, facts.PatchDay = recency.Year, recency.Month, recency.Day

	r.Registry.SystemctlPath = env.Systemctl
	r.Registry.GetenforcePath = env.Getenforce
	facts.Services = r.Registry.Collect(ctx)

	line := facts.SummaryLine()

	if err := r.Cache.Write(line); err != nil {
		return plugin.StatusUnknown, plugin.Message(plugin.StatusUnknown, "%v", err) + "\n"
	}

	return plugin.StatusOK, line
}

// statusForProbeError maps a failed external invocation to a plugin
// status: an expired deadline is UNKNOWN (the hardening contract for hung
// host tools), anything else on the required uname path is CRITICAL.
func statusForProbeError(err error) plugin.Status {
	if execx.IsTimeout(err) || errors.Is(err, context.Canceled) {
		return plugin.StatusUnknown
	}
	return plugin.StatusCritical
}
