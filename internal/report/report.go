// Package report assembles the collected host facts into the single
// fixed-field-order summary line that is both the stdout payload and the
// cached value. The field order and spelling are the contract with the
// monitoring system and must not change.
package report

import (
	"fmt"
	"strings"

	"github.com/nickjeffrey/check-linux-security-posture/internal/plugin"
	"github.com/nickjeffrey/check-linux-security-posture/internal/services"
)

// emittedServiceKeys is the exact render order of the service fields.
// cron and ntp are probed for the diagnostic unit count but are not part
// of the emitted schema.
var emittedServiceKeys = []string{
	"selinux", "firewall", "fail2ban", "auditd", "fapolicyd", "aide",
	"arcticwolf", "sentinelone", "crowdstrike", "clamav", "msdefender",
}

// HostFacts is the transient result of one full probe cycle, consumed
// exactly once by SummaryLine.
type HostFacts struct {
	Distribution   string
	DaysSincePatch int
	PatchYear      int
	PatchMonth     int
	PatchDay       int
	Services       services.States
}

// SummaryLine renders the summary in the fixed field order, terminated by
// the performance-data suffix and a newline. Every service field is
// always present so downstream consumers see a stable schema.
func (f *HostFacts) SummaryLine() string {
	var b strings.Builder

	fmt.Fprintf(&b, "linux_version:%s", f.Distribution)
	fmt.Fprintf(&b, " days_since_patch:%d", f.DaysSincePatch)
	fmt.Fprintf(&b, " date_of_last_patch:%s", f.patchDate())

	for _, key := range emittedServiceKeys {
		state, ok := f.Services[key]
		if !ok {
			state = services.StateUnknown
		}
		fmt.Fprintf(&b, " %s:%s", key, state)
	}

	perf := plugin.PerfDatum{Label: "days_since_patch", Value: f.DaysSincePatch}
	fmt.Fprintf(&b, " | %s\n", perf)

	return b.String()
}

// patchDate renders YYYY-MM-DD with zero-padded month and day when the
// date was computed. An uncomputed date renders its raw numeric tokens
// (0-0-0), preserving the long-standing output quirk.
func (f *HostFacts) patchDate() string {
	if f.PatchMonth == 0 || f.PatchDay == 0 {
		return fmt.Sprintf("%d-%d-%d", f.PatchYear, f.PatchMonth, f.PatchDay)
	}
	return fmt.Sprintf("%d-%02d-%02d", f.PatchYear, f.PatchMonth, f.PatchDay)
}
