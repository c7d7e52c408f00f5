// Package patch computes how many whole days have elapsed since the last
// system package update, using the APT cache mtime on Debian-family hosts
// and the newest rpm install record on RHEL-family hosts.
package patch

import (
	"context"
	"log/slog"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nickjeffrey/check-linux-security-posture/internal/execx"
)

// DaysUnknown is the sentinel emitted when no packaging-system source of
// truth exists on the host.
const DaysUnknown = 9999

// Default source locations.
var (
	DefaultAptCachePath = "/var/cache/apt/pkgcache.bin"
	DefaultRPMPath      = "/usr/bin/rpm"
)

// Result is the computed patch recency. Year/Month/Day stay zero when the
// calendar date could not be determined; the formatter renders whatever is
// here as raw numeric tokens.
type Result struct {
	Days  int
	Year  int
	Month int
	Day   int
}

// Calculator determines patch recency. Zero-value path fields fall back
// to the conventional locations; Now defaults to time.Now.
type Calculator struct {
	AptCachePath string
	RPMPath      string
	Run          execx.Runner
	Now          func() time.Time
}

const secondsPerDay = 86400

// rpmTimestamp matches the trailing human-readable timestamp of an
// `rpm -qa --last` record: weekday, day, month name, year, time, optional
// AM/PM, timezone.
var rpmTimestamp = regexp.MustCompile(
	`(?:Mon|Tue|Wed|Thu|Fri|Sat|Sun)\s+(\d{1,2})\s+(\w{3})\s+(\d{4})\s+(\d{2}):(\d{2}):(\d{2})\s+(?:(AM|PM)\s+)?\S+\s*$`)

var monthsByName = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

func (c *Calculator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Calculator) aptCachePath() string {
	if c.AptCachePath != "" {
		return c.AptCachePath
	}
	return DefaultAptCachePath
}

func (c *Calculator) rpmPath() string {
	if c.RPMPath != "" {
		return c.RPMPath
	}
	return DefaultRPMPath
}

// LastPatch returns the patch recency for this host. When neither the APT
// cache file nor an rpm binary exists, Days is DaysUnknown and the date
// stays unset. A parse failure on the rpm path degrades the same way
// rather than failing the run.
func (c *Calculator) LastPatch(ctx context.Context) Result {
	if info, err := os.Stat(c.aptCachePath()); err == nil {
		return c.fromAptCache(info.ModTime())
	}

	rpm := c.rpmPath()
	if _, err := os.Stat(rpm); err == nil && unix.Access(rpm, unix.X_OK) == nil {
		return c.fromRPM(ctx, rpm)
	}

	slog.Debug("no packaging-system patch source found", "apt_cache", c.aptCachePath(), "rpm", rpm)
	return Result{Days: DaysUnknown}
}

// fromAptCache derives recency from the package cache mtime. A negative
// elapsed time (future-dated cache file) is flipped positive so the
// report never shows a negative day count. The rpm path deliberately does
// not do this; see the asymmetry note in DESIGN.md.
func (c *Calculator) fromAptCache(mtime time.Time) Result {
	elapsed := c.now().Sub(mtime).Seconds()
	days := int(math.Round(math.Abs(elapsed) / secondsPerDay))

	y, m, d := mtime.Date()
	slog.Debug("patch recency from apt cache", "mtime", mtime, "days", days)
	return Result{Days: days, Year: y, Month: int(m), Day: d}
}

// fromRPM derives recency from the newest record of `rpm -qa --last`.
func (c *Calculator) fromRPM(ctx context.Context, rpm string) Result {
	out, err := c.Run(ctx, rpm, "-qa", "--last")
	if err != nil {
		slog.Debug("rpm query failed", "error", err)
		return Result{Days: DaysUnknown}
	}

	line, _, _ := strings.Cut(string(out), "\n")
	instant, ok := parseRPMTimestamp(line, time.Local)
	if !ok {
		slog.Debug("could not parse rpm install timestamp", "line", line)
		return Result{Days: DaysUnknown}
	}

	elapsed := c.now().Sub(instant).Seconds()
	days := int(math.Round(elapsed / secondsPerDay))

	y, m, d := instant.Date()
	slog.Debug("patch recency from rpm", "instant", instant, "days", days)
	return Result{Days: days, Year: y, Month: int(m), Day: d}
}

// parseRPMTimestamp extracts the install instant from one rpm --last
// record. Unrecognized month names report failure instead of a bogus
// instant.
func parseRPMTimestamp(line string, loc *time.Location) (time.Time, bool) {
	m := rpmTimestamp.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, false
	}

	month, ok := monthsByName[m[2]]
	if !ok {
		return time.Time{}, false
	}

	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	sec, _ := strconv.Atoi(m[6])

	// Twelve-hour clock when the record carries an AM/PM marker.
	switch m[7] {
	case "PM":
		if hour < 12 {
			hour += 12
		}
	case "AM":
		if hour == 12 {
			hour = 0
		}
	}

	return time.Date(year, month, day, hour, minute, sec, 0, loc), true
}
