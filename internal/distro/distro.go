// Package distro classifies the host distribution from /etc/os-release
// into a short canonical tag such as RHEL8.9 or Ubuntu22.04.
package distro

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Unknown is the tag used when no known distribution pattern matches.
const Unknown = "unknown"

// canonicalizers is an ordered table of (pattern, tag template) pairs.
// The first pattern matching a PRETTY_NAME value renders the tag; trailing
// codenames like "(Ootpa)" are dropped because only the captured portion
// is rendered.
var canonicalizers = []struct {
	re  *regexp.Regexp
	out string
}{
	{regexp.MustCompile(`CentOS Linux (\d+)`), "CentOS$1"},
	{regexp.MustCompile(`CentOS Stream (\d+)`), "CentOS$1"},
	{regexp.MustCompile(`Ubuntu (\d+\.\d+)`), "Ubuntu$1"},
	{regexp.MustCompile(`Debian GNU/Linux (\d+)`), "Debian$1"},
	{regexp.MustCompile(`Oracle Linux (?:Server )?(\d+(?:\.\d+)?)`), "OL$1"},
	{regexp.MustCompile(`Red Hat Enterprise Linux (\d+(?:\.\d+)?)`), "RHEL$1"},
	{regexp.MustCompile(`Rocky Linux (\d+(?:\.\d+)?)`), "Rocky$1"},
	{regexp.MustCompile(`Alma[Ll]inux (\d+(?:\.\d+)?)`), "Alma$1"},
}

// Identify reads an os-release file and returns the canonical short tag.
// Quote characters are stripped before matching. When the file carries
// duplicate PRETTY_NAME lines the last matching line wins. A file with no
// recognized PRETTY_NAME yields Unknown without error.
func Identify(osReleasePath string) (string, error) {
	f, err := os.Open(osReleasePath)
	if err != nil {
		return Unknown, fmt.Errorf("opening %s: %w", osReleasePath, err)
	}
	defer f.Close()

	tag := Unknown

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.ReplaceAll(scanner.Text(), `"`, "")
		value, ok := strings.CutPrefix(line, "PRETTY_NAME=")
		if !ok {
			continue
		}
		if t := Canonicalize(value); t != Unknown {
			tag = t
		}
	}
	if err := scanner.Err(); err != nil {
		return Unknown, fmt.Errorf("reading %s: %w", osReleasePath, err)
	}

	return tag, nil
}

// Canonicalize maps a PRETTY_NAME value to its short tag, with all
// whitespace stripped from the result.
func Canonicalize(pretty string) string {
	for _, c := range canonicalizers {
		if m := c.re.FindStringSubmatchIndex(pretty); m != nil {
			tag := string(c.re.ExpandString(nil, c.out, pretty, m))
			return strings.Join(strings.Fields(tag), "")
		}
	}
	return Unknown
}
