// Package plugin implements the monitoring-plugin output conventions:
// the four-value exit status enumeration and performance-data rendering.
// Checks print exactly one line to stdout and exit with the status code;
// the poller interprets both.
package plugin

import "fmt"

// Status is a monitoring-plugin exit status.
type Status int

const (
	StatusOK       Status = 0
	StatusWarning  Status = 1
	StatusCritical Status = 2
	StatusUnknown  Status = 3
)

// String returns the conventional upper-case status label.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "WARNING"
	case StatusCritical:
		return "CRITICAL"
	case StatusUnknown:
		return "UNKNOWN"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// PerfDatum is a single performance-data token. Warn, Crit, Min and Max
// are rendered verbatim; leave them empty to delegate threshold
// evaluation to the caller.
type PerfDatum struct {
	Label string
	Value int
	Warn  string
	Crit  string
	Min   string
	Max   string
}

// String renders the token in label=value;warn;crit;min;max form.
func (p PerfDatum) String() string {
	return fmt.Sprintf("%s=%d;%s;%s;%s;%s", p.Label, p.Value, p.Warn, p.Crit, p.Min, p.Max)
}

// Message prepends the status label to a diagnostic, the shape used for
// CRITICAL and UNKNOWN single-line output.
func Message(s Status, format string, args ...any) string {
	return s.String() + ": " + fmt.Sprintf(format, args...)
}
