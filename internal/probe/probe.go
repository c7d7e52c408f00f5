// Package probe verifies the host utilities the check depends on and
// classifies the running kernel. Every precondition failure carries a
// one-line diagnostic naming exactly what is missing.
package probe

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/nickjeffrey/check-linux-security-posture/internal/execx"
)

// Default locations of the host utilities. Uname is searched in order;
// the others live at fixed conventional paths.
var (
	DefaultUnamePaths     = []string{"/bin/uname", "/usr/bin/uname"}
	DefaultSystemctlPath  = "/usr/bin/systemctl"
	DefaultGetenforcePath = "/usr/sbin/getenforce"
	DefaultOSReleasePath  = "/etc/os-release"
)

// Kernels this check can name but refuses to run on. Linux is the only
// supported kernel; anything outside this set is unrecognized.
var foreignKernels = []string{"AIX", "HP-UX", "SunOS", "FreeBSD", "NetBSD", "OpenBSD", "Darwin"}

// PreconditionError reports a missing or unusable required tool or file.
type PreconditionError struct {
	What string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.What
}

// UnsupportedPlatformError reports a non-Linux kernel.
type UnsupportedPlatformError struct {
	Kernel string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %s: this check runs on Linux only", e.Kernel)
}

// Env holds the resolved locations of the host utilities. Getenforce is
// empty when SELinux tooling is absent, which is not an error.
type Env struct {
	Uname      string
	Systemctl  string
	Getenforce string
	OSRelease  string
}

// Prober locates required utilities. Zero-value fields fall back to the
// conventional paths above; tests point them at fixtures.
type Prober struct {
	UnamePaths     []string
	SystemctlPath  string
	GetenforcePath string
	OSReleasePath  string
	Run            execx.Runner
}

func (p *Prober) unamePaths() []string {
	if len(p.UnamePaths) > 0 {
		return p.UnamePaths
	}
	return DefaultUnamePaths
}

func (p *Prober) systemctlPath() string {
	if p.SystemctlPath != "" {
		return p.SystemctlPath
	}
	return DefaultSystemctlPath
}

func (p *Prober) getenforcePath() string {
	if p.GetenforcePath != "" {
		return p.GetenforcePath
	}
	return DefaultGetenforcePath
}

func (p *Prober) osReleasePath() string {
	if p.OSReleasePath != "" {
		return p.OSReleasePath
	}
	return DefaultOSReleasePath
}

// Locate verifies all preconditions and returns the resolved environment.
// The SELinux query tool is optional: absent is fine, but present and not
// executable is a misconfiguration and fails the check.
func (p *Prober) Locate() (*Env, error) {
	env := &Env{}

	for _, candidate := range p.unamePaths() {
		if isExecutable(candidate) {
			env.Uname = candidate
			break
		}
	}
	if env.Uname == "" {
		return nil, &PreconditionError{
			What: fmt.Sprintf("uname not found or not executable at %s", strings.Join(p.unamePaths(), " or ")),
		}
	}

	if _, err := os.Stat(p.osReleasePath()); err != nil {
		return nil, &PreconditionError{What: fmt.Sprintf("cannot read %s", p.osReleasePath())}
	}
	env.OSRelease = p.osReleasePath()

	sc := p.systemctlPath()
	if !isExecutable(sc) {
		return nil, &PreconditionError{What: fmt.Sprintf("systemctl not found or not executable at %s", sc)}
	}
	env.Systemctl = sc

	ge := p.getenforcePath()
	if _, err := os.Stat(ge); err == nil {
		if !isExecutable(ge) {
			return nil, &PreconditionError{What: fmt.Sprintf("%s exists but is not executable", ge)}
		}
		env.Getenforce = ge
	}

	return env, nil
}

// KernelName runs uname (no arguments: the default output is the kernel
// name) and reports the trimmed result.
func (p *Prober) KernelName(ctx context.Context, unamePath string) (string, error) {
	out, err := p.Run(ctx, unamePath)
	if err != nil {
		return "", fmt.Errorf("running %s: %w", unamePath, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// VerifyLinux rejects any kernel other than Linux. Known foreign kernels
// and unrecognized names both fail, with different diagnostics.
func VerifyLinux(kernel string) error {
	if kernel == "Linux" {
		return nil
	}
	for _, k := range foreignKernels {
		if kernel == k {
			return &UnsupportedPlatformError{Kernel: kernel}
		}
	}
	return fmt.Errorf("unrecognized kernel name %q", kernel)
}

// isExecutable reports whether path exists and the current process may
// execute it.
func isExecutable(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	return unix.Access(path, unix.X_OK) == nil
}
