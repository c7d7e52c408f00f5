// Package cmd is the thin CLI shell around the posture check pipeline.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nickjeffrey/check-linux-security-posture/internal/check"
	"github.com/nickjeffrey/check-linux-security-posture/internal/config"
	"github.com/nickjeffrey/check-linux-security-posture/internal/logging"
	"github.com/nickjeffrey/check-linux-security-posture/internal/plugin"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// Global flag values.
var (
	cfgFile      string
	verbose      bool
	warnDays     int
	criticalDays int
	noCache      bool
)

// Cfg holds the loaded configuration.
var Cfg *config.Config

// exitStatus carries the plugin status out of RunE; cobra's error return
// can only express exit code 1, which is WARNING in plugin terms.
var exitStatus = plugin.StatusOK

// SetVersionInfo is called from main to inject build-time version info.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	buildDate = d
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:   "check_security_posture",
	Short: "Report the security posture of a Linux host as a Nagios check",
	Long: `check_security_posture inspects the local Linux machine and prints one
machine-parsable line summarizing patch recency and the state of a fixed
set of security subsystems (SELinux, firewall, intrusion detection,
antivirus/EDR agents). Results are cached for 24 hours so frequent polls
do not re-probe the host.

The --warn and --critical thresholds are accepted for monitoring-harness
compatibility; threshold evaluation is done by the poller, not here.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup("text", verbose)

		var err error
		Cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if Cfg.Logging.Format != "text" {
			logging.Setup(Cfg.Logging.Format, verbose)
		}

		if cmd.Flags().Changed("warn") {
			Cfg.Thresholds.WarnDays = warnDays
		}
		if cmd.Flags().Changed("critical") {
			Cfg.Thresholds.CriticalDays = criticalDays
		}

		return nil
	},
	RunE:          runCheck,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().IntVarP(&warnDays, "warn", "w", 180, "patch-age warning threshold in days")
	rootCmd.Flags().IntVarP(&criticalDays, "critical", "c", 365, "patch-age critical threshold in days")
	rootCmd.Flags().BoolVar(&noCache, "no-cache", false, "ignore a cached result and re-probe the host")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default /etc/check_security_posture/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output on stderr")

	rootCmd.SetVersionTemplate(fmt.Sprintf("check_security_posture version {{.Version}} (commit: %s, built: %s)\n", commit, buildDate))
}

func runCheck(cmd *cobra.Command, args []string) error {
	runner, err := check.New(Cfg)
	if err != nil {
		fmt.Println(plugin.Message(plugin.StatusUnknown, "%v", err))
		exitStatus = plugin.StatusUnknown
		return nil
	}
	runner.SkipCache = noCache

	status, line := runner.Run(cmd.Context())
	fmt.Print(line)
	exitStatus = status
	return nil
}

// Execute runs the root command and returns the process exit code.
// Usage errors and --help both map to UNKNOWN per plugin convention.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(plugin.Message(plugin.StatusUnknown, "%v", err))
		return int(plugin.StatusUnknown)
	}
	if f := rootCmd.Flags().Lookup("help"); f != nil && f.Changed {
		return int(plugin.StatusUnknown)
	}
	return int(exitStatus)
}
