// Package config loads check tunables from defaults, environment
// variables and an optional YAML file, in increasing precedence.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for the posture check.
type Config struct {
	Cache      CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Thresholds ThresholdConfig `yaml:"thresholds" mapstructure:"thresholds"`
	Probe      ProbeConfig     `yaml:"probe" mapstructure:"probe"`
	Catalog    CatalogConfig   `yaml:"catalog" mapstructure:"catalog"`
	Logging    LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// CacheConfig holds result-cache settings.
type CacheConfig struct {
	Path string        `yaml:"path" mapstructure:"path"`
	TTL  time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ThresholdConfig holds the patch-age thresholds. They are accepted for
// monitoring-convention compatibility and echoed into --help; they do not
// change the exit status of a successful run.
type ThresholdConfig struct {
	WarnDays     int `yaml:"warn_days" mapstructure:"warn_days"`
	CriticalDays int `yaml:"critical_days" mapstructure:"critical_days"`
}

// ProbeConfig holds probe execution settings.
type ProbeConfig struct {
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// CatalogConfig holds the optional service-catalog override.
type CatalogConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// LoggingConfig holds logging preferences.
type LoggingConfig struct {
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.path", filepath.Join(os.TempDir(), "nagios.check_security_posture.tmp"))
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("thresholds.warn_days", 180)
	v.SetDefault("thresholds.critical_days", 365)
	v.SetDefault("probe.timeout", 15*time.Second)
	v.SetDefault("catalog.file", "")
	v.SetDefault("logging.format", "text")
}

// bindEnvVars binds environment variable overrides with POSTURE_ prefix.
// Viper's AutomaticEnv only works for top-level keys by default, so we
// explicitly bind nested keys to their POSTURE_ equivalents.
func bindEnvVars(v *viper.Viper) {
	bindings := map[string]string{
		"cache.path":               "POSTURE_CACHE_PATH",
		"cache.ttl":                "POSTURE_CACHE_TTL",
		"thresholds.warn_days":     "POSTURE_THRESHOLDS_WARN_DAYS",
		"thresholds.critical_days": "POSTURE_THRESHOLDS_CRITICAL_DAYS",
		"probe.timeout":            "POSTURE_PROBE_TIMEOUT",
		"catalog.file":             "POSTURE_CATALOG_FILE",
		"logging.format":           "POSTURE_LOGGING_FORMAT",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}
}

// Load reads configuration from defaults, env vars and an optional config
// file. If configPath is empty, /etc/check_security_posture/config.yaml is
// tried; a missing file there is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)

	v.SetEnvPrefix("POSTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath("/etc/check_security_posture")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// An explicitly requested file must exist and parse.
			if configPath != "" {
				return nil, err
			}
			slog.Debug("no config file found, using defaults", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
