// Package config handles global configuration loading using viper.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"firestige.xyz/hfinger/internal/core"
	"firestige.xyz/hfinger/internal/fingerprint"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `hfinger:` root key in YAML.
type GlobalConfig struct {
	Analyzer   AnalyzerConfig   `mapstructure:"analyzer"`
	Tshark     TsharkConfig     `mapstructure:"tshark"`
	Tables     TablesConfig     `mapstructure:"tables"`
	Log        LogConfig        `mapstructure:"log"`
	AnomalyLog AnomalyLogConfig `mapstructure:"anomaly_log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Reporters  []ReporterConfig `mapstructure:"reporters" validate:"dive"`
}

// ─── Analyzer ───

// AnalyzerConfig controls fingerprinting.
type AnalyzerConfig struct {
	Mode      int                      `mapstructure:"mode" validate:"gte=0"`
	Workers   int                      `mapstructure:"workers" validate:"gte=0"` // 0 = GOMAXPROCS
	Source    string                   `mapstructure:"source" validate:"oneof=tshark native"`
	OutputDir string                   `mapstructure:"output_dir"`
	Modes     map[int]fingerprint.Mask `mapstructure:"modes"` // extra or overriding masks
}

// ModeSet returns the built-in modes merged with the configured overrides.
func (a AnalyzerConfig) ModeSet() fingerprint.ModeSet {
	return fingerprint.DefaultModes().With(a.Modes)
}

// ─── Collaborators ───

// TsharkConfig configures the external dissector.
type TsharkConfig struct {
	Path          string `mapstructure:"path"` // empty = $PATH lookup
	DisplayFilter string `mapstructure:"display_filter" validate:"required"`
	MinVersion    string `mapstructure:"min_version" validate:"required,semver"`
}

// TablesConfig points at an encoding table override directory.
type TablesConfig struct {
	Dir string `mapstructure:"dir"` // empty = embedded tables
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen" validate:"omitempty,hostname_port"`
	Path    string `mapstructure:"path" validate:"omitempty,startswith=/"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format  string           `mapstructure:"format" validate:"oneof=json text"`
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path" validate:"required_if=Enabled true"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxAgeDays int  `mapstructure:"max_age_days" validate:"gte=0"`
	MaxBackups int  `mapstructure:"max_backups" validate:"gte=0"`
	Compress   bool `mapstructure:"compress"`
}

// AnomalyLogConfig controls the per-record anomaly log. A file implies verbose.
type AnomalyLogConfig struct {
	Verbose bool   `mapstructure:"verbose"`
	File    string `mapstructure:"file"`
}

// ─── Reporters ───

// ReporterConfig selects a reporter plugin.
type ReporterConfig struct {
	Name   string         `mapstructure:"name" validate:"required"`
	Config map[string]any `mapstructure:"config"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `hfinger: ...`.
type configRoot struct {
	Hfinger GlobalConfig `mapstructure:"hfinger"`
}

// Load loads configuration from file. An empty path yields the defaults, still
// subject to environment overrides (HFINGER_ prefix, e.g. HFINGER_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `hfinger.` key prefix maps to `HFINGER_` through the key replacer.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		maskHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&root, hook); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %v", core.ErrConfigInvalid, err)
	}
	cfg := root.Hfinger

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use "hfinger." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("hfinger.analyzer.mode", fingerprint.DefaultMode)
	v.SetDefault("hfinger.analyzer.workers", 0)
	v.SetDefault("hfinger.analyzer.source", "tshark")
	v.SetDefault("hfinger.analyzer.output_dir", "")

	v.SetDefault("hfinger.tshark.path", "")
	v.SetDefault("hfinger.tshark.display_filter", "http.request and tcp and not icmp")
	v.SetDefault("hfinger.tshark.min_version", "2.2.0")

	v.SetDefault("hfinger.tables.dir", "")

	v.SetDefault("hfinger.log.level", "info")
	v.SetDefault("hfinger.log.format", "text")
	v.SetDefault("hfinger.log.outputs.file.enabled", false)
	v.SetDefault("hfinger.log.outputs.file.path", "hfinger.log")
	v.SetDefault("hfinger.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("hfinger.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("hfinger.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("hfinger.log.outputs.file.rotation.compress", true)

	v.SetDefault("hfinger.anomaly_log.verbose", false)
	v.SetDefault("hfinger.anomaly_log.file", "")

	v.SetDefault("hfinger.metrics.enabled", false)
	v.SetDefault("hfinger.metrics.listen", "127.0.0.1:9464")
	v.SetDefault("hfinger.metrics.path", "/metrics")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", core.ErrConfigInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}

	for id, mask := range cfg.Analyzer.Modes {
		if id < 0 {
			return fmt.Errorf("%w: analyzer.modes: negative mode %d", core.ErrConfigInvalid, id)
		}
		if len(mask) == 0 {
			return fmt.Errorf("%w: analyzer.modes.%d: empty mask", core.ErrConfigInvalid, id)
		}
	}
	if _, err := cfg.Analyzer.ModeSet().Get(cfg.Analyzer.Mode); err != nil {
		return fmt.Errorf("%w: analyzer.mode: %v", core.ErrConfigInvalid, err)
	}

	// ── Anomaly log: a file implies verbose ──
	if cfg.AnomalyLog.File != "" {
		cfg.AnomalyLog.Verbose = true
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	return nil
}

var maskType = reflect.TypeOf(fingerprint.Mask{})

// maskHook decodes a mask written either as "9:s,7:s" or as [[9, s], [7, s]].
func maskHook(from, to reflect.Type, data any) (any, error) {
	if to != maskType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return fingerprint.ParseMask(v)
	case []any:
		parts := make([]string, 0, len(v))
		for i, e := range v {
			pair, ok := e.([]any)
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("%w: mask entry %d: want [field, cast]", core.ErrBadReportMode, i)
			}
			idx, err := cast.ToIntE(pair[0])
			if err != nil {
				return nil, fmt.Errorf("%w: mask entry %d: %v", core.ErrBadReportMode, i, err)
			}
			parts = append(parts, fmt.Sprintf("%d:%s", idx, cast.ToString(pair[1])))
		}
		return fingerprint.ParseMask(strings.Join(parts, ","))
	default:
		return data, nil
	}
}
