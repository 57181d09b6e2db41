// Package config loads the harness's global application settings: where
// per-repo state lives, dashboard theming, and the timeouts that bound
// worker spawning and approval delivery.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/kestrelrun/genie/internal/log"
	"github.com/kestrelrun/genie/internal/tracing"
)

// ThemeConfig holds dashboardui theme customization, mirroring the
// teacher's TUI theme shape: a named preset plus dot-notation color
// overrides.
type ThemeConfig struct {
	// Preset loads a built-in lipgloss color scheme as the base.
	// Valid values: "default", "dracula"; any other value leaves the
	// "default" preset in place.
	Preset string `mapstructure:"preset"`

	// Mode is decoded from the config file, but nothing reads it:
	// BuildStyles does not switch between light and dark colors on it.
	Mode string `mapstructure:"mode"`

	// Colors overrides individual color tokens, keyed by token name
	// (e.g. "running", "border"). Nested maps are flattened to
	// dot-notation keys by FlattenedColors.
	Colors map[string]any `mapstructure:"colors"`
}

// FlattenedColors returns Colors flattened to dot-notation keys,
// tolerating both already-flat keys and nested YAML maps.
func (t ThemeConfig) FlattenedColors() map[string]string {
	result := make(map[string]string)
	flattenColors("", t.Colors, result)
	return result
}

func flattenColors(prefix string, m map[string]any, result map[string]string) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			result[key] = val
		case map[string]any:
			flattenColors(key, val, result)
		case map[any]any:
			converted := make(map[string]any, len(val))
			for mk, mv := range val {
				if strKey, ok := mk.(string); ok {
					converted[strKey] = mv
				}
			}
			flattenColors(key, converted, result)
		}
	}
}

// TimeoutsConfig bounds the integration surface's external calls.
type TimeoutsConfig struct {
	// WorkerSpawn is the timeout for a spawn.Launcher.Launch call,
	// covering the tmux new-window round trip.
	WorkerSpawn time.Duration `mapstructure:"worker_spawn"`

	// LivenessProbe is decoded from the config file, but the tmux driver
	// does not read it: its display-message probes use the driver's own
	// fixed 2-second bound.
	LivenessProbe time.Duration `mapstructure:"liveness_probe"`

	// DeliveryRetry bounds how long the policy engine's approval
	// delivery is allowed to block on SendKeys before giving up. Zero or
	// a negative value leaves delivery unbounded.
	DeliveryRetry time.Duration `mapstructure:"delivery_retry"`
}

// DefaultTimeoutsConfig returns the default timeout configuration.
func DefaultTimeoutsConfig() TimeoutsConfig {
	return TimeoutsConfig{
		WorkerSpawn:   10 * time.Second,
		LivenessProbe: 2 * time.Second,
		DeliveryRetry: 5 * time.Second,
	}
}

// AppConfig holds every global (non-repo, non-wish) setting the harness
// reads at startup.
type AppConfig struct {
	// UserConfigDir is the directory the global auto-approve.yaml and
	// this config file itself live in. Default: "~/.config/genie".
	UserConfigDir string `mapstructure:"user_config_dir"`

	Theme    ThemeConfig     `mapstructure:"theme"`
	Timeouts TimeoutsConfig  `mapstructure:"timeouts"`
	Tracing  tracing.Config  `mapstructure:"tracing"`
	Flags    map[string]bool `mapstructure:"flags"`
}

// Defaults returns the zero-configuration AppConfig.
func Defaults() AppConfig {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return AppConfig{
		UserConfigDir: filepath.Join(home, ".config", "genie"),
		Theme:         ThemeConfig{Preset: "default"},
		Timeouts:      DefaultTimeoutsConfig(),
		Tracing:       tracing.DefaultConfig(),
		Flags:         map[string]bool{},
	}
}

// Load reads configPath into an AppConfig layered over Defaults(),
// using viper for the flag/env/file precedence the teacher's own config
// loader relies on. A missing file is not an error — Defaults() alone is
// returned — matching the tolerant-missing-file idiom used throughout
// this harness's persistence layers.
func Load(configPath string) (AppConfig, error) {
	defaults := Defaults()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetDefault("user_config_dir", defaults.UserConfigDir)
	v.SetDefault("theme.preset", defaults.Theme.Preset)
	v.SetDefault("timeouts.worker_spawn", defaults.Timeouts.WorkerSpawn)
	v.SetDefault("timeouts.liveness_probe", defaults.Timeouts.LivenessProbe)
	v.SetDefault("timeouts.delivery_retry", defaults.Timeouts.DeliveryRetry)
	v.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	v.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	v.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return defaults, nil
		}
		log.Warn(log.CatConfig, "failed to read app config, using defaults", "path", configPath, "error", err.Error())
		return defaults, fmt.Errorf("reading config %s: %w", configPath, err)
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		log.Warn(log.CatConfig, "failed to parse app config, using defaults", "path", configPath, "error", err.Error())
		return defaults, fmt.Errorf("parsing config %s: %w", configPath, err)
	}
	return cfg, nil
}

// DefaultConfigPath returns the conventional location of the app config
// file: "<UserConfigDir>/config.yaml".
func DefaultConfigPath() string {
	return filepath.Join(Defaults().UserConfigDir, "config.yaml")
}
