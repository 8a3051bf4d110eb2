// Package config holds the broker's runtime tuning: HAL retry behavior,
// event dispatch interval, and the access policy file location. It
// mirrors cmd/mash-device's Config struct in the retrieved pack —
// plain exported fields loaded from bound command-line flags — generalized
// from the stdlib flag package to the spf13/viper + spf13/cobra pair
// the wider example pack (tailscale-tailscale) uses for the same job.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the broker's runtime configuration.
type Config struct {
	// PolicyFile is the path to the access policy YAML document loaded
	// by pkg/access.LoadPolicy.
	PolicyFile string `mapstructure:"policy-file"`

	// DispatchInterval is the minimum spacing between event pipeline
	// dispatch wakeups.
	DispatchInterval time.Duration `mapstructure:"dispatch-interval"`

	// RetryWait is the delay between retries of a NotReady get/set.
	RetryWait time.Duration `mapstructure:"retry-wait"`

	// MaxRetries bounds how many times a NotReady get/set is retried.
	MaxRetries int `mapstructure:"max-retries"`

	// LogLevel controls the zerolog level used by cmd/vnsd's default logger.
	LogLevel string `mapstructure:"log-level"`

	// Mock, when true, starts the broker with the reference in-memory
	// mock HAL already installed instead of the real driver.
	Mock bool `mapstructure:"mock"`
}

// Defaults returns the configuration used when no flag or file overrides it.
func Defaults() Config {
	return Config{
		PolicyFile:       "policy.yaml",
		DispatchInterval: 10 * time.Millisecond,
		RetryWait:        2 * time.Millisecond,
		MaxRetries:       5,
		LogLevel:         "info",
	}
}

// Load builds a Config from v, which cobra flags have already been
// bound into via BindPFlag. Viper's own precedence (flag > env > file >
// default) governs which source wins for each field.
func Load(v *viper.Viper) (Config, error) {
	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to unmarshal: %w", err)
	}
	return cfg, nil
}
