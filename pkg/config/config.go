// Package config provides the unified configuration system for the pooling
// runtime. It defines a single Config structure consumed by pools, pool
// collections, and the poolbench tool.
//
// The configuration is organized into logical sections:
//   - Validation: runtime diagnostic checks (ownership, type, structural drift)
//   - Prewarm: per-prototype reserve capacities allocated ahead of demand
//   - Observability: metrics and logging behavior
//
// Example usage:
//
//	cfg := config.NewConfig()
//	cfg.Validation.Mode = config.ValidationStrict
//	cfg.Prewarm.Capacities["muzzle_flash"] = 32
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"github.com/ajitpratap0/prefabpool/pkg/errors"
)

// ValidationMode controls how much diagnostic checking the pools perform on
// their hot paths. It replaces a development/release build distinction with a
// runtime setting.
type ValidationMode string

const (
	// ValidationOff disables ownership and type checks entirely. This is the
	// release-build tradeoff: misuse is unguarded in exchange for zero
	// checking overhead.
	ValidationOff ValidationMode = "off"
	// ValidationWarn performs all checks and logs violations, rejecting the
	// offending operation.
	ValidationWarn ValidationMode = "warn"
	// ValidationStrict performs all checks, logs violations at error level,
	// and rejects the offending operation.
	ValidationStrict ValidationMode = "strict"
)

// Config is the configuration structure shared by pools and collections.
type Config struct {
	// Name identifies the owning subsystem (used in logs and metric labels)
	Name string `yaml:"name" json:"name"`

	// Validation settings for runtime diagnostic checks
	Validation ValidationConfig `yaml:"validation" json:"validation"`

	// Prewarm settings for eager reserve allocation
	Prewarm PrewarmConfig `yaml:"prewarm" json:"prewarm"`

	// Observability settings for metrics and logging
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// ValidationConfig contains the diagnostic check settings.
type ValidationConfig struct {
	// Mode selects off, warn, or strict checking
	Mode ValidationMode `yaml:"mode" json:"mode"`
	// StructuralDrift re-counts an instance's lifecycle components on every
	// acquisition and warns when the count no longer matches the cache.
	// Unset means on whenever Mode is not off; read it through DriftEnabled.
	StructuralDrift *bool `yaml:"structural_drift" json:"structural_drift"`
}

// PrewarmConfig contains eager allocation settings.
type PrewarmConfig struct {
	// DefaultCapacity is applied to every pool at construction when > 0
	DefaultCapacity int `yaml:"default_capacity" json:"default_capacity"`
	// Capacities maps prototype names to per-pool reserve floors
	Capacities map[string]int `yaml:"capacities" json:"capacities"`
}

// ObservabilityConfig contains metrics and logging settings.
type ObservabilityConfig struct {
	// EnableMetrics turns Prometheus metric recording on
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// LogLevel sets the minimum log level (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a Config with production defaults.
func NewConfig() *Config {
	cfg := &Config{Name: "prefabpool"}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "prefabpool"
	}
	if c.Validation.Mode == "" {
		c.Validation.Mode = ValidationStrict
	}
	if c.Prewarm.Capacities == nil {
		c.Prewarm.Capacities = make(map[string]int)
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Validation.Mode {
	case ValidationOff, ValidationWarn, ValidationStrict:
	default:
		return errors.Newf(errors.ErrorTypeConfig,
			"invalid validation mode %q (want off, warn, or strict)", c.Validation.Mode)
	}

	if c.Prewarm.DefaultCapacity < 0 {
		return errors.New(errors.ErrorTypeConfig, "prewarm default capacity must be >= 0")
	}
	for name, capacity := range c.Prewarm.Capacities {
		if capacity < 0 {
			return errors.Newf(errors.ErrorTypeConfig,
				"prewarm capacity for %q must be >= 0", name)
		}
	}

	switch c.Observability.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.Newf(errors.ErrorTypeConfig,
			"invalid log level %q", c.Observability.LogLevel)
	}

	return nil
}

// ChecksEnabled reports whether ownership and type validation should run.
func (c *Config) ChecksEnabled() bool {
	return c.Validation.Mode != ValidationOff
}

// DriftEnabled reports whether structural drift detection should run. It
// defaults on whenever validation is enabled; an explicit
// structural_drift: false turns it off without touching the mode.
func (c *Config) DriftEnabled() bool {
	if c.Validation.Mode == ValidationOff {
		return false
	}
	if c.Validation.StructuralDrift == nil {
		return true
	}
	return *c.Validation.StructuralDrift
}
