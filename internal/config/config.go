// Package config loads the extraction tuning file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/zombor/receipt-extractor/internal/extraction"
)

// Config represents the top-level tuning file.
type Config struct {
	Reconcile   ReconcileConfig   `yaml:"reconcile"`
	Dates       DatesConfig       `yaml:"dates"`
	Enhancement EnhancementConfig `yaml:"enhancement"`
	Thresholds  ThresholdsConfig  `yaml:"thresholds"`
}

// ReconcileConfig sets how far amounts may drift and still agree.
type ReconcileConfig struct {
	ToleranceRatio    float64         `yaml:"tolerance_ratio"`
	ToleranceAbsolute decimal.Decimal `yaml:"tolerance_absolute"`
}

// DatesConfig resolves ambiguous numeric dates.
type DatesConfig struct {
	DayFirst bool `yaml:"day_first"`
}

// EnhancementConfig bounds the optional model pass.
type EnhancementConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Budget  time.Duration `yaml:"budget"` // how long a late call may run to fill the cache
}

// ThresholdsConfig controls auto-acceptance of extracted records.
type ThresholdsConfig struct {
	AutoAccept float64 `yaml:"auto_accept"`
	Review     float64 `yaml:"review"`
}

// Load reads a tuning file from disk. Keys missing from the file keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns the tuning used when no file is given.
func Default() *Config {
	return &Config{
		Reconcile: ReconcileConfig{
			ToleranceRatio:    0.01,
			ToleranceAbsolute: decimal.RequireFromString("0.05"),
		},
		Enhancement: EnhancementConfig{
			Timeout: 8 * time.Second,
			Budget:  60 * time.Second,
		},
		Thresholds: ThresholdsConfig{
			AutoAccept: 0.85,
			Review:     0.5,
		},
	}
}

// Validate checks that every value is in range.
func (c *Config) Validate() error {
	switch {
	case c.Reconcile.ToleranceRatio < 0 || c.Reconcile.ToleranceRatio > 1:
		return fmt.Errorf("reconcile.tolerance_ratio must be between 0 and 1, got %v", c.Reconcile.ToleranceRatio)
	case c.Reconcile.ToleranceAbsolute.IsNegative():
		return fmt.Errorf("reconcile.tolerance_absolute must not be negative, got %s", c.Reconcile.ToleranceAbsolute)
	case c.Enhancement.Timeout <= 0:
		return fmt.Errorf("enhancement.timeout must be positive, got %s", c.Enhancement.Timeout)
	case c.Thresholds.AutoAccept < 0 || c.Thresholds.AutoAccept > 1:
		return fmt.Errorf("thresholds.auto_accept must be between 0 and 1, got %v", c.Thresholds.AutoAccept)
	case c.Thresholds.Review < 0 || c.Thresholds.Review > c.Thresholds.AutoAccept:
		return fmt.Errorf("thresholds.review must be between 0 and thresholds.auto_accept, got %v", c.Thresholds.Review)
	}
	return nil
}

// PipelineOptions converts the tuning into extraction options.
func (c *Config) PipelineOptions(logger *slog.Logger) extraction.Options {
	return extraction.Options{
		Tolerance: extraction.Tolerance{
			Ratio:    decimal.NewFromFloat(c.Reconcile.ToleranceRatio),
			Absolute: c.Reconcile.ToleranceAbsolute,
		},
		DayFirst:           c.Dates.DayFirst,
		EnhancementTimeout: c.Enhancement.Timeout,
		EnhancementBudget:  c.Enhancement.Budget,
		Logger:             logger,
	}
}
