// Copyright 2025 Archon 72 Project
//
// Governance Configuration Loader
//
// Loads governance thresholds from a YAML file with environment variable
// substitution. The constitutional values are the defaults; the file exists
// for test networks and rehearsals. Loaded values are range-checked only; they
// are not compared against the constitutional defaults.

package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// GovernanceSettings holds the thresholds the governance state machines run on.
type GovernanceSettings struct {
	// Escalation settings (FR31)
	EscalationThresholdDays int `yaml:"escalation_threshold_days"`

	// Cessation settings (FR32)
	CessationThreshold  int `yaml:"cessation_threshold"`
	WarningThreshold    int `yaml:"warning_threshold"`
	CessationWindowDays int `yaml:"cessation_window_days"`

	// Dissent settings (NFR-023)
	DissentThresholdPercent float64 `yaml:"dissent_threshold_percent"`
	DissentPeriodDays       int     `yaml:"dissent_period_days"`
}

// DefaultGovernanceSettings returns the constitutional defaults.
func DefaultGovernanceSettings() GovernanceSettings {
	return GovernanceSettings{
		EscalationThresholdDays: 7,
		CessationThreshold:      10,
		WarningThreshold:        8,
		CessationWindowDays:     90,
		DissentThresholdPercent: 10.0,
		DissentPeriodDays:       30,
	}
}

// GovernanceConfig is the top-level structure of a governance YAML file.
type GovernanceConfig struct {
	Environment string             `yaml:"environment"`
	Version     string             `yaml:"version"`
	Governance  GovernanceSettings `yaml:"governance"`
}

// envVarPattern matches ${VAR} placeholders in the YAML file.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadGovernanceConfig reads a governance YAML file, substituting ${VAR}
// placeholders from the environment before unmarshaling. Fields absent from
// the file keep their constitutional defaults.
func LoadGovernanceConfig(path string) (*GovernanceConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read governance config %s: %w", path, err)
	}

	substituted := envVarPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})

	cfg := &GovernanceConfig{Governance: DefaultGovernanceSettings()}
	if err := yaml.Unmarshal(substituted, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse governance config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects out-of-range thresholds: day counts and the cessation
// threshold below 1, a warning threshold outside [1, cessation_threshold], and
// a dissent percentage outside [0, 100]. Values weaker than the constitutional
// defaults (for example a shorter dissent period) are accepted.
func (c *GovernanceConfig) Validate() error {
	g := c.Governance
	if g.EscalationThresholdDays < 1 {
		return fmt.Errorf("escalation_threshold_days must be at least 1, got %d", g.EscalationThresholdDays)
	}
	if g.CessationThreshold < 1 {
		return fmt.Errorf("cessation_threshold must be at least 1, got %d", g.CessationThreshold)
	}
	if g.WarningThreshold < 1 || g.WarningThreshold > g.CessationThreshold {
		return fmt.Errorf("warning_threshold must be in [1, cessation_threshold], got %d", g.WarningThreshold)
	}
	if g.CessationWindowDays < 1 {
		return fmt.Errorf("cessation_window_days must be at least 1, got %d", g.CessationWindowDays)
	}
	if g.DissentThresholdPercent < 0 || g.DissentThresholdPercent > 100 {
		return fmt.Errorf("dissent_threshold_percent must be in [0, 100], got %v", g.DissentThresholdPercent)
	}
	if g.DissentPeriodDays < 1 {
		return fmt.Errorf("dissent_period_days must be at least 1, got %d", g.DissentPeriodDays)
	}
	return nil
}
