// Copyright 2025 Archon 72 Project
//
// Unit tests for governance configuration loading

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "governance.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestLoadGovernanceConfig(t *testing.T) {
	path := writeConfig(t, `
environment: rehearsal
version: "1"
governance:
  escalation_threshold_days: 7
  cessation_threshold: 10
  warning_threshold: 8
  cessation_window_days: 90
  dissent_threshold_percent: 10.0
  dissent_period_days: 30
`)

	cfg, err := LoadGovernanceConfig(path)
	if err != nil {
		t.Fatalf("LoadGovernanceConfig failed: %v", err)
	}
	if cfg.Environment != "rehearsal" {
		t.Errorf("environment = %q", cfg.Environment)
	}
	if cfg.Governance.CessationThreshold != 10 || cfg.Governance.WarningThreshold != 8 {
		t.Errorf("thresholds = %+v", cfg.Governance)
	}
}

func TestLoadGovernanceConfigDefaults(t *testing.T) {
	// Fields absent from the file keep constitutional defaults.
	path := writeConfig(t, `
environment: rehearsal
governance:
  dissent_period_days: 14
`)

	cfg, err := LoadGovernanceConfig(path)
	if err != nil {
		t.Fatalf("LoadGovernanceConfig failed: %v", err)
	}
	if cfg.Governance.DissentPeriodDays != 14 {
		t.Errorf("dissent_period_days = %d, want 14", cfg.Governance.DissentPeriodDays)
	}
	if cfg.Governance.EscalationThresholdDays != 7 {
		t.Errorf("escalation_threshold_days = %d, want default 7", cfg.Governance.EscalationThresholdDays)
	}
	if cfg.Governance.CessationThreshold != 10 {
		t.Errorf("cessation_threshold = %d, want default 10", cfg.Governance.CessationThreshold)
	}
}

func TestLoadGovernanceConfigEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_GOV_ENVIRONMENT", "kermit-net")

	path := writeConfig(t, `
environment: ${TEST_GOV_ENVIRONMENT}
governance:
  cessation_window_days: 90
`)

	cfg, err := LoadGovernanceConfig(path)
	if err != nil {
		t.Fatalf("LoadGovernanceConfig failed: %v", err)
	}
	if cfg.Environment != "kermit-net" {
		t.Errorf("environment = %q, want substituted value", cfg.Environment)
	}
}

func TestLoadGovernanceConfigRejectsBadThresholds(t *testing.T) {
	cases := []string{
		"governance:\n  escalation_threshold_days: 0\n",
		"governance:\n  cessation_threshold: 0\n",
		"governance:\n  warning_threshold: 11\n", // above cessation threshold
		"governance:\n  dissent_threshold_percent: 101\n",
	}
	for _, body := range cases {
		path := writeConfig(t, body)
		if _, err := LoadGovernanceConfig(path); err == nil {
			t.Errorf("config accepted invalid thresholds:\n%s", body)
		}
	}
}
