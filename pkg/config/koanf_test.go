package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaultsWithNoYAMLFile(t *testing.T) {
	kc, err := NewKoanfConfig()
	if err != nil {
		t.Fatalf("NewKoanfConfig: %v", err)
	}
	cfg, err := kc.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Security.Pin != "0815" {
		t.Errorf("Pin = %q, want default 0815", cfg.Security.Pin)
	}
}

func TestLoadOverridesDefaultsFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlBody := "security:\n  pin: \"4242\"\npaths:\n  state: /tmp/state\n  recordings: /tmp/recordings\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	kc, err := NewKoanfConfig(WithYAMLFile(path))
	if err != nil {
		t.Fatalf("NewKoanfConfig: %v", err)
	}
	cfg, err := kc.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Security.Pin != "4242" {
		t.Errorf("Pin = %q, want 4242 from YAML", cfg.Security.Pin)
	}
	if cfg.Paths.State != "/tmp/state" {
		t.Errorf("Paths.State = %q, want /tmp/state", cfg.Paths.State)
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("security:\n  pin: \"4242\"\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("SECURITYD_SECURITY_PIN", "9999")

	kc, err := NewKoanfConfig(WithYAMLFile(path))
	if err != nil {
		t.Fatalf("NewKoanfConfig: %v", err)
	}
	cfg, err := kc.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Security.Pin != "9999" {
		t.Errorf("Pin = %q, want env override 9999", cfg.Security.Pin)
	}
}

func TestLoadFailsValidationOnBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("security:\n  pin: \"\"\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	kc, err := NewKoanfConfig(WithYAMLFile(path))
	if err != nil {
		t.Fatalf("NewKoanfConfig: %v", err)
	}
	if _, err := kc.Load(); err == nil {
		t.Error("expected Load to reject an empty pin via Validate")
	}
}

func TestNewKoanfConfigFailsOnMissingYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.yaml")
	if _, err := NewKoanfConfig(WithYAMLFile(path)); err == nil {
		t.Error("expected an error when the configured YAML file does not exist")
	}
}

func TestReloadPicksUpEnvPrefixOverride(t *testing.T) {
	t.Setenv("CUSTOM_ALARM_COUNTDOWN_TICK", (2 * time.Second).String())

	kc, err := NewKoanfConfig(WithEnvPrefix("CUSTOM"))
	if err != nil {
		t.Fatalf("NewKoanfConfig: %v", err)
	}
	cfg, err := kc.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Alarm.CountdownTick != 2*time.Second {
		t.Errorf("Alarm.CountdownTick = %v, want 2s from CUSTOM_ prefix", cfg.Alarm.CountdownTick)
	}
}
