// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"strings"
	"time"
)

// DefaultConfigPath is the default location for the configuration file.
const DefaultConfigPath = "/etc/securityd/config.yaml"

// Config represents the complete securityd configuration.
type Config struct {
	// Security holds the PIN and the comma-separated-pin-list semantics.
	Security SecurityConfig `yaml:"security" koanf:"security"`

	// System holds default notification contacts used when the inventory
	// service has no device-specific override.
	System SystemConfig `yaml:"system" koanf:"system"`

	// Paths holds filesystem locations for persisted state and recordings.
	Paths PathsConfig `yaml:"paths" koanf:"paths"`

	// Gateways holds settings for the notification-gateway table refresh.
	Gateways GatewaysConfig `yaml:"gateways" koanf:"gateways"`

	// Alarm holds tuning knobs for the countdown task.
	Alarm AlarmConfig `yaml:"alarm" koanf:"alarm"`
}

// SecurityConfig holds pin-check settings.
type SecurityConfig struct {
	// Pin is a comma-separated list of valid PINs; any listed value matches.
	Pin string `yaml:"pin" koanf:"pin"`
}

// SystemConfig holds default contact information.
type SystemConfig struct {
	Email string `yaml:"email" koanf:"email"`
	Phone string `yaml:"phone" koanf:"phone"`
}

// PathsConfig holds filesystem locations.
type PathsConfig struct {
	State      string `yaml:"state" koanf:"state"`
	Recordings string `yaml:"recordings" koanf:"recordings"`
}

// GatewaysConfig holds notification-gateway refresh settings.
type GatewaysConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval" koanf:"refresh_interval"`
}

// AlarmConfig holds alarm-engine tuning knobs.
type AlarmConfig struct {
	CountdownTick time.Duration `yaml:"countdown_tick" koanf:"countdown_tick"`
}

// Pins splits the comma-separated pin list into its component values.
func (s SecurityConfig) Pins() []string {
	parts := strings.Split(s.Pin, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Matches reports whether candidate is one of the configured pins.
func (s SecurityConfig) Matches(candidate string) bool {
	for _, p := range s.Pins() {
		if p == candidate {
			return true
		}
	}
	return false
}

// DefaultConfig returns a configuration with sensible defaults, matching the
// "0815" fallback pin mandated by the external interface contract.
func DefaultConfig() *Config {
	return &Config{
		Security: SecurityConfig{
			Pin: "0815",
		},
		System: SystemConfig{},
		Paths: PathsConfig{
			State:      "/var/lib/securityd",
			Recordings: "/var/lib/securityd/recordings",
		},
		Gateways: GatewaysConfig{
			RefreshInterval: 5 * time.Minute,
		},
		Alarm: AlarmConfig{
			CountdownTick: time.Second,
		},
	}
}

// Validate checks configuration for invalid values.
func (c *Config) Validate() error {
	if len(c.Security.Pins()) == 0 {
		return fmt.Errorf("security.pin must contain at least one pin")
	}
	if c.Paths.State == "" {
		return fmt.Errorf("paths.state must not be empty")
	}
	if c.Paths.Recordings == "" {
		return fmt.Errorf("paths.recordings must not be empty")
	}
	if c.Gateways.RefreshInterval <= 0 {
		return fmt.Errorf("gateways.refresh_interval must be positive")
	}
	if c.Alarm.CountdownTick <= 0 {
		return fmt.Errorf("alarm.countdown_tick must be positive")
	}
	return nil
}
