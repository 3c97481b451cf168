package config

import "testing"

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig() should validate clean, got: %v", err)
	}
}

func TestValidateRejectsEmptyPin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Security.Pin = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an empty pin list")
	}
}

func TestValidateRejectsNonPositiveDurations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gateways.RefreshInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for a non-positive refresh interval")
	}

	cfg = DefaultConfig()
	cfg.Alarm.CountdownTick = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for a non-positive countdown tick")
	}
}

func TestValidateRejectsEmptyPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Paths.State = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an empty state path")
	}

	cfg = DefaultConfig()
	cfg.Paths.Recordings = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an empty recordings path")
	}
}

func TestPinsSplitsAndTrimsCommaList(t *testing.T) {
	s := SecurityConfig{Pin: "1234, 5678 ,, 9999"}
	pins := s.Pins()
	want := map[string]bool{"1234": true, "5678": true, "9999": true}
	if len(pins) != len(want) {
		t.Fatalf("Pins() = %v, want 3 entries", pins)
	}
	for _, p := range pins {
		if !want[p] {
			t.Errorf("unexpected pin %q", p)
		}
	}
}

func TestSecurityConfigMatches(t *testing.T) {
	s := SecurityConfig{Pin: "1234,5678"}
	if !s.Matches("5678") {
		t.Error("expected 5678 to match")
	}
	if s.Matches("0000") {
		t.Error("expected 0000 not to match")
	}
}
