package config

import (
	"flag"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Addr != ":5000" {
		t.Fatalf("unexpected default addr %q", cfg.Addr)
	}
	if cfg.GracePeriod != 20*time.Second {
		t.Fatalf("unexpected grace period %v", cfg.GracePeriod)
	}
	if cfg.ProximityThreshold != 300 {
		t.Fatalf("unexpected threshold %v", cfg.ProximityThreshold)
	}
	if got := cfg.GridExtent(); got != 512 {
		t.Fatalf("unexpected grid extent %v", got)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("OFFICE_ADDR", ":9999")
	t.Setenv("OFFICE_GRACE_PERIOD_MS", "1500")
	t.Setenv("OFFICE_PROXIMITY_THRESHOLD", "120.5")
	t.Setenv("OFFICE_MEDIA_ROUTER_URL", "http://media.internal:7000")

	cfg := FromEnv()
	if cfg.Addr != ":9999" {
		t.Fatalf("addr override not applied: %q", cfg.Addr)
	}
	if cfg.GracePeriod != 1500*time.Millisecond {
		t.Fatalf("grace override not applied: %v", cfg.GracePeriod)
	}
	if cfg.ProximityThreshold != 120.5 {
		t.Fatalf("threshold override not applied: %v", cfg.ProximityThreshold)
	}
	if cfg.MediaBaseURL != "http://media.internal:7000" {
		t.Fatalf("media URL override not applied: %q", cfg.MediaBaseURL)
	}
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("OFFICE_GRACE_PERIOD_MS", "not-a-number")
	t.Setenv("OFFICE_PROXIMITY_PERIOD_MS", "-50")
	t.Setenv("OFFICE_PROXIMITY_THRESHOLD", "0")

	cfg := FromEnv()
	def := Default()
	if cfg.GracePeriod != def.GracePeriod {
		t.Fatalf("bad grace value should keep default, got %v", cfg.GracePeriod)
	}
	if cfg.ProximityPeriod != def.ProximityPeriod {
		t.Fatalf("negative period should keep default, got %v", cfg.ProximityPeriod)
	}
	if cfg.ProximityThreshold != def.ProximityThreshold {
		t.Fatalf("zero threshold should keep default, got %v", cfg.ProximityThreshold)
	}
}

func TestFlagsWinOverEnv(t *testing.T) {
	t.Setenv("OFFICE_ADDR", ":9999")

	cfg := FromEnv()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.BindFlags(fs)
	if err := fs.Parse([]string{"-addr", ":4000", "-grace-period", "3s"}); err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cfg.Addr != ":4000" {
		t.Fatalf("flag should win over env, got %q", cfg.Addr)
	}
	if cfg.GracePeriod != 3*time.Second {
		t.Fatalf("flag duration not applied: %v", cfg.GracePeriod)
	}
}
