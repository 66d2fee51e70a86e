package outpost

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("outpost", flag.ContinueOnError)
	t.Setenv("OUTPOST_PORT", "9099")
	t.Setenv("OUTPOST_REMOTE_BASE_URL", "https://api.example.com")

	cfg, err := ParseConfig(fs, []string{"-db-path", "tmp/e2e.db", "-max-attempts", "3"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9099 {
		t.Fatalf("port = %d, want 9099", cfg.Port)
	}
	if cfg.RemoteBaseURL != "https://api.example.com" {
		t.Fatalf("remote base url = %q, want %q", cfg.RemoteBaseURL, "https://api.example.com")
	}
	if cfg.DBPath != "tmp/e2e.db" {
		t.Fatalf("db path = %q, want %q", cfg.DBPath, "tmp/e2e.db")
	}
	if cfg.MaxAttempts != 3 {
		t.Fatalf("max attempts = %d, want 3", cfg.MaxAttempts)
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("outpost", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8086 {
		t.Fatalf("port = %d, want 8086", cfg.Port)
	}
	if cfg.DBPath != "data/outpost.db" {
		t.Fatalf("db path = %q, want %q", cfg.DBPath, "data/outpost.db")
	}
	if cfg.ProbeInterval != 15*time.Second {
		t.Fatalf("probe interval = %v, want 15s", cfg.ProbeInterval)
	}
	if cfg.LeaseTTL != 30*time.Second {
		t.Fatalf("lease ttl = %v, want 30s", cfg.LeaseTTL)
	}
	if cfg.MaxAttempts != 8 {
		t.Fatalf("max attempts = %d, want 8", cfg.MaxAttempts)
	}
}
