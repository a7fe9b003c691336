package cliconfig

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.OutDir != "." || cfg.Format != FormatCSV || cfg.Debounce != 500*time.Millisecond {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MergeWAL || cfg.Watch || cfg.Verbose {
		t.Fatalf("boolean options must default off: %+v", cfg)
	}
}

func TestValidateRequiresDatabase(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "database") {
		t.Fatalf("expected database-required error, got %v", err)
	}
}

func TestValidateDerivesWALPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DatabasePath = "/evidence/CapabilityAccessManager.db"
	cfg.MergeWAL = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if cfg.WALPath != "/evidence/CapabilityAccessManager.db-wal" {
		t.Fatalf("expected derived wal path, got %q", cfg.WALPath)
	}
}

func TestValidateClearsWALPathWhenMergeOff(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DatabasePath = "c.db"
	cfg.WALPath = "stray-wal"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if cfg.WALPath != "" {
		t.Fatalf("wal path must be cleared when merging is off, got %q", cfg.WALPath)
	}
}

func TestValidateRejectsBadFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DatabasePath = "c.db"
	cfg.Format = "xml"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "format") {
		t.Fatalf("expected format error, got %v", err)
	}
}

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("CAPAM_DATABASE", "/env/c.db")
	t.Setenv("CAPAM_FORMAT", "json")
	t.Setenv("CAPAM_MERGE_WAL", "1")
	t.Setenv("CAPAM_DEBOUNCE", "2s")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err != nil {
		t.Fatalf("ApplyEnvConfig returned error: %v", err)
	}
	if cfg.DatabasePath != "/env/c.db" || cfg.Format != FormatJSON || !cfg.MergeWAL {
		t.Fatalf("environment not applied: %+v", cfg)
	}
	if cfg.Debounce != 2*time.Second {
		t.Fatalf("expected debounce 2s, got %v", cfg.Debounce)
	}
}

func TestApplyEnvConfigRespectsFlags(t *testing.T) {
	t.Setenv("CAPAM_FORMAT", "json")

	cfg := DefaultConfig()
	changed := map[string]bool{"format": true}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig returned error: %v", err)
	}
	if cfg.Format != FormatCSV {
		t.Fatalf("explicit flag must win over the environment, got %q", cfg.Format)
	}
}

func TestApplyEnvConfigBadDuration(t *testing.T) {
	t.Setenv("CAPAM_DEBOUNCE", "soon")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err == nil {
		t.Fatalf("expected error for unparseable duration")
	}
}
