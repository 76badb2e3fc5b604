package memory_test

import (
	"testing"

	"github.com/tailored-agentic-units/incidentdesk/memory"
)

func TestConfig_Merge(t *testing.T) {
	cfg := memory.DefaultConfig()
	if cfg.Path != "" {
		t.Errorf("got Path %q, want empty string", cfg.Path)
	}

	cfg.Merge(&memory.Config{Path: "/var/lib/incidentdesk"})
	if cfg.Path != "/var/lib/incidentdesk" {
		t.Errorf("got Path %q, want %q", cfg.Path, "/var/lib/incidentdesk")
	}

	cfg.Merge(&memory.Config{})
	if cfg.Path != "/var/lib/incidentdesk" {
		t.Errorf("got Path %q, want %q (preserved)", cfg.Path, "/var/lib/incidentdesk")
	}
}

func TestNew(t *testing.T) {
	disabled, err := memory.New(&memory.Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if disabled != nil {
		t.Error("expected nil transcripts for empty path")
	}

	enabled, err := memory.New(&memory.Config{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if enabled == nil {
		t.Fatal("expected transcripts for a configured path")
	}
}
