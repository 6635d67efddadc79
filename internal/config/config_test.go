package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, path, exists, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing config")
	}
	if path == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Stability.RequiredStableSeconds != defaultStableSeconds {
		t.Fatalf("expected default stable seconds, got %d", cfg.Stability.RequiredStableSeconds)
	}
	if cfg.Queue.MaxWorkers != 1 {
		t.Fatalf("expected single worker default, got %d", cfg.Queue.MaxWorkers)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
watch_dir = "` + dir + `/inbox"
vault_dir = "` + dir + `/vault"
notes_dir = "/notes/"

[stability]
required_stable_seconds = 5
max_wait_seconds = 120

[ollama]
base_url = "http://localhost:11434/"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Stability.RequiredStableSeconds != 5 {
		t.Fatalf("expected 5, got %d", cfg.Stability.RequiredStableSeconds)
	}
	if cfg.Paths.NotesDir != "notes" {
		t.Fatalf("expected trimmed notes dir, got %q", cfg.Paths.NotesDir)
	}
	if strings.HasSuffix(cfg.Ollama.BaseURL, "/") {
		t.Fatalf("expected trailing slash stripped, got %q", cfg.Ollama.BaseURL)
	}
	if got, want := cfg.QuarantineDir(), filepath.Join(dir, "inbox", "errors"); got != want {
		t.Fatalf("QuarantineDir = %q, want %q", got, want)
	}
}

func TestValidateRejectsBadWindows(t *testing.T) {
	cfg := Default()
	cfg.Stability.MaxWaitSeconds = 1
	cfg.Stability.RequiredStableSeconds = 10
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for max_wait < required_stable")
	}
}

func TestValidateRejectsZeroWorkers(t *testing.T) {
	cfg := Default()
	cfg.Queue.MaxWorkers = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for zero workers")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := Load(path); err != nil || !exists {
		t.Fatalf("sample config should load cleanly: exists=%v err=%v", exists, err)
	}
}
