package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WatchDir       string `toml:"watch_dir"`
	VaultDir       string `toml:"vault_dir"`
	NotesDir       string `toml:"notes_dir"`
	AttachmentsDir string `toml:"attachments_dir"`
	LogDir         string `toml:"log_dir"`
}

// Stability contains configuration for the file stability detector and the
// reconciliation scanner.
type Stability struct {
	RequiredStableSeconds int `toml:"required_stable_seconds"`
	MaxWaitSeconds        int `toml:"max_wait_seconds"`
	FolderTimeoutSeconds  int `toml:"folder_completion_timeout_seconds"`
	ScanIntervalSeconds   int `toml:"scan_interval_seconds"`
	TickIntervalMillis    int `toml:"tick_interval_millis"`
	HealthIntervalSeconds int `toml:"health_interval_seconds"`
	StatAttempts          int `toml:"stat_attempts"`
}

// Queue contains configuration for the processing queue and worker pool.
type Queue struct {
	MaxSize             int `toml:"max_size"`
	MaxWorkers          int `toml:"max_workers"`
	DrainTimeoutSeconds int `toml:"drain_timeout_seconds"`
	RetainedJobs        int `toml:"retained_jobs"`
}

// Retry contains configuration for the retry and quarantine policy.
type Retry struct {
	MaxAttempts int `toml:"max_attempts"`
}

// Ledger contains configuration for the idempotency ledger.
type Ledger struct {
	RetentionDays int `toml:"retention_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Ollama contains connection settings for the enrichment model server.
type Ollama struct {
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	VisionModel    string  `toml:"vision_model"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Transcriber contains settings for the external speech-to-text tool.
type Transcriber struct {
	Binary         string `toml:"binary"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Config encapsulates all configuration values for inkwell.
//
// Configuration sections by subsystem:
//   - Paths: watch folder, vault layout, log directory
//   - Stability: debounce windows and scan cadence
//   - Queue: bounded queue size, worker pool, shutdown drain
//   - Retry: failure budget before quarantine
//   - Ledger: retention for terminal ledger records
//   - Logging: log format and level
//   - Ollama: enrichment model server connection
//   - Transcriber: external speech-to-text tool
type Config struct {
	Paths       Paths       `toml:"paths"`
	Stability   Stability   `toml:"stability"`
	Queue       Queue       `toml:"queue"`
	Retry       Retry       `toml:"retry"`
	Ledger      Ledger      `toml:"ledger"`
	Logging     Logging     `toml:"logging"`
	Ollama      Ollama      `toml:"ollama"`
	Transcriber Transcriber `toml:"transcriber"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/inkwell/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("inkwell.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// QuarantineDir returns the terminal relocation directory for failed inputs.
// It lives inside the watch root so users find quarantined files next to
// where they dropped them.
func (c *Config) QuarantineDir() string {
	return filepath.Join(c.Paths.WatchDir, "errors")
}

// NotesPath returns the absolute notes directory inside the vault.
func (c *Config) NotesPath() string {
	return filepath.Join(c.Paths.VaultDir, c.Paths.NotesDir)
}

// AttachmentsPath returns the absolute attachments directory inside the vault.
func (c *Config) AttachmentsPath() string {
	return filepath.Join(c.Paths.VaultDir, c.Paths.AttachmentsDir)
}

// LedgerPath returns the SQLite database location for the idempotency ledger.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.LogDir, "ledger.db")
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.LogDir,
		c.QuarantineDir(),
		c.NotesPath(),
		c.AttachmentsPath(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
