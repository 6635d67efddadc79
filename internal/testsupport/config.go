package testsupport

import (
	"path/filepath"
	"testing"

	"inkwell/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WatchDir = filepath.Join(base, "inbox")
	cfg.Paths.VaultDir = filepath.Join(base, "vault")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithMaxRetryAttempts overrides the retry budget on the test config.
func WithMaxRetryAttempts(attempts int) ConfigOption {
	return func(c *config.Config) {
		c.Retry.MaxAttempts = attempts
	}
}

// WithQueue overrides queue sizing on the test config.
func WithQueue(size, workers int) ConfigOption {
	return func(c *config.Config) {
		c.Queue.MaxSize = size
		c.Queue.MaxWorkers = workers
	}
}
