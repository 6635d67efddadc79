package config

import (
	"errors"
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.WatchDir, err = expandPath(c.Paths.WatchDir); err != nil {
		return err
	}
	if c.Paths.VaultDir, err = expandPath(c.Paths.VaultDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.Paths.NotesDir = strings.Trim(strings.TrimSpace(c.Paths.NotesDir), "/")
	c.Paths.AttachmentsDir = strings.Trim(strings.TrimSpace(c.Paths.AttachmentsDir), "/")
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Ollama.BaseURL = strings.TrimRight(strings.TrimSpace(c.Ollama.BaseURL), "/")
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateStability(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateOllama(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WatchDir) == "" {
		return errors.New("paths.watch_dir must be set")
	}
	if strings.TrimSpace(c.Paths.VaultDir) == "" {
		return errors.New("paths.vault_dir must be set")
	}
	if c.Paths.NotesDir == "" {
		return errors.New("paths.notes_dir must be set")
	}
	if c.Paths.AttachmentsDir == "" {
		return errors.New("paths.attachments_dir must be set")
	}
	return nil
}

func (c *Config) validateStability() error {
	if c.Stability.RequiredStableSeconds <= 0 {
		return errors.New("stability.required_stable_seconds must be positive")
	}
	if c.Stability.MaxWaitSeconds < c.Stability.RequiredStableSeconds {
		return fmt.Errorf("stability.max_wait_seconds (%d) must be >= required_stable_seconds (%d)",
			c.Stability.MaxWaitSeconds, c.Stability.RequiredStableSeconds)
	}
	if c.Stability.FolderTimeoutSeconds <= 0 {
		return errors.New("stability.folder_completion_timeout_seconds must be positive")
	}
	if c.Stability.ScanIntervalSeconds <= 0 {
		return errors.New("stability.scan_interval_seconds must be positive")
	}
	if c.Stability.TickIntervalMillis <= 0 {
		return errors.New("stability.tick_interval_millis must be positive")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.MaxSize <= 0 {
		return errors.New("queue.max_size must be positive")
	}
	if c.Queue.MaxWorkers <= 0 {
		return errors.New("queue.max_workers must be positive")
	}
	if c.Queue.RetainedJobs < 0 {
		return errors.New("queue.retained_jobs must not be negative")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts <= 0 {
		return errors.New("retry.max_attempts must be positive")
	}
	return nil
}

func (c *Config) validateOllama() error {
	if c.Ollama.Temperature < 0 || c.Ollama.Temperature > 1 {
		return errors.New("ollama.temperature must be between 0 and 1")
	}
	if strings.TrimSpace(c.Ollama.Model) == "" {
		return errors.New("ollama.model must be set")
	}
	return nil
}
