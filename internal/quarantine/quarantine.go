// Package quarantine tracks per-path failure history and relocates
// repeatedly failing items into the errors directory, out of the watcher's
// sight, with a JSON sidecar describing what went wrong.
package quarantine

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/logging"
)

// Sidecar is written next to a quarantined item as <name>.error.
type Sidecar struct {
	OriginalPath   string    `json:"original_path"`
	FirstErrorTime time.Time `json:"first_error_time"`
	Attempts       int       `json:"attempts"`
	LastError      string    `json:"last_error"`
}

type failure struct {
	attempts  int
	firstSeen time.Time
	lastError string
}

// Manager counts failures per path and moves exhausted items aside. The
// counter lives in memory; the durable failure trail is the ledger.
type Manager struct {
	dir         string
	maxAttempts int
	logger      *slog.Logger

	mu       sync.Mutex
	failures map[string]*failure
}

func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		dir:         cfg.QuarantineDir(),
		maxAttempts: cfg.Retry.MaxAttempts,
		logger:      logger,
		failures:    make(map[string]*failure),
	}
}

// Dir returns the quarantine directory path.
func (m *Manager) Dir() string {
	return m.dir
}

// Contains reports whether path sits inside the quarantine directory.
// Quarantined items must never re-enter the pipeline.
func (m *Manager) Contains(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	rel, err := filepath.Rel(m.dir, abs)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

// RecordFailure increments the failure count for path and returns the new
// attempt count.
func (m *Manager) RecordFailure(path string, cause error) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.failures[path]
	if entry == nil {
		entry = &failure{firstSeen: time.Now()}
		m.failures[path] = entry
	}
	entry.attempts++
	if cause != nil {
		entry.lastError = cause.Error()
	}
	return entry.attempts
}

// Attempts returns the recorded failure count for path.
func (m *Manager) Attempts(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry := m.failures[path]; entry != nil {
		return entry.attempts
	}
	return 0
}

// Exhaust forces the failure count for path to the retry budget, used when
// an error is known to be permanent and retrying would be pointless.
func (m *Manager) Exhaust(path string, cause error) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.failures[path]
	if entry == nil {
		entry = &failure{firstSeen: time.Now()}
		m.failures[path] = entry
	}
	if entry.attempts < m.maxAttempts {
		entry.attempts = m.maxAttempts
	}
	if cause != nil {
		entry.lastError = cause.Error()
	}
	return entry.attempts
}

// ShouldQuarantine reports whether path has used up its retry budget.
func (m *Manager) ShouldQuarantine(path string) bool {
	return m.Attempts(path) >= m.maxAttempts
}

// Forget clears failure history for path, after a success or once the item
// has been moved aside.
func (m *Manager) Forget(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, path)
}

// Move relocates path into the quarantine directory and writes the .error
// sidecar. Name collisions get a timestamp suffix. Returns the destination.
func (m *Manager) Move(path string) (string, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("create quarantine dir: %w", err)
	}

	dest := filepath.Join(m.dir, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		stamp := time.Now().Format("20060102-150405")
		ext := filepath.Ext(dest)
		base := strings.TrimSuffix(filepath.Base(dest), ext)
		dest = filepath.Join(m.dir, fmt.Sprintf("%s-%s%s", base, stamp, ext))
	}

	if err := movePath(path, dest); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", path, err)
	}

	m.mu.Lock()
	entry := m.failures[path]
	if entry == nil {
		entry = &failure{firstSeen: time.Now()}
	}
	sidecar := Sidecar{
		OriginalPath:   path,
		FirstErrorTime: entry.firstSeen,
		Attempts:       entry.attempts,
		LastError:      entry.lastError,
	}
	delete(m.failures, path)
	m.mu.Unlock()

	if err := writeSidecar(dest+".error", sidecar); err != nil {
		m.logger.Warn("failed to write quarantine sidecar",
			logging.String("path", dest),
			logging.Error(err))
	}

	m.logger.Warn("item quarantined",
		logging.String("source", path),
		logging.String("destination", dest),
		logging.Int("attempts", sidecar.Attempts))
	return dest, nil
}

func writeSidecar(path string, sidecar Sidecar) error {
	data, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// movePath renames, falling back to copy-and-delete when source and
// destination live on different filesystems.
func movePath(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		if err := copyDir(src, dest); err != nil {
			return err
		}
	} else {
		if err := copyFile(src, dest, info.Mode()); err != nil {
			return err
		}
	}
	return os.RemoveAll(src)
}

func copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func copyDir(src, dest string) error {
	return filepath.WalkDir(src, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if entry.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode())
	})
}
