package stability

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/ledger"
	"inkwell/internal/logging"
)

// Ledger answers whether content has already been ingested. The detector
// hashes a path once it settles and remembers the hash on the observation,
// so readiness checks never re-read large files.
type Ledger interface {
	IsProcessedHash(ctx context.Context, contentHash string) bool
}

// Excluder reports paths the detector must never observe, such as the
// quarantine directory.
type Excluder interface {
	Contains(path string) bool
}

// Jobs is the downstream queue surface. A false Submit return means the
// offer was rejected (queue full or duplicate); the detector keeps the
// observation and offers it again on a later tick. Active filters paths a
// worker is already handling out of reconciliation scans.
type Jobs interface {
	Submit(path string) bool
	Active(path string) bool
}

type observation struct {
	path      string
	isDir     bool
	firstSeen time.Time
	lastQuiet time.Time // last time the measurement changed
	size      int64
	fileCount int
	statMiss  int
	hash      string // computed once the entry settles
}

// Detector owns the stability state machines for everything currently
// arriving in the watch directory.
type Detector struct {
	ledger   Ledger
	excluder Excluder
	jobs     Jobs
	logger   *slog.Logger

	watchDir      string
	requiredQuiet time.Duration
	maxWait       time.Duration
	folderQuiet   time.Duration
	tick          time.Duration
	scanInterval  time.Duration
	statAttempts  int

	now func() time.Time

	incoming     chan string
	observations map[string]*observation
}

func NewDetector(cfg *config.Config, store Ledger, excluder Excluder, jobs Jobs, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Detector{
		ledger:        store,
		excluder:      excluder,
		jobs:          jobs,
		logger:        logger,
		watchDir:      cfg.Paths.WatchDir,
		requiredQuiet: time.Duration(cfg.Stability.RequiredStableSeconds) * time.Second,
		maxWait:       time.Duration(cfg.Stability.MaxWaitSeconds) * time.Second,
		folderQuiet:   time.Duration(cfg.Stability.FolderTimeoutSeconds) * time.Second,
		tick:          time.Duration(cfg.Stability.TickIntervalMillis) * time.Millisecond,
		scanInterval:  time.Duration(cfg.Stability.ScanIntervalSeconds) * time.Second,
		statAttempts:  cfg.Stability.StatAttempts,
		now:           time.Now,
		incoming:      make(chan string, 256),
		observations:  make(map[string]*observation),
	}
}

// Observe asks the detector to start tracking a path. Safe to call from any
// goroutine; events are dropped rather than blocking the caller when the
// detector is saturated.
func (d *Detector) Observe(path string) {
	select {
	case d.incoming <- path:
	default:
		d.logger.Warn("observation backlog full, relying on reconciliation scan",
			logging.String("path", path))
	}
}

// Run owns the detector loop until ctx is cancelled. It performs a
// reconciliation scan at startup, then reacts to watcher events, ticks, and
// periodic rescans.
func (d *Detector) Run(ctx context.Context) {
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()
	rescan := time.NewTicker(d.scanInterval)
	defer rescan.Stop()

	d.scan()

	for {
		select {
		case <-ctx.Done():
			return
		case path := <-d.incoming:
			d.admit(path)
		case <-ticker.C:
			d.advance(ctx, d.now())
		case <-rescan.C:
			d.scan()
		}
	}
}

// scan lists the watch directory's top-level entries and admits anything
// not already tracked. This catches events lost while the daemon was down
// and watcher races.
func (d *Detector) scan() {
	entries, err := os.ReadDir(d.watchDir)
	if err != nil {
		d.logger.Warn("watch directory scan failed", logging.Error(err))
		return
	}
	for _, entry := range entries {
		d.admit(filepath.Join(d.watchDir, entry.Name()))
	}
}

// admit starts an observation for path unless a filter excludes it.
func (d *Detector) admit(path string) {
	if _, tracked := d.observations[path]; tracked {
		return
	}
	if d.filtered(path) {
		return
	}
	if d.jobs.Active(path) {
		// A worker already owns this path; the ledger outcome decides
		// whether a later scan re-admits it.
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		// A create event for a path already gone; nothing to track.
		return
	}

	now := d.now()
	obs := &observation{
		path:      path,
		isDir:     info.IsDir(),
		firstSeen: now,
		lastQuiet: now,
		size:      info.Size(),
	}
	if obs.isDir {
		obs.fileCount = countFiles(path)
	}
	d.observations[path] = obs
	d.logger.Debug("observing", logging.String("path", path), logging.Bool("dir", obs.isDir))
}

// filtered reports whether path must be ignored entirely: hidden names,
// iCloud placeholders, anything inside the quarantine directory, and the
// quarantine directory itself.
func (d *Detector) filtered(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return true
	}
	if strings.HasSuffix(name, ".icloud") {
		return true
	}
	if d.excluder != nil && d.excluder.Contains(path) {
		return true
	}
	return false
}

// advance steps every observation state machine once.
func (d *Detector) advance(ctx context.Context, now time.Time) {
	for path, obs := range d.observations {
		info, err := os.Stat(path)
		if err != nil {
			obs.statMiss++
			if obs.statMiss >= d.statAttempts {
				d.logger.Debug("observed path vanished", logging.String("path", path))
				delete(d.observations, path)
			}
			continue
		}
		obs.statMiss = 0

		if obs.isDir != info.IsDir() {
			// Replaced with a different kind of entry; restart observation.
			obs.isDir = info.IsDir()
			obs.firstSeen = now
			obs.lastQuiet = now
			obs.size = info.Size()
			obs.fileCount = countFiles(path)
			obs.hash = ""
			continue
		}

		if obs.isDir {
			d.advanceFolder(ctx, obs, now)
			continue
		}
		d.advanceFile(ctx, obs, info, now)
	}
}

func (d *Detector) advanceFile(ctx context.Context, obs *observation, info fs.FileInfo, now time.Time) {
	if info.Size() != obs.size {
		obs.size = info.Size()
		obs.lastQuiet = now
		obs.hash = ""
		return
	}
	quietFor := now.Sub(obs.lastQuiet)
	waited := now.Sub(obs.firstSeen)
	if quietFor < d.requiredQuiet && waited < d.maxWait {
		return
	}
	if quietFor < d.requiredQuiet {
		d.logger.Warn("stability wait exceeded, forcing submission",
			logging.String("path", obs.path),
			logging.Duration("waited", waited))
	}
	d.ready(ctx, obs)
}

func (d *Detector) advanceFolder(ctx context.Context, obs *observation, now time.Time) {
	count := countFiles(obs.path)
	if count != obs.fileCount {
		obs.fileCount = count
		obs.lastQuiet = now
		return
	}
	if now.Sub(obs.lastQuiet) < d.folderQuiet {
		return
	}
	d.ready(ctx, obs)
}

// ready runs the final pre-submission filters and offers the path
// downstream. Zero-byte files and already-ingested content are dropped.
func (d *Detector) ready(ctx context.Context, obs *observation) {
	if !obs.isDir && obs.size == 0 {
		d.logger.Debug("skipping empty file", logging.String("path", obs.path))
		delete(d.observations, obs.path)
		return
	}
	if d.ledger != nil {
		if obs.hash == "" {
			hash, err := ledger.Hash(obs.path)
			if err != nil {
				d.logger.Debug("could not hash settled entry", logging.String("path", obs.path), logging.Error(err))
				delete(d.observations, obs.path)
				return
			}
			obs.hash = hash
		}
		if d.ledger.IsProcessedHash(ctx, obs.hash) {
			d.logger.Info("skipping already-ingested content", logging.String("path", obs.path))
			delete(d.observations, obs.path)
			return
		}
	}
	if d.jobs.Submit(obs.path) {
		d.logger.Info("stable, submitted",
			logging.String("path", obs.path),
			logging.Duration("settle", d.now().Sub(obs.firstSeen)))
		delete(d.observations, obs.path)
		return
	}
	// Rejected; keep the observation and offer again on a later tick.
}

// countFiles counts visible regular files under dir, recursively. Hidden
// entries and iCloud placeholders do not count toward completion.
func countFiles(dir string) int {
	count := 0
	_ = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") && path != dir {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.IsDir() && !strings.HasSuffix(name, ".icloud") {
			count++
		}
		return nil
	})
	return count
}
