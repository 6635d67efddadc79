// Package daemon wires the ingestion components together and owns their
// lifecycle: single-instance locking, startup reconciliation, the health
// loop, and cooperative shutdown.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"inkwell/internal/config"
	"inkwell/internal/enrich"
	"inkwell/internal/extract"
	"inkwell/internal/ingest"
	"inkwell/internal/ledger"
	"inkwell/internal/logging"
	"inkwell/internal/notes"
	"inkwell/internal/procqueue"
	"inkwell/internal/quarantine"
	"inkwell/internal/stability"
	"inkwell/internal/watcher"
)

// Daemon is the assembled ingestion service.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	lock     *flock.Flock
	store    *ledger.Store
	queue    *procqueue.Queue
	detector *stability.Detector
	watcher  *watcher.Watcher

	healthInterval time.Duration
	retentionDays  int
}

// New builds a daemon but takes no locks and starts nothing.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare directories: %w", err)
	}

	store, err := ledger.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	quarantineManager := quarantine.NewManager(cfg, logger)
	enricher := enrich.NewClient(cfg, logger)

	registry := extract.NewRegistry(
		extract.NewTextExtractor(),
		extract.NewAudioExtractor(cfg),
		extract.NewImageExtractor(enricher),
	)
	registry.Register(extract.NewFolderExtractor(registry))

	pipeline := ingest.NewPipeline(store, registry, enricher, notes.NewWriter(cfg, logger), quarantineManager, logger)
	queue := procqueue.New(cfg, pipeline.Handle, logger)
	detector := stability.NewDetector(cfg, store, quarantineManager, queue, logger)

	fsWatcher, err := watcher.New(cfg.Paths.WatchDir, detector, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Daemon{
		cfg:            cfg,
		logger:         logger,
		lock:           flock.New(filepath.Join(cfg.Paths.LogDir, "inkwelld.lock")),
		store:          store,
		queue:          queue,
		detector:       detector,
		watcher:        fsWatcher,
		healthInterval: time.Duration(cfg.Stability.HealthIntervalSeconds) * time.Second,
		retentionDays:  cfg.Ledger.RetentionDays,
	}, nil
}

// Store exposes the ledger for status tooling.
func (d *Daemon) Store() *ledger.Store {
	return d.store
}

// Queue exposes queue statistics for status tooling.
func (d *Daemon) Queue() *procqueue.Queue {
	return d.queue
}

// Run starts everything and blocks until ctx is cancelled, then drains.
func (d *Daemon) Run(ctx context.Context) error {
	locked, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another instance already holds %s", d.lock.Path())
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("releasing instance lock", logging.Error(err))
		}
	}()

	d.reportStale(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// In-flight callbacks are non-interruptible units of work: the queue's
	// own drain timeout decides when they are cancelled, not the signal.
	d.queue.Start(context.WithoutCancel(ctx))
	go d.watcher.Run(runCtx)
	go d.detector.Run(runCtx)
	go d.healthLoop(runCtx)

	d.logger.Info("daemon started",
		logging.String("watch_dir", d.cfg.Paths.WatchDir),
		logging.String("vault_dir", d.cfg.Paths.VaultDir))

	<-ctx.Done()
	d.logger.Info("shutting down")
	cancel()

	if err := d.queue.Shutdown(); err != nil {
		d.logger.Warn("queue shutdown", logging.Error(err))
	}
	if err := d.store.Close(); err != nil {
		d.logger.Warn("closing ledger", logging.Error(err))
	}
	d.logger.Info("daemon stopped")
	return nil
}

// reportStale logs ledger records a previous run left in processing. They
// are not requeued automatically; the reconciliation scan re-observes any
// whose source still exists in the inbox.
func (d *Daemon) reportStale(ctx context.Context) {
	stale, err := d.store.StaleProcessing(ctx)
	if err != nil {
		d.logger.Warn("checking for interrupted work", logging.Error(err))
		return
	}
	for _, record := range stale {
		d.logger.Warn("found work interrupted by a previous shutdown",
			logging.String("path", record.OriginalPath),
			logging.String("hash", record.ContentHash))
	}
}

func (d *Daemon) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(d.healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.healthCheck(ctx)
		}
	}
}

func (d *Daemon) healthCheck(ctx context.Context) {
	stats, err := d.store.Statistics(ctx)
	if err != nil {
		d.logger.Warn("ledger statistics unavailable", logging.Error(err))
	} else {
		queueStats := d.queue.Stats()
		d.logger.Info("health",
			logging.Int("ledger_success", stats.TotalSuccess),
			logging.Int("ledger_failed", stats.TotalFailed),
			logging.Int("queue_pending", queueStats.Pending),
			logging.Int("queue_processing", queueStats.Processing),
			logging.Float64("success_rate", stats.SuccessRate))
	}

	removed, err := d.store.Cleanup(ctx, d.retentionDays)
	if err != nil {
		d.logger.Warn("ledger cleanup failed", logging.Error(err))
		return
	}
	if removed > 0 {
		d.logger.Info("ledger cleanup",
			logging.Int64("removed", removed),
			logging.Int("retention_days", d.retentionDays))
	}
}
