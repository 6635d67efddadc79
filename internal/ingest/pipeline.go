// Package ingest runs the processing pipeline for one stable inbox item:
// record it in the ledger, extract content, enrich it, write the note, and
// clean up the inbox. Failures feed the retry counter and, once the budget
// is spent, quarantine.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"inkwell/internal/enrich"
	"inkwell/internal/extract"
	"inkwell/internal/ledger"
	"inkwell/internal/logging"
	"inkwell/internal/notes"
	"inkwell/internal/procqueue"
	"inkwell/internal/quarantine"
	"inkwell/internal/services"
)

// Enricher is the model-backed enrichment step.
type Enricher interface {
	Enrich(ctx context.Context, title, body string) (*enrich.Enrichment, error)
}

// NoteWriter persists a note into the vault.
type NoteWriter interface {
	Write(content *extract.Content, enrichment *enrich.Enrichment) (*notes.Result, error)
}

// Pipeline is the queue handler for stable paths.
type Pipeline struct {
	store      *ledger.Store
	registry   *extract.Registry
	enricher   Enricher
	writer     NoteWriter
	quarantine *quarantine.Manager
	logger     *slog.Logger
}

func NewPipeline(store *ledger.Store, registry *extract.Registry, enricher Enricher, writer NoteWriter, q *quarantine.Manager, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		store:      store,
		registry:   registry,
		enricher:   enricher,
		writer:     writer,
		quarantine: q,
		logger:     logger,
	}
}

// Handle processes one job. The returned error is what the queue records;
// ledger and quarantine bookkeeping happen here.
func (p *Pipeline) Handle(ctx context.Context, job *procqueue.Job) error {
	start := time.Now()
	path := job.Path
	logger := p.logger.With(
		logging.String("job_id", job.ID),
		logging.String("path", path))

	// A restart resets the in-memory failure counter, so a terminally failed
	// item could otherwise be reprocessed forever. The ledger is the durable
	// record; honor it before touching the item again.
	if rec, recErr := p.store.Record(ctx, path); recErr == nil && rec != nil && rec.Status == ledger.StatusFailed {
		lastErr := rec.ErrorMessage
		if lastErr == "" {
			lastErr = "previously failed permanently"
		}
		p.quarantine.Exhaust(path, fmt.Errorf("%s", lastErr))
		if _, moveErr := p.quarantine.Move(path); moveErr != nil {
			logger.Error("quarantine move failed, item stays in inbox", logging.Error(moveErr))
			return moveErr
		}
		logger.Warn("quarantined item already marked failed in ledger")
		return fmt.Errorf("content already failed permanently: %s", lastErr)
	}

	hash, err := p.store.MarkProcessing(ctx, path)
	if err != nil {
		return p.fail(ctx, logger, path, fmt.Errorf("recording processing state: %w", err))
	}

	// Identical bytes may have arrived under another path and finished while
	// this copy sat in the queue. MarkProcessing never clobbers a success
	// row, so a success here means the content is already in the vault.
	if p.store.IsProcessedHash(ctx, hash) {
		if err := os.RemoveAll(path); err != nil {
			logger.Warn("could not remove duplicate source", logging.Error(err))
		}
		p.quarantine.Forget(path)
		logger.Info("content already ingested, duplicate removed")
		return nil
	}

	content, err := p.registry.Extract(ctx, path)
	if err != nil {
		return p.fail(ctx, logger, path, err)
	}

	enrichment, err := p.enricher.Enrich(ctx, content.Title, content.Body)
	if err != nil {
		return p.fail(ctx, logger, path, err)
	}

	result, err := p.writer.Write(content, enrichment)
	if err != nil {
		return p.fail(ctx, logger, path, fmt.Errorf("writing note: %w", err))
	}

	// Whatever the extractors left behind in the inbox is done with.
	if err := os.RemoveAll(path); err != nil {
		logger.Warn("could not remove ingested source", logging.Error(err))
	}

	if err := p.store.MarkSuccess(ctx, hash, ledger.SuccessResult{
		Duration:       time.Since(start),
		NotePath:       result.NotePath,
		AttachmentPath: result.AttachmentPath,
		Language:       content.Language,
	}); err != nil {
		logger.Warn("note written but ledger update failed", logging.Error(err))
	}
	p.quarantine.Forget(path)

	logger.Info("ingested",
		logging.String("source", content.Source),
		logging.String("note", result.NotePath),
		logging.Duration("elapsed", time.Since(start)))
	return nil
}

// fail records the failure, decides between retry and quarantine, and
// returns the original error for the queue.
func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, path string, cause error) error {
	var attempts int
	if services.Retryable(cause) {
		attempts = p.quarantine.RecordFailure(path, cause)
	} else {
		attempts = p.quarantine.Exhaust(path, cause)
	}

	status, markErr := p.store.MarkFailed(ctx, path, cause.Error(), attempts)
	if markErr != nil {
		logger.Warn("recording failure in ledger failed", logging.Error(markErr))
	}

	if p.quarantine.ShouldQuarantine(path) {
		if _, moveErr := p.quarantine.Move(path); moveErr != nil {
			logger.Error("quarantine move failed, item stays in inbox", logging.Error(moveErr))
		}
	} else {
		logger.Warn("ingestion failed, will retry",
			logging.Int("attempts", attempts),
			logging.String("status", string(status)),
			logging.Error(cause))
	}
	return cause
}
