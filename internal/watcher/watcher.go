// Package watcher bridges filesystem notifications into the stability
// detector. It watches the top level of the inbox only; the detector's
// polling handles everything below the surface, so missed or coalesced
// events cost latency, never correctness.
package watcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"

	"inkwell/internal/logging"
)

// Sink receives paths that produced filesystem activity.
type Sink interface {
	Observe(path string)
}

// Watcher forwards fsnotify events for the watch directory to a Sink.
type Watcher struct {
	dir    string
	sink   Sink
	logger *slog.Logger
	fsw    *fsnotify.Watcher
}

func New(dir string, sink Sink, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{dir: dir, sink: sink, logger: logger, fsw: fsw}, nil
}

// Run forwards events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer func() {
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("closing watcher", logging.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.sink.Observe(event.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", logging.Error(err))
		}
	}
}
