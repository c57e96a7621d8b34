package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"pyanchor/internal/core/ports"
	"pyanchor/internal/data/queue"
	"pyanchor/internal/output"
	"pyanchor/internal/shared/observability"
	"pyanchor/internal/shared/util"
	"pyanchor/internal/watcher"
)

const (
	watchQueueCapacity = 256
	watchBatchSize     = 32
	watchBatchWait     = time.Second
)

// Watch re-indexes changed files until ctx is cancelled. It assumes an
// initial RunOnce already populated runID; each batch replaces the
// stored anchors of its files and appends fresh records to w.
func (a *App) Watch(ctx context.Context, w *output.Writer, runID string) error {
	var limiter *util.Limiter
	if rps := a.Config.Watch.MaxEventsPerSecond; rps > 0 {
		limiter = util.NewLimiter(rps, int(rps)+1)
	}

	q := queue.NewMemoryQueue(watchQueueCapacity)
	defer q.Close()

	fw, err := watcher.New(
		a.Config.Corpus.Root,
		a.Config.Watch.Debounce,
		a.Config.Paths.Include,
		a.Config.Paths.Exclude,
		func(paths []string) {
			for _, path := range paths {
				if q.Enqueue(path) == ports.EnqueueDropped {
					slog.Warn("re-index queue full, dropping change", "path", path)
				}
			}
		},
	)
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Start(); err != nil {
		return err
	}
	slog.Info("watching for changes", "root", a.Config.Corpus.Root)

	for {
		paths, err := q.DequeueBatch(ctx, watchBatchSize, watchBatchWait)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		for _, path := range paths {
			if limiter != nil {
				if err := limiter.Wait(ctx, 1); err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err != nil {
				// Deleted between event and batch; nothing to index.
				continue
			}
			if err := a.processFile(ctx, w, runID, path); err != nil {
				return err
			}
			observability.WatcherReindexTotal.Inc()
		}
	}
}
