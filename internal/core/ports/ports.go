// Package ports defines the interfaces between the indexing pipeline
// and its driven adapters, so the pipeline can be exercised against
// in-memory fakes in tests.
package ports

import (
	"context"
	"time"

	"pyanchor/internal/engine/sema"
)

// FactStream receives the ordered record stream of one indexing run:
// a manifest, a meta record plus anchor records per file, and a
// closing summary.
type FactStream interface {
	WriteFile(path, module, encoding string, content []byte, anchors func(func(sema.Anchor) bool)) error
	RecordFailure()
}

// AnchorSink persists per-file analysis outcomes under a run id.
// Saving a file replaces whatever an earlier save of the same path in
// the same run produced.
type AnchorSink interface {
	SaveFile(runID, path, module, encoding string, anchors []sema.Anchor) error
	SaveFailure(runID, path string, cause error) error
}

// PathQueue buffers file paths between the watcher and the re-index
// loop. Enqueue never blocks; a full queue drops the path and the
// caller decides whether that matters.
type PathQueue interface {
	Enqueue(path string) EnqueueResult
	DequeueBatch(ctx context.Context, maxItems int, wait time.Duration) ([]string, error)
	Close() error
	Len() int
}

type EnqueueResult int

const (
	EnqueueAccepted EnqueueResult = iota
	EnqueueDropped
)
