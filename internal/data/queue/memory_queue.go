// Package queue buffers changed file paths between the watcher and the
// re-index loop.
package queue

import (
	"context"
	"io"
	"sync"
	"time"

	"pyanchor/internal/core/ports"
)

var _ ports.PathQueue = (*MemoryQueue)(nil)

// MemoryQueue is a bounded in-memory path queue. A path already
// waiting in the queue is not enqueued twice; editors routinely fire
// several events per save and one re-index covers them all.
type MemoryQueue struct {
	ch      chan string
	mu      sync.Mutex
	pending map[string]struct{}
	closed  bool
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryQueue{
		ch:      make(chan string, capacity),
		pending: make(map[string]struct{}, capacity),
	}
}

func (q *MemoryQueue) Enqueue(path string) ports.EnqueueResult {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ports.EnqueueDropped
	}
	if _, ok := q.pending[path]; ok {
		return ports.EnqueueAccepted
	}
	select {
	case q.ch <- path:
		q.pending[path] = struct{}{}
		return ports.EnqueueAccepted
	default:
		return ports.EnqueueDropped
	}
}

// DequeueBatch returns up to maxItems paths, waiting at most wait for
// the first one. A nil batch with nil error means the wait elapsed
// with nothing queued; io.EOF means the queue was closed.
func (q *MemoryQueue) DequeueBatch(ctx context.Context, maxItems int, wait time.Duration) ([]string, error) {
	if maxItems <= 0 {
		maxItems = 1
	}
	batch := make([]string, 0, maxItems)

	var timer <-chan time.Time
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		timer = t.C
	}

	select {
	case path, ok := <-q.ch:
		if !ok {
			return nil, io.EOF
		}
		batch = append(batch, q.take(path))
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer:
		return nil, nil
	default:
		if wait <= 0 {
			return nil, nil
		}
		select {
		case path, ok := <-q.ch:
			if !ok {
				return nil, io.EOF
			}
			batch = append(batch, q.take(path))
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer:
			return nil, nil
		}
	}

	for len(batch) < maxItems {
		select {
		case path, ok := <-q.ch:
			if !ok {
				return batch, io.EOF
			}
			batch = append(batch, q.take(path))
		default:
			return batch, nil
		}
	}

	return batch, nil
}

func (q *MemoryQueue) take(path string) string {
	q.mu.Lock()
	delete(q.pending, path)
	q.mu.Unlock()
	return path
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.ch)
	return nil
}

func (q *MemoryQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.ch)
}
