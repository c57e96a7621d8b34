package queue

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyanchor/internal/core/ports"
)

func TestEnqueueDedupesPendingPaths(t *testing.T) {
	q := NewMemoryQueue(4)
	defer q.Close()

	assert.Equal(t, ports.EnqueueAccepted, q.Enqueue("a.py"))
	assert.Equal(t, ports.EnqueueAccepted, q.Enqueue("a.py"))
	assert.Equal(t, ports.EnqueueAccepted, q.Enqueue("b.py"))
	assert.Equal(t, 2, q.Len())
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	q := NewMemoryQueue(1)
	defer q.Close()

	assert.Equal(t, ports.EnqueueAccepted, q.Enqueue("a.py"))
	assert.Equal(t, ports.EnqueueDropped, q.Enqueue("b.py"))
}

func TestDequeueBatchDrainsUpToMax(t *testing.T) {
	q := NewMemoryQueue(8)
	defer q.Close()

	q.Enqueue("a.py")
	q.Enqueue("b.py")
	q.Enqueue("c.py")

	batch, err := q.DequeueBatch(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py", "b.py"}, batch)

	batch, err = q.DequeueBatch(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c.py"}, batch)
}

func TestDequeueBatchTimesOutEmpty(t *testing.T) {
	q := NewMemoryQueue(1)
	defer q.Close()

	batch, err := q.DequeueBatch(context.Background(), 4, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, batch)
}

func TestDequeuedPathCanBeEnqueuedAgain(t *testing.T) {
	q := NewMemoryQueue(4)
	defer q.Close()

	q.Enqueue("a.py")
	_, err := q.DequeueBatch(context.Background(), 1, 0)
	require.NoError(t, err)

	assert.Equal(t, ports.EnqueueAccepted, q.Enqueue("a.py"))
	assert.Equal(t, 1, q.Len())
}

func TestDequeueAfterCloseReturnsEOF(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Close())

	_, err := q.DequeueBatch(context.Background(), 1, 0)
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, ports.EnqueueDropped, q.Enqueue("a.py"))
}

func TestDequeueRespectsContext(t *testing.T) {
	q := NewMemoryQueue(1)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.DequeueBatch(ctx, 1, time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
