package repository

import (
	"context"
	"time"
)

// QueueRepository defines the interface for a FIFO queue of run ids.
type QueueRepository interface {
	// Push adds a run id to the end of the queue.
	Push(ctx context.Context, runID string) error
	// Pop removes and returns the id at the front of the queue, waiting up to
	// wait for one to arrive. It returns ErrQueueEmpty when none did.
	Pop(ctx context.Context, wait time.Duration) (string, error)
	// Size returns the current number of queued runs.
	Size(ctx context.Context) (int64, error)
}
