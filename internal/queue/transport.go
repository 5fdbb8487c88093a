package queue

import (
	"context"
	"time"
)

// Transport is the broker abstraction the queue runtime is built on. The
// production implementation is redis-backed; an in-memory implementation
// serves tests and single-process development.
type Transport interface {
	// Enqueue makes a message deliverable after delay. front requeues at
	// the head of the ready queue (used for prioritized payloads).
	Enqueue(ctx context.Context, queue string, msg Message, delay time.Duration, front bool) error

	// Dequeue promotes due delayed messages, then pops one ready message,
	// blocking up to block. Returns nil when nothing became ready.
	Dequeue(ctx context.Context, queue string, block time.Duration) (*Message, error)

	// DeadLetter moves a message to the queue's terminal dead-letter list.
	DeadLetter(ctx context.Context, queue string, msg Message) error

	// Depth reports ready + delayed message counts for observability.
	Depth(ctx context.Context, queue string) (int64, error)
}

// Locker is the distributed mutual-exclusion primitive used for single
// active consumer enforcement and job-level locks.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ExtendLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name string) error
}
