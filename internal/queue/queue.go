// Package queue implements the durable work-queue runtime shared by all
// job handlers: delayed delivery, priority, bounded retries with backoff,
// dead-lettering, per-queue concurrency and cluster-wide single active
// consumer enforcement.
package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BackoffKind selects how the retry delay grows.
type BackoffKind string

const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffExponential BackoffKind = "exponential"
)

type Backoff struct {
	Kind  BackoffKind
	Delay time.Duration
}

// NextDelay returns the delay before the given retry attempt (0-based).
func (b Backoff) NextDelay(attempt int) time.Duration {
	if b.Kind != BackoffExponential {
		return b.Delay
	}
	delay := b.Delay
	for i := 0; i < attempt && delay < time.Hour; i++ {
		delay *= 2
	}
	return delay
}

// Definition declares a queue's processing contract. Concurrency bounds
// how many payloads one worker processes in parallel; SingleActiveConsumer
// constrains the whole queue, across all worker processes, to one active
// consumer.
type Definition struct {
	Name                 string
	Concurrency          int
	MaxRetries           int
	Timeout              time.Duration
	Backoff              Backoff
	Priority             bool
	SingleActiveConsumer bool
}

// Message is one unit of work. Retries counts delivery attempts already
// consumed. Priority is a queue-level property, not a per-message one:
// prioritized sends jump the ready list at enqueue time.
type Message struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
	Retries int             `json:"retries"`
}

func NewMessage(payload json.RawMessage) Message {
	return Message{ID: uuid.NewString(), Payload: payload}
}
