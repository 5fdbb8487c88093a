package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryTransport is a process-local Transport for tests and development.
type MemoryTransport struct {
	mu      sync.Mutex
	ready   map[string][]Message
	delayed map[string][]delayedMessage
	dead    map[string][]Message
}

type delayedMessage struct {
	msg     Message
	readyAt time.Time
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		ready:   make(map[string][]Message),
		delayed: make(map[string][]delayedMessage),
		dead:    make(map[string][]Message),
	}
}

func (t *MemoryTransport) Enqueue(_ context.Context, queue string, msg Message, delay time.Duration, front bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if delay > 0 {
		t.delayed[queue] = append(t.delayed[queue], delayedMessage{msg: msg, readyAt: time.Now().Add(delay)})
		return nil
	}
	if front {
		t.ready[queue] = append([]Message{msg}, t.ready[queue]...)
	} else {
		t.ready[queue] = append(t.ready[queue], msg)
	}
	return nil
}

func (t *MemoryTransport) Dequeue(ctx context.Context, queue string, block time.Duration) (*Message, error) {
	deadline := time.Now().Add(block)
	for {
		t.mu.Lock()
		t.promoteLocked(queue)
		if msgs := t.ready[queue]; len(msgs) > 0 {
			msg := msgs[0]
			t.ready[queue] = msgs[1:]
			t.mu.Unlock()
			return &msg, nil
		}
		t.mu.Unlock()

		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (t *MemoryTransport) promoteLocked(queue string) {
	now := time.Now()
	var still []delayedMessage
	for _, d := range t.delayed[queue] {
		if !d.readyAt.After(now) {
			t.ready[queue] = append(t.ready[queue], d.msg)
		} else {
			still = append(still, d)
		}
	}
	t.delayed[queue] = still
}

func (t *MemoryTransport) DeadLetter(_ context.Context, queue string, msg Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dead[queue] = append(t.dead[queue], msg)
	return nil
}

func (t *MemoryTransport) Depth(_ context.Context, queue string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int64(len(t.ready[queue]) + len(t.delayed[queue])), nil
}

// DeadLetters returns the dead-letter list of a queue (test helper).
func (t *MemoryTransport) DeadLetters(queue string) []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.dead[queue]))
	copy(out, t.dead[queue])
	return out
}
