package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Sender is the producer-side handle of one queue.
type Sender struct {
	def       Definition
	transport Transport
}

func NewSender(def Definition, transport Transport) *Sender {
	return &Sender{def: def, transport: transport}
}

func (s *Sender) Name() string { return s.def.Name }

// Send enqueues one payload, deliverable after delay.
func (s *Sender) Send(ctx context.Context, payload interface{}, delay time.Duration) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", s.def.Name, err)
	}
	return s.transport.Enqueue(ctx, s.def.Name, NewMessage(raw), delay, false)
}

// SendPrioritized enqueues one payload at the head of the queue. Only
// meaningful on queues declared with Priority.
func (s *Sender) SendPrioritized(ctx context.Context, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", s.def.Name, err)
	}
	return s.transport.Enqueue(ctx, s.def.Name, NewMessage(raw), 0, s.def.Priority)
}

// SendBatch enqueues payloads in order with a shared delay.
func (s *Sender) SendBatch(ctx context.Context, payloads []interface{}, delay time.Duration) error {
	for _, p := range payloads {
		if err := s.Send(ctx, p, delay); err != nil {
			return err
		}
	}
	return nil
}
