package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/d347h-eth/indexer-public/internal/metrics"
)

// ProducerState tracks the stream producer connection lifecycle.
type ProducerState int32

const (
	StateDisconnected ProducerState = iota
	StateConnected
	StateReconnecting
)

func (s ProducerState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// StreamProducer publishes batch notifications to a redis stream. It is an
// explicitly constructed, injectable object with a start/stop lifecycle;
// on publish failure it transitions Connected -> Disconnected ->
// Reconnecting and re-establishes the connection in the background.
type StreamProducer struct {
	url            string
	stream         string
	maxLen         int64
	reconnectDelay time.Duration
	logger         *slog.Logger

	mu     sync.Mutex
	rdb    *redis.Client
	state  ProducerState
	stopCh chan struct{}
}

type StreamProducerConfig struct {
	URL            string
	Stream         string
	MaxLen         int64 // approximate stream trim length, 0 = unbounded
	ReconnectDelay time.Duration
}

func NewStreamProducer(cfg StreamProducerConfig, logger *slog.Logger) *StreamProducer {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	return &StreamProducer{
		url:            cfg.URL,
		stream:         cfg.Stream,
		maxLen:         cfg.MaxLen,
		reconnectDelay: cfg.ReconnectDelay,
		logger:         logger.With("component", "stream-producer"),
		state:          StateDisconnected,
		stopCh:         make(chan struct{}),
	}
}

// Start establishes the connection. Must be called before Publish.
func (p *StreamProducer) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectLocked(ctx)
}

// Stop closes the connection and halts any in-flight reconnect loop.
func (p *StreamProducer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	close(p.stopCh)
	p.setStateLocked(StateDisconnected)
	if p.rdb != nil {
		err := p.rdb.Close()
		p.rdb = nil
		return err
	}
	return nil
}

// State returns the current lifecycle state.
func (p *StreamProducer) State() ProducerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Publish appends a JSON-encoded message to the stream. Returns false
// without error while the producer is disconnected or reconnecting, so
// callers degrade to a no-op instead of blocking the pipeline.
func (p *StreamProducer) Publish(ctx context.Context, message interface{}, partitionKey string) (bool, error) {
	p.mu.Lock()
	if p.state != StateConnected || p.rdb == nil {
		p.mu.Unlock()
		metrics.StreamEventsDropped.WithLabelValues(p.stream).Inc()
		return false, nil
	}
	rdb := p.rdb
	p.mu.Unlock()

	raw, err := json.Marshal(message)
	if err != nil {
		return false, fmt.Errorf("marshal stream message: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{"payload": raw, "key": partitionKey},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := rdb.XAdd(ctx, args).Err(); err != nil {
		metrics.StreamEventsDropped.WithLabelValues(p.stream).Inc()
		p.logger.Error("stream publish failed, reconnecting", "stream", p.stream, "error", err)
		go p.reconnect()
		return false, fmt.Errorf("publish to stream %s: %w", p.stream, err)
	}
	metrics.StreamEventsPublished.WithLabelValues(p.stream).Inc()
	return true, nil
}

func (p *StreamProducer) setStateLocked(s ProducerState) {
	p.state = s
	metrics.StreamProducerState.WithLabelValues(p.stream).Set(float64(s))
}

func (p *StreamProducer) connectLocked(ctx context.Context) error {
	opts, err := redis.ParseURL(p.url)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("ping redis: %w", err)
	}

	p.rdb = rdb
	p.setStateLocked(StateConnected)
	p.logger.Info("stream producer connected", "stream", p.stream)
	return nil
}

func (p *StreamProducer) reconnect() {
	p.mu.Lock()
	if p.state == StateReconnecting {
		p.mu.Unlock()
		return
	}
	p.setStateLocked(StateReconnecting)
	if p.rdb != nil {
		_ = p.rdb.Close()
		p.rdb = nil
	}
	p.mu.Unlock()

	for {
		select {
		case <-p.stopCh:
			return
		case <-time.After(p.reconnectDelay):
		}

		p.mu.Lock()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := p.connectLocked(ctx)
		cancel()
		p.mu.Unlock()

		if err == nil {
			return
		}
		p.logger.Warn("stream producer reconnect failed", "stream", p.stream, "error", err)
	}
}
