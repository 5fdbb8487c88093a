package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/d347h-eth/indexer-public/internal/alert"
	"github.com/d347h-eth/indexer-public/internal/metrics"
	"github.com/d347h-eth/indexer-public/internal/pipeline/retry"
)

const (
	dequeueBlock = 2 * time.Second

	// singleActiveConsumer lock is held for this long and refreshed on a
	// ticker while the worker keeps consuming.
	consumerLockTTL       = 30 * time.Second
	consumerLockRetryWait = 5 * time.Second
)

var errConsumerLockLost = errors.New("consumer lock lost")

// Handler processes payloads of one queue.
type Handler interface {
	Definition() Definition
	Process(ctx context.Context, payload json.RawMessage) error
}

// Worker pulls messages for one handler. Concurrency (from the handler's
// Definition) bounds parallel payloads in this process; the
// SingleActiveConsumer flag additionally constrains the whole cluster to
// one consuming worker via the distributed lock.
type Worker struct {
	handler   Handler
	transport Transport
	locker    Locker
	logger    *slog.Logger
	alerter   alert.Alerter
	lockTTL   time.Duration
}

type WorkerOption func(*Worker)

func WithAlerter(a alert.Alerter) WorkerOption {
	return func(w *Worker) { w.alerter = a }
}

func NewWorker(handler Handler, transport Transport, locker Locker, logger *slog.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{
		handler:   handler,
		transport: transport,
		locker:    locker,
		logger:    logger.With("component", "queue-worker", "queue", handler.Definition().Name),
		lockTTL:   consumerLockTTL,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Run(ctx context.Context) error {
	def := w.handler.Definition()
	concurrency := def.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			return w.consumeLoop(gCtx)
		})
	}
	return g.Wait()
}

func (w *Worker) consumeLoop(ctx context.Context) error {
	def := w.handler.Definition()
	consumerLock := "single-active-consumer:" + def.Name

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if def.SingleActiveConsumer {
			held, err := w.locker.AcquireLock(ctx, consumerLock, w.lockTTL)
			if err != nil {
				return fmt.Errorf("acquire consumer lock: %w", err)
			}
			if !held {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(consumerLockRetryWait):
				}
				continue
			}
			err = w.consumeWhileHeld(ctx, consumerLock)
			if releaseErr := w.locker.ReleaseLock(context.WithoutCancel(ctx), consumerLock); releaseErr != nil {
				w.logger.Warn("consumer lock release failed", "error", releaseErr)
			}
			if err != nil {
				return err
			}
			continue
		}

		if err := w.consumeOne(ctx); err != nil {
			return err
		}
	}
}

// consumeWhileHeld consumes messages while keeping the single active
// consumer lock alive; it returns (releasing the lock in the caller) when
// the extension fails, which means another worker may take over.
//
// Extension runs on a ticker beside the consume loop: per-message
// timeouts can exceed the lock ttl, so refreshing only between messages
// would let the lock lapse while a handler is still running.
func (w *Worker) consumeWhileHeld(ctx context.Context, consumerLock string) error {
	loopCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	go w.keepLockAlive(loopCtx, cancel, consumerLock)

	var loopErr error
	for loopErr == nil && loopCtx.Err() == nil {
		loopErr = w.consumeOne(loopCtx)
	}

	cause := context.Cause(loopCtx)
	switch {
	case errors.Is(cause, errConsumerLockLost):
		w.logger.Warn("consumer lock lost, yielding queue")
		return nil
	case cause != nil && !errors.Is(cause, context.Canceled) && !errors.Is(cause, context.DeadlineExceeded):
		return cause
	default:
		return loopErr
	}
}

func (w *Worker) keepLockAlive(ctx context.Context, cancel context.CancelCauseFunc, consumerLock string) {
	interval := w.lockTTL / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			held, err := w.locker.ExtendLock(ctx, consumerLock, w.lockTTL)
			if err != nil {
				cancel(fmt.Errorf("extend consumer lock: %w", err))
				return
			}
			if !held {
				cancel(errConsumerLockLost)
				return
			}
		}
	}
}

func (w *Worker) consumeOne(ctx context.Context) error {
	def := w.handler.Definition()

	msg, err := w.transport.Dequeue(ctx, def.Name, dequeueBlock)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		w.logger.Error("dequeue failed", "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
		return nil
	}
	if msg == nil {
		return nil
	}

	w.process(ctx, *msg)
	return nil
}

func (w *Worker) process(ctx context.Context, msg Message) {
	def := w.handler.Definition()

	procCtx := ctx
	var cancel context.CancelFunc
	if def.Timeout > 0 {
		procCtx, cancel = context.WithTimeout(ctx, def.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := w.safeProcess(procCtx, msg.Payload)
	metrics.QueueJobDuration.WithLabelValues(def.Name).Observe(time.Since(start).Seconds())

	if err == nil {
		metrics.QueueJobsProcessed.WithLabelValues(def.Name, "ok").Inc()
		return
	}

	decision := retry.Classify(err)
	switch decision.Class {
	case retry.ClassSkip, retry.ClassNotFound:
		// Data-quality drops: retrying cannot produce the missing data.
		metrics.QueueJobsProcessed.WithLabelValues(def.Name, "skipped").Inc()
		w.logger.Warn("message skipped",
			"message_id", msg.ID, "reason", decision.Reason, "error", err)
		return
	case retry.ClassUnauthorized, retry.ClassTerminal:
		metrics.QueueJobsProcessed.WithLabelValues(def.Name, "error").Inc()
		w.deadLetter(ctx, msg, err)
		return
	}

	metrics.QueueJobsProcessed.WithLabelValues(def.Name, "error").Inc()
	if msg.Retries >= def.MaxRetries {
		w.deadLetter(ctx, msg, err)
		return
	}

	delay := def.Backoff.NextDelay(msg.Retries)
	if decision.Class == retry.ClassThrottled {
		// 429: fixed cooldown instead of the declared backoff curve.
		delay = retry.ThrottleCooldown
	}

	msg.Retries++
	if err := w.transport.Enqueue(context.WithoutCancel(ctx), def.Name, msg, delay, false); err != nil {
		w.logger.Error("requeue failed, dead-lettering",
			"message_id", msg.ID, "error", err)
		w.deadLetter(ctx, msg, err)
		return
	}
	w.logger.Warn("message retry scheduled",
		"message_id", msg.ID, "attempt", msg.Retries, "delay", delay, "error", err)
}

func (w *Worker) safeProcess(ctx context.Context, payload json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = retry.Transient(fmt.Errorf("handler panic: %v\n%s", r, debug.Stack()))
		}
	}()
	return w.handler.Process(ctx, payload)
}

// deadLetter moves an exhausted message to the terminal list. Dead
// letters are never silently dropped: they are logged, counted, and
// surfaced to the alerter for operator inspection.
func (w *Worker) deadLetter(ctx context.Context, msg Message, cause error) {
	def := w.handler.Definition()

	metrics.QueueJobsDeadLettered.WithLabelValues(def.Name).Inc()
	w.logger.Error("message dead-lettered",
		"message_id", msg.ID, "retries", msg.Retries, "error", cause)

	if err := w.transport.DeadLetter(context.WithoutCancel(ctx), def.Name, msg); err != nil {
		w.logger.Error("dead-letter write failed", "message_id", msg.ID, "error", err)
	}

	if w.alerter != nil {
		_ = w.alerter.Send(context.WithoutCancel(ctx), alert.Alert{
			Type:    alert.AlertTypeDeadLetter,
			Queue:   def.Name,
			Title:   "message dead-lettered",
			Message: cause.Error(),
			Fields:  map[string]string{"message_id": msg.ID},
		})
	}
}
