package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
	"github.com/d347h-eth/indexer-public/internal/events"
	"github.com/d347h-eth/indexer-public/internal/pipeline"
	"github.com/d347h-eth/indexer-public/internal/queue"
)

// EventsHandler decodes classified logs into pipeline write-sets.
type EventsHandler interface {
	HandleEvents(ctx context.Context, evts []model.EnhancedEvent, data *events.OnChainData) error
}

// BatchProcessor runs one decoded write-set through the persistence
// pipeline.
type BatchProcessor interface {
	Process(ctx context.Context, data *events.OnChainData, backfill bool) (pipeline.Result, error)
}

// EventsSyncPayload is one batch of classified logs produced by the
// chain scanner. Events within a payload are ordered by their position
// on chain.
type EventsSyncPayload struct {
	Events []model.EnhancedEvent `json:"events"`
}

// EventsSyncJob consumes scanner batches: protocol handlers decode the
// classified logs, then the pipeline persists the result. One instance
// per queue; the backfill instance skips realtime side effects.
type EventsSyncJob struct {
	handler   EventsHandler
	processor BatchProcessor
	health    *pipeline.Health
	backfill  bool
	logger    *slog.Logger
}

func NewEventsSyncJob(handler EventsHandler, processor BatchProcessor, health *pipeline.Health, backfill bool, logger *slog.Logger) *EventsSyncJob {
	component := "events-sync-realtime-job"
	if backfill {
		component = "events-sync-backfill-job"
	}
	return &EventsSyncJob{
		handler:   handler,
		processor: processor,
		health:    health,
		backfill:  backfill,
		logger:    logger.With("component", component),
	}
}

func (j *EventsSyncJob) Definition() queue.Definition {
	if j.backfill {
		return EventsSyncBackfillDefinition()
	}
	return EventsSyncRealtimeDefinition()
}

func (j *EventsSyncJob) Process(ctx context.Context, payload json.RawMessage) error {
	var p EventsSyncPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("unmarshal events sync payload: %w", err)
	}
	if len(p.Events) == 0 {
		return nil
	}

	data := events.New()
	if err := j.handler.HandleEvents(ctx, p.Events, data); err != nil {
		j.recordFailure()
		return fmt.Errorf("decode events batch: %w", err)
	}

	start := time.Now()
	result, err := j.processor.Process(ctx, data, j.backfill)
	if err != nil {
		j.recordFailure()
		return fmt.Errorf("process events batch: %w", err)
	}
	if j.health != nil {
		j.health.RecordSuccess()
		j.health.RecordLatency(time.Since(start))
	}

	j.logger.Debug("processed events batch",
		"events", len(p.Events),
		"persisted", result.Persisted,
		"tookMs", time.Since(start).Milliseconds())
	return nil
}

func (j *EventsSyncJob) recordFailure() {
	if j.health == nil {
		return
	}
	if j.health.RecordFailure() {
		j.logger.Warn("events sync marked unhealthy")
	}
}
