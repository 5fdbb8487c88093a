package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
	"github.com/d347h-eth/indexer-public/internal/queue"
)

// PendingListings is the redis-backed list of collections awaiting a
// snapshot refresh.
type PendingListings interface {
	Add(ctx context.Context, items []model.PendingListing, prioritized bool) error
	Get(ctx context.Context, count int) ([]model.PendingListing, error)
}

// ProcessPayload registers one collection for a listings refresh.
type ProcessPayload struct {
	Contract    string `json:"contract"`
	Collection  string `json:"collection"`
	Slug        string `json:"slug"`
	Prioritized bool   `json:"prioritized,omitempty"`
}

// ListingsProcessJob pushes refresh requests onto the pending list and
// kicks the fetch job when nobody else is already paging.
type ListingsProcessJob struct {
	pending PendingListings
	locker  queue.Locker
	fetch   *queue.Sender
	logger  *slog.Logger
}

func NewListingsProcessJob(pending PendingListings, locker queue.Locker, fetch *queue.Sender, logger *slog.Logger) *ListingsProcessJob {
	return &ListingsProcessJob{
		pending: pending,
		locker:  locker,
		fetch:   fetch,
		logger:  logger.With("component", "listings-process-job"),
	}
}

func (j *ListingsProcessJob) Definition() queue.Definition {
	return ListingsProcessDefinition()
}

func (j *ListingsProcessJob) Process(ctx context.Context, payload json.RawMessage) error {
	var p ProcessPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("unmarshal listings process payload: %w", err)
	}
	if p.Slug == "" {
		return fmt.Errorf("listings process payload missing slug")
	}

	item := model.PendingListing{
		Contract:   p.Contract,
		Collection: p.Collection,
		Slug:       p.Slug,
	}
	if err := j.pending.Add(ctx, []model.PendingListing{item}, p.Prioritized); err != nil {
		return fmt.Errorf("register pending listing %s: %w", p.Slug, err)
	}

	acquired, err := j.locker.AcquireLock(ctx, listingsFetchLock, listingsFetchLockTTL)
	if err != nil {
		return fmt.Errorf("acquire listings fetch lock: %w", err)
	}
	if !acquired {
		// A fetch run is already draining the pending list; it will pick
		// this item up.
		return nil
	}

	if err := j.fetch.Send(ctx, FetchPayload{}, 0); err != nil {
		if releaseErr := j.locker.ReleaseLock(ctx, listingsFetchLock); releaseErr != nil {
			j.logger.Error("release listings fetch lock failed", "error", releaseErr)
		}
		return fmt.Errorf("enqueue listings fetch: %w", err)
	}

	j.logger.Info("listings fetch scheduled", "slug", p.Slug, "prioritized", p.Prioritized)
	return nil
}
