// Package jobs declares the downstream job queues, their dispatch
// payloads, and the handlers that run inside this process (the events
// sync consumers and the listings snapshot jobs). Every other queue is
// consumed by external workers; this process only produces onto them.
package jobs

import (
	"time"

	"github.com/d347h-eth/indexer-public/internal/queue"
)

// Queue names shared between producers here and external consumers.
const (
	QueueOrderUpdatesByID    = "order-updates-by-id"
	QueueOrderUpdatesByMaker = "order-updates-by-maker"
	QueuePermitUpdates       = "permit-updates"
	QueueOrders              = "orderbook-orders"
	QueueTransferUpdates     = "transfer-updates"
	QueueMintUpdates         = "mint-updates"
	QueueFillUpdates         = "fill-updates"
	QueueMintsProcess        = "mints-process"
	QueueFillPostProcess     = "fill-post-process"
	QueueRecalcOwnerCount    = "recalc-owner-count"
	QueueActivities          = "process-activity-events"
	QueueListingsProcess     = "opensea-listings-process"
	QueueListingsFetch       = "opensea-listings-fetch"
	QueueEventsSyncRealtime  = "events-sync-process-realtime"
	QueueEventsSyncBackfill  = "events-sync-process-backfill"
)

// listingsFetchLock serializes snapshot paging across the cluster. Held
// for the whole run and extended page by page.
const (
	listingsFetchLock    = "opensea-listings-fetch-lock"
	listingsFetchLockTTL = 5 * time.Minute
)

// ListingsProcessDefinition declares the fan-in queue that registers
// collections for a listings refresh.
func ListingsProcessDefinition() queue.Definition {
	return queue.Definition{
		Name:        QueueListingsProcess,
		Concurrency: 5,
		MaxRetries:  10,
		Timeout:     60 * time.Second,
		Backoff:     queue.Backoff{Kind: queue.BackoffExponential, Delay: 20 * time.Second},
		Priority:    true,
	}
}

// ListingsFetchDefinition declares the sequential cursor-paging queue.
// One consumer cluster-wide: the cursor is not safe to advance in
// parallel.
func ListingsFetchDefinition() queue.Definition {
	return queue.Definition{
		Name:                 QueueListingsFetch,
		Concurrency:          1,
		MaxRetries:           10,
		Timeout:              5 * time.Minute,
		Backoff:              queue.Backoff{Kind: queue.BackoffFixed, Delay: 5 * time.Second},
		SingleActiveConsumer: true,
	}
}

// EventsSyncRealtimeDefinition declares the head-of-chain batch queue.
// Batches for the same block range must not interleave, so concurrency
// stays at one and retries are short: a batch stuck behind a transient
// fault blocks everything after it.
func EventsSyncRealtimeDefinition() queue.Definition {
	return queue.Definition{
		Name:        QueueEventsSyncRealtime,
		Concurrency: 1,
		MaxRetries:  5,
		Timeout:     2 * time.Minute,
		Backoff:     queue.Backoff{Kind: queue.BackoffFixed, Delay: 2 * time.Second},
	}
}

// EventsSyncBackfillDefinition declares the historical batch queue.
// Backfill batches are independent block ranges, so they process in
// parallel and tolerate long retry tails.
func EventsSyncBackfillDefinition() queue.Definition {
	return queue.Definition{
		Name:        QueueEventsSyncBackfill,
		Concurrency: 4,
		MaxRetries:  10,
		Timeout:     5 * time.Minute,
		Backoff:     queue.Backoff{Kind: queue.BackoffExponential, Delay: 10 * time.Second},
	}
}

// producerDefinition covers queues this process only produces onto. The
// worker-side knobs live with the external consumers; producers need the
// name and priority flag.
func producerDefinition(name string, priority bool) queue.Definition {
	return queue.Definition{Name: name, Priority: priority}
}
