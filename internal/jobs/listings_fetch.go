package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
	"github.com/d347h-eth/indexer-public/internal/listings"
	"github.com/d347h-eth/indexer-public/internal/metrics"
	"github.com/d347h-eth/indexer-public/internal/pipeline/retry"
	"github.com/d347h-eth/indexer-public/internal/queue"
)

// ListingsClient pages best listings for one collection slug.
type ListingsClient interface {
	GetBestListings(ctx context.Context, slug, cursor string) (*listings.Page, error)
}

// FetchPayload continues a paging run. Zero value means "pop the next
// collection from the pending list"; a populated value resumes one
// collection at its cursor after a rate-limit cooldown.
type FetchPayload struct {
	Slug       string `json:"slug,omitempty"`
	Contract   string `json:"contract,omitempty"`
	Collection string `json:"collection,omitempty"`
	Cursor     string `json:"cursor,omitempty"`
}

// ListingsFetchJob drains the pending list one collection at a time,
// paging the listings API under the fetch lock. Every exit path either
// extends the lock and enqueues a continuation, or releases the lock.
type ListingsFetchJob struct {
	client  ListingsClient
	pending PendingListings
	locker  queue.Locker
	self    *queue.Sender
	orders  *queue.Sender
	logger  *slog.Logger
}

func NewListingsFetchJob(client ListingsClient, pending PendingListings, locker queue.Locker, self, orders *queue.Sender, logger *slog.Logger) *ListingsFetchJob {
	return &ListingsFetchJob{
		client:  client,
		pending: pending,
		locker:  locker,
		self:    self,
		orders:  orders,
		logger:  logger.With("component", "listings-fetch-job"),
	}
}

func (j *ListingsFetchJob) Definition() queue.Definition {
	return ListingsFetchDefinition()
}

func (j *ListingsFetchJob) Process(ctx context.Context, payload json.RawMessage) error {
	var p FetchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("unmarshal listings fetch payload: %w", err)
	}

	for {
		if p.Slug == "" {
			items, err := j.pending.Get(ctx, 1)
			if err != nil {
				j.releaseLock(ctx)
				return fmt.Errorf("pop pending listing: %w", err)
			}
			if len(items) == 0 {
				j.releaseLock(ctx)
				return nil
			}
			p = FetchPayload{
				Slug:       items[0].Slug,
				Contract:   items[0].Contract,
				Collection: items[0].Collection,
			}
		}

		done, err := j.pageCollection(ctx, &p)
		if err != nil || !done {
			return err
		}
		// Collection exhausted; pop the next one.
		p = FetchPayload{}
	}
}

// pageCollection pages one collection from p.Cursor until exhaustion or
// an API stop condition. Returns done=true when the caller should move
// on to the next pending collection; done=false means this run is over
// (the lock has been settled one way or the other).
func (j *ListingsFetchJob) pageCollection(ctx context.Context, p *FetchPayload) (bool, error) {
	logger := j.logger.With("slug", p.Slug)

	for {
		page, err := j.client.GetBestListings(ctx, p.Slug, p.Cursor)
		if err != nil {
			metrics.ListingsPagesFetched.WithLabelValues("error").Inc()
			return false, j.handleFetchError(ctx, logger, *p, err)
		}
		metrics.ListingsPagesFetched.WithLabelValues("ok").Inc()

		ingested := 0
		for _, listing := range page.Listings {
			order, ok := j.buildOrder(logger, *p, listing)
			if !ok {
				continue
			}
			if err := j.orders.Send(ctx, order, 0); err != nil {
				j.releaseLock(ctx)
				return false, fmt.Errorf("enqueue order %s: %w", listing.OrderHash, err)
			}
			ingested++
		}
		if ingested > 0 {
			metrics.ListingsOrdersIngested.WithLabelValues(p.Slug).Add(float64(ingested))
		}

		held, err := j.locker.ExtendLock(ctx, listingsFetchLock, listingsFetchLockTTL)
		if err != nil {
			j.releaseLock(ctx)
			return false, fmt.Errorf("extend listings fetch lock: %w", err)
		}
		if !held {
			// Ownership lost; another run will drain the rest.
			logger.Warn("listings fetch lock lost, stopping run")
			return false, nil
		}

		if page.Next == "" {
			return true, nil
		}
		p.Cursor = page.Next
	}
}

// handleFetchError implements the per-status stop policy. 429 cools down
// and resumes at the same cursor; 401 needs operator intervention; 404
// means the collection has no listings.
func (j *ListingsFetchJob) handleFetchError(ctx context.Context, logger *slog.Logger, p FetchPayload, err error) error {
	decision := retry.Classify(err)
	switch decision.Class {
	case retry.ClassThrottled:
		held, extendErr := j.locker.ExtendLock(ctx, listingsFetchLock, listingsFetchLockTTL)
		if extendErr != nil || !held {
			logger.Warn("rate limited and lock not extendable, stopping run", "error", extendErr)
			j.releaseLock(ctx)
			return nil
		}
		if sendErr := j.self.Send(ctx, p, retry.ThrottleCooldown); sendErr != nil {
			j.releaseLock(ctx)
			return fmt.Errorf("enqueue throttle continuation: %w", sendErr)
		}
		logger.Warn("rate limited, resuming after cooldown",
			"cursor", p.Cursor, "cooldown", retry.ThrottleCooldown)
		return nil

	case retry.ClassUnauthorized:
		logger.Error("listings api rejected credentials, stopping run", "error", err)
		j.releaseLock(ctx)
		return nil

	case retry.ClassNotFound:
		logger.Warn("collection has no listings", "error", err)
		j.releaseLock(ctx)
		return nil

	default:
		j.releaseLock(ctx)
		return fmt.Errorf("fetch listings page for %s: %w", p.Slug, err)
	}
}

func (j *ListingsFetchJob) releaseLock(ctx context.Context) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := j.locker.ReleaseLock(releaseCtx, listingsFetchLock); err != nil {
		j.logger.Error("release listings fetch lock failed", "error", err)
	}
}

// protocolOrder is the minimal slice of listing protocol data needed for
// the contract sanity check.
type protocolOrder struct {
	Contract   string `json:"contract"`
	Collection string `json:"collection"`
}

// buildOrder converts one listing into a generic order ingestion payload.
// Listings whose protocol data names a different contract than the
// pending entry are malformed upstream data and skipped.
func (j *ListingsFetchJob) buildOrder(logger *slog.Logger, p FetchPayload, listing listings.Listing) (model.GenericOrderInfo, bool) {
	if len(listing.ProtocolData) == 0 {
		logger.Warn("listing without protocol data", "order_hash", listing.OrderHash)
		return model.GenericOrderInfo{}, false
	}

	var proto protocolOrder
	if err := json.Unmarshal(listing.ProtocolData, &proto); err != nil {
		logger.Warn("undecodable listing protocol data", "order_hash", listing.OrderHash, "error", err)
		return model.GenericOrderInfo{}, false
	}
	contract := proto.Contract
	if contract == "" {
		contract = proto.Collection
	}
	if p.Contract != "" && contract != "" && !strings.EqualFold(contract, p.Contract) {
		logger.Warn("listing contract mismatch, skipping",
			"order_hash", listing.OrderHash, "expected", p.Contract, "got", contract)
		return model.GenericOrderInfo{}, false
	}

	return model.GenericOrderInfo{
		Kind: model.OrderKindBlend,
		Info: model.OrderIngestInfo{
			OrderParams: listing.ProtocolData,
			Metadata:    model.OrderMetadata{Source: "opensea.io"},
			IsOpenSea:   true,
			OpenSeaOrderParams: &model.OpenSeaOrderParams{
				Kind:           "single-token",
				Side:           "sell",
				Hash:           listing.OrderHash,
				Contract:       strings.ToLower(p.Contract),
				CollectionSlug: p.Slug,
			},
		},
		IngestMethod: "rest",
	}, true
}
