package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
)

const pendingListingsKey = "pending-refresh-listings-collections"

// PendingListings is the list of collections awaiting a listings snapshot
// refresh. Entries are not deduplicated; duplicates are tolerated and
// simply reprocessed by the consumer.
type PendingListings struct {
	client *Client
}

func NewPendingListings(client *Client) *PendingListings {
	return &PendingListings{client: client}
}

// Add appends requests to the tail of the list; prioritized requests go
// to the head so they are popped first.
func (p *PendingListings) Add(ctx context.Context, items []model.PendingListing, prioritized bool) error {
	if len(items) == 0 {
		return nil
	}

	payloads := make([]interface{}, 0, len(items))
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal pending listing: %w", err)
		}
		payloads = append(payloads, raw)
	}

	var err error
	if prioritized {
		err = p.client.rdb.LPush(ctx, pendingListingsKey, payloads...).Err()
	} else {
		err = p.client.rdb.RPush(ctx, pendingListingsKey, payloads...).Err()
	}
	if err != nil {
		return fmt.Errorf("push pending listings: %w", err)
	}
	return nil
}

// Get pops up to count requests from the head of the list.
func (p *PendingListings) Get(ctx context.Context, count int) ([]model.PendingListing, error) {
	raw, err := p.client.rdb.LPopCount(ctx, pendingListingsKey, count).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop pending listings: %w", err)
	}

	items := make([]model.PendingListing, 0, len(raw))
	for _, r := range raw {
		var item model.PendingListing
		if err := json.Unmarshal([]byte(r), &item); err != nil {
			return nil, fmt.Errorf("unmarshal pending listing: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}
