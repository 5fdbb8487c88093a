package store

import (
	"context"
	"fmt"
	"time"

	"github.com/d347h-eth/indexer-public/internal/cache"
	"github.com/d347h-eth/indexer-public/internal/domain/model"
	"github.com/d347h-eth/indexer-public/internal/metrics"
)

const nonceCacheName = "min-nonce"

type nonceKey struct {
	kind  model.OrderKind
	maker string
}

// CachedNonces wraps a NonceRepository with a short-TTL cache. The same
// maker appears in many fills of a single block batch, and the minimum
// nonce only moves when a bulk cancel lands, so a few seconds of staleness
// is acceptable in exchange for skipping the repeated lookup.
type CachedNonces struct {
	inner NonceRepository
	cache cache.Cache[nonceKey, int64]
}

// NewCachedNonces wraps inner with a sharded LRU of the given capacity
// and TTL.
func NewCachedNonces(inner NonceRepository, capacity int, ttl time.Duration) *CachedNonces {
	return &CachedNonces{
		inner: inner,
		cache: cache.NewShardedLRU[nonceKey, int64](capacity, ttl, func(k nonceKey) string {
			return fmt.Sprintf("%s:%s", k.kind, k.maker)
		}),
	}
}

func (c *CachedNonces) GetMinNonce(ctx context.Context, orderKind model.OrderKind, maker string) (int64, error) {
	key := nonceKey{kind: orderKind, maker: maker}
	if nonce, ok := c.cache.Get(key); ok {
		metrics.CacheHits.WithLabelValues(nonceCacheName).Inc()
		return nonce, nil
	}
	metrics.CacheMisses.WithLabelValues(nonceCacheName).Inc()

	nonce, err := c.inner.GetMinNonce(ctx, orderKind, maker)
	if err != nil {
		return 0, err
	}
	c.cache.Put(key, nonce)
	return nonce, nil
}

var _ NonceRepository = (*CachedNonces)(nil)
