package prices

import (
	"context"
	"fmt"
	"time"

	"github.com/d347h-eth/indexer-public/internal/cache"
	"github.com/d347h-eth/indexer-public/internal/metrics"
)

const priceCacheName = "prices"

type priceKey struct {
	currency  string
	rawAmount string
	timestamp int64
}

// CachedOracle memoizes oracle lookups. Conversions are keyed by
// (currency, amount, timestamp), and a block batch repeats the same
// lookup for every fill priced in the same currency at the same block
// timestamp.
type CachedOracle struct {
	inner Oracle
	cache cache.Cache[priceKey, Data]
}

// NewCachedOracle wraps inner with a sharded LRU of the given capacity
// and TTL.
func NewCachedOracle(inner Oracle, capacity int, ttl time.Duration) *CachedOracle {
	return &CachedOracle{
		inner: inner,
		cache: cache.NewShardedLRU[priceKey, Data](capacity, ttl, func(k priceKey) string {
			return fmt.Sprintf("%s:%s:%d", k.currency, k.rawAmount, k.timestamp)
		}),
	}
}

func (c *CachedOracle) GetPrice(ctx context.Context, currency string, rawAmount string, timestamp int64) (Data, error) {
	key := priceKey{currency: currency, rawAmount: rawAmount, timestamp: timestamp}
	if data, ok := c.cache.Get(key); ok {
		metrics.CacheHits.WithLabelValues(priceCacheName).Inc()
		return data, nil
	}
	metrics.CacheMisses.WithLabelValues(priceCacheName).Inc()

	data, err := c.inner.GetPrice(ctx, currency, rawAmount, timestamp)
	if err != nil {
		return Data{}, err
	}
	c.cache.Put(key, data)
	return data, nil
}

var _ Oracle = (*CachedOracle)(nil)
