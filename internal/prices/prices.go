// Package prices defines the price-oracle collaborator contract. The
// conversion itself (USD feeds, historical lookups) lives outside this
// repository.
package prices

import "context"

// Data is the oracle response for one (currency, amount, timestamp)
// lookup. NativePrice may legitimately be nil when no conversion path
// exists at the given timestamp; callers treat that as a skip condition,
// not an error.
type Data struct {
	NativePrice *string
	USDPrice    *string
}

// Oracle resolves raw currency amounts into native and USD prices at a
// point in time.
type Oracle interface {
	GetPrice(ctx context.Context, currency string, rawAmount string, timestamp int64) (Data, error)
}
