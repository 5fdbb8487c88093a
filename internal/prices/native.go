package prices

import (
	"context"
	"strings"
)

// NativeOnly resolves prices for payments made directly in the chain's
// native asset: the raw amount already is the native price. Any other
// currency resolves to no native price, which callers treat as a skip.
// USD conversion is left to an external oracle deployment.
type NativeOnly struct {
	currencies map[string]struct{}
}

// NewNativeOnly accepts the set of currency addresses considered native
// (the zero pseudo-address plus any wrapped-native contracts).
func NewNativeOnly(currencies ...string) *NativeOnly {
	set := make(map[string]struct{}, len(currencies))
	for _, c := range currencies {
		set[strings.ToLower(c)] = struct{}{}
	}
	return &NativeOnly{currencies: set}
}

func (o *NativeOnly) GetPrice(ctx context.Context, currency string, rawAmount string, timestamp int64) (Data, error) {
	if _, ok := o.currencies[strings.ToLower(currency)]; !ok {
		return Data{}, nil
	}
	amount := rawAmount
	return Data{NativePrice: &amount}, nil
}

var _ Oracle = (*NativeOnly)(nil)
