// Package txsource defines the transaction-data collaborator contract:
// call traces, full transactions, and fill attribution metadata.
package txsource

import (
	"context"
	"encoding/json"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
)

// AttributionData resolves who really took an order. Aggregator contracts
// often obscure the true taker, so router calldata and known aggregator
// registries are consulted outside this repository.
type AttributionData struct {
	Taker              *string
	OrderSourceID      *string
	AggregatorSourceID *string
	FillSourceID       *string
}

// Source provides transaction-level data for event handlers. A nil trace
// with a nil error means the node has no trace for the transaction; the
// caller skips the event.
type Source interface {
	// FetchTransactionTrace returns the raw trace payload in either wire
	// shape accepted by trace.Normalize.
	FetchTransactionTrace(ctx context.Context, txHash string) (json.RawMessage, error)

	// FetchTransaction returns the full transaction, used when focus mode
	// persists only relevant transactions.
	FetchTransaction(ctx context.Context, txHash string) (*model.Transaction, error)

	// ExtractAttribution resolves taker/source attribution for a fill.
	ExtractAttribution(ctx context.Context, txHash string, orderKind model.OrderKind, orderID string) (AttributionData, error)
}
