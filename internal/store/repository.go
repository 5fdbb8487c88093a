package store

import (
	"context"
	"database/sql"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
)

// TxBeginner abstracts the ability to begin a database transaction.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// FillEventRepository persists fill events. Each variant carries the same
// row shape but transitions order fillability differently downstream.
// All writes are idempotent upserts keyed by (tx_hash, log_index,
// batch_index).
type FillEventRepository interface {
	AddEvents(ctx context.Context, events []model.FillEvent) error
	AddEventsPartial(ctx context.Context, events []model.FillEvent) error
	AddEventsOnChain(ctx context.Context, events []model.FillEvent) error
}

// CancelEventRepository persists cancel events and marks the referenced
// orders cancelled.
type CancelEventRepository interface {
	AddEvents(ctx context.Context, events []model.CancelEvent) error
	AddEventsOnChain(ctx context.Context, events []model.CancelEvent) error
}

// BulkCancelEventRepository persists maker-wide minimum-nonce bumps.
type BulkCancelEventRepository interface {
	AddEvents(ctx context.Context, events []model.BulkCancelEvent) error
}

// NonceCancelEventRepository persists per-nonce cancellations.
type NonceCancelEventRepository interface {
	AddEvents(ctx context.Context, events []model.NonceCancelEvent) error
}

// ApprovalEventRepository persists NFT operator approvals.
type ApprovalEventRepository interface {
	AddEvents(ctx context.Context, events []model.NftApprovalEvent) error
}

// TransferEventRepository persists fungible and non-fungible transfers.
type TransferEventRepository interface {
	AddFtEvents(ctx context.Context, events []model.FtTransferEvent, backfill bool) error
	AddNftEvents(ctx context.Context, events []model.NftTransferEvent, backfill bool) error
}

// NonceRepository resolves a maker's current minimum valid nonce for a
// protocol. Orders signed below it remain valid until explicitly
// invalidated.
type NonceRepository interface {
	GetMinNonce(ctx context.Context, orderKind model.OrderKind, maker string) (int64, error)
}

// OrderRepository reads order state maintained by the event repositories.
type OrderRepository interface {
	GetFillabilityStatus(ctx context.Context, orderID string) (string, error)
}

// TransactionRepository persists transactions retained in focus mode.
type TransactionRepository interface {
	SaveTransactions(ctx context.Context, txs []*model.Transaction) error
}
