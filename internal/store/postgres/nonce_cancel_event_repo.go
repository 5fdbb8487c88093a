package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
)

type NonceCancelEventRepo struct {
	db *DB
}

func NewNonceCancelEventRepo(db *DB) *NonceCancelEventRepo {
	return &NonceCancelEventRepo{db: db}
}

const nonceCancelEventCols = 11

// AddEvents records per-nonce cancellations and cancels every order of
// the maker signed at exactly that nonce.
func (r *NonceCancelEventRepo) AddEvents(ctx context.Context, events []model.NonceCancelEvent) error {
	if len(events) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`
		WITH x AS (
			INSERT INTO nonce_cancel_events (
				address, block, block_hash, tx_hash, tx_index, log_index, batch_index, "timestamp",
				order_kind, maker, nonce
			) VALUES `)

	args := make([]interface{}, 0, len(events)*nonceCancelEventCols)
	for i, e := range events {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * nonceCancelEventCols
		sb.WriteString("(")
		for j := 1; j <= nonceCancelEventCols; j++ {
			if j > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", base+j)
		}
		sb.WriteString(")")
		args = append(args,
			strings.ToLower(e.BaseEventParams.Address), e.BaseEventParams.Block,
			e.BaseEventParams.BlockHash, e.BaseEventParams.TxHash, e.BaseEventParams.TxIndex,
			e.BaseEventParams.LogIndex, e.BaseEventParams.BatchIndex, e.BaseEventParams.Timestamp,
			e.OrderKind, strings.ToLower(e.Maker), e.Nonce,
		)
	}

	sb.WriteString(`
			ON CONFLICT DO NOTHING
			RETURNING order_kind, maker, nonce, "timestamp"
		)
		UPDATE orders o SET
			fillability_status = 'cancelled',
			expiration = to_timestamp(x."timestamp"),
			updated_at = now()
		FROM x
		WHERE o.kind = x.order_kind
			AND o.maker = x.maker
			AND o.nonce = x.nonce
			AND o.fillability_status = 'fillable'`)

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert nonce cancel events: %w", err)
	}
	return nil
}
