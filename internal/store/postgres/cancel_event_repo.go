package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
)

type CancelEventRepo struct {
	db        *DB
	focusMode bool
}

func NewCancelEventRepo(db *DB, focusMode bool) *CancelEventRepo {
	return &CancelEventRepo{db: db, focusMode: focusMode}
}

func (r *CancelEventRepo) AddEvents(ctx context.Context, events []model.CancelEvent) error {
	return r.addEvents(ctx, "cancel_events", events)
}

func (r *CancelEventRepo) AddEventsOnChain(ctx context.Context, events []model.CancelEvent) error {
	return r.addEvents(ctx, "cancel_events_onchain", events)
}

const cancelEventCols = 10

// addEvents inserts the cancel rows and marks the referenced orders
// cancelled. Wide mode inserts order stubs so future order ingestion
// cannot resurrect an already-cancelled id; focus mode only updates
// orders that already exist (non-focus cancels become no-ops).
func (r *CancelEventRepo) addEvents(ctx context.Context, table string, events []model.CancelEvent) error {
	if len(events) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(events)*cancelEventCols)
	for _, e := range events {
		args = append(args,
			strings.ToLower(e.BaseEventParams.Address), e.BaseEventParams.Block,
			e.BaseEventParams.BlockHash, e.BaseEventParams.TxHash, e.BaseEventParams.TxIndex,
			e.BaseEventParams.LogIndex, e.BaseEventParams.BatchIndex, e.BaseEventParams.Timestamp,
			e.OrderKind, e.OrderID,
		)
	}

	if _, err := r.db.ExecContext(ctx, r.buildQuery(table, len(events)), args...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// buildQuery renders the insert-and-mark-cancelled statement for n events.
// A cancel never demotes an order that already reached 'filled': a fill
// consumes the order's nonce, so a cancel observed afterwards is stale.
func (r *CancelEventRepo) buildQuery(table string, n int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `
		WITH x AS (
			INSERT INTO %s (
				address, block, block_hash, tx_hash, tx_index, log_index, batch_index, "timestamp",
				order_kind, order_id
			) VALUES `, table)

	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * cancelEventCols
		sb.WriteString("(")
		for j := 1; j <= cancelEventCols; j++ {
			if j > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", base+j)
		}
		sb.WriteString(")")
	}

	if r.focusMode {
		sb.WriteString(`
			ON CONFLICT DO NOTHING
			RETURNING order_id, "timestamp"
		)
		UPDATE orders o SET
			fillability_status = 'cancelled',
			expiration = to_timestamp(c.ts),
			updated_at = now()
		FROM (SELECT order_id, MIN("timestamp") AS ts FROM x GROUP BY order_id) c
		WHERE o.id = c.order_id
			AND o.fillability_status IS DISTINCT FROM 'filled'`)
	} else {
		sb.WriteString(`
			ON CONFLICT DO NOTHING
			RETURNING order_kind, order_id, "timestamp"
		)
		INSERT INTO orders (id, kind, fillability_status, expiration)
		(
			SELECT x.order_id, MIN(x.order_kind), 'cancelled'::order_fillability_status_t,
				MIN(to_timestamp(x."timestamp")) AS expiration
			FROM x
			GROUP BY x.order_id
		)
		ON CONFLICT (id) DO UPDATE SET
			fillability_status = 'cancelled',
			expiration = EXCLUDED.expiration,
			updated_at = now()
		WHERE orders.fillability_status IS DISTINCT FROM 'filled'`)
	}
	return sb.String()
}
