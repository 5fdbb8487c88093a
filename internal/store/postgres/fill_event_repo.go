package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
)

type FillEventRepo struct {
	db        *DB
	focusMode bool
}

func NewFillEventRepo(db *DB, focusMode bool) *FillEventRepo {
	return &FillEventRepo{db: db, focusMode: focusMode}
}

// AddEvents persists fully-filled orders and transitions them to the
// 'filled' fillability status. Persisting fills must always happen before
// cancels/approvals/transfers so that filled orders are not mistaken for
// out-of-balance ones.
func (r *FillEventRepo) AddEvents(ctx context.Context, events []model.FillEvent) error {
	return r.addEvents(ctx, "fill_events", events, true)
}

// AddEventsPartial persists partial fills without touching order
// fillability (the remaining quantity may still be fillable).
func (r *FillEventRepo) AddEventsPartial(ctx context.Context, events []model.FillEvent) error {
	return r.addEvents(ctx, "fill_events_partial", events, false)
}

// AddEventsOnChain persists fills reconstructed purely from on-chain
// state (no off-chain order known beforehand).
func (r *FillEventRepo) AddEventsOnChain(ctx context.Context, events []model.FillEvent) error {
	return r.addEvents(ctx, "fill_events_onchain", events, true)
}

const fillEventCols = 18

func (r *FillEventRepo) addEvents(ctx context.Context, table string, events []model.FillEvent, markFilled bool) error {
	if len(events) == 0 {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `
		WITH x AS (
			INSERT INTO %s (
				address, block, block_hash, tx_hash, tx_index, log_index, batch_index, "timestamp",
				order_kind, order_id, order_side, maker, taker,
				price, currency, currency_price, usd_price, amount
			) VALUES `, table)

	args := make([]interface{}, 0, len(events)*fillEventCols)
	for i, e := range events {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * fillEventCols
		sb.WriteString("(")
		for j := 1; j <= fillEventCols; j++ {
			if j > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", base+j)
		}
		sb.WriteString(")")
		args = append(args,
			strings.ToLower(e.Contract), e.BaseEventParams.Block, e.BaseEventParams.BlockHash,
			e.BaseEventParams.TxHash, e.BaseEventParams.TxIndex, e.BaseEventParams.LogIndex,
			e.BaseEventParams.BatchIndex, e.BaseEventParams.Timestamp,
			e.OrderKind, e.OrderID, e.OrderSide, strings.ToLower(e.Maker), strings.ToLower(e.Taker),
			e.Price, e.Currency, e.CurrencyPrice, e.USDPrice, e.Amount,
		)
	}

	if !markFilled {
		sb.WriteString(`
			ON CONFLICT (tx_hash, log_index, batch_index) DO NOTHING
		)
		SELECT 1`)
	} else if r.focusMode {
		// Focus mode: only transition orders that already exist.
		sb.WriteString(`
			ON CONFLICT (tx_hash, log_index, batch_index) DO NOTHING
			RETURNING order_id, "timestamp"
		)
		UPDATE orders o SET
			fillability_status = 'filled',
			quantity_remaining = 0,
			updated_at = now()
		FROM (SELECT order_id, MIN("timestamp") AS ts FROM x GROUP BY order_id) f
		WHERE o.id = f.order_id`)
	} else {
		sb.WriteString(`
			ON CONFLICT (tx_hash, log_index, batch_index) DO NOTHING
			RETURNING order_kind, order_id, "timestamp"
		)
		INSERT INTO orders (id, kind, fillability_status, expiration)
		(
			SELECT x.order_id, MIN(x.order_kind), 'filled'::order_fillability_status_t,
				MIN(to_timestamp(x."timestamp")) AS expiration
			FROM x
			GROUP BY x.order_id
		)
		ON CONFLICT (id) DO UPDATE SET
			fillability_status = 'filled',
			expiration = EXCLUDED.expiration,
			updated_at = now()`)
	}

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// GetByTxHashes loads persisted fills for the given transactions.
// Read path for offline verification tooling.
func (r *FillEventRepo) GetByTxHashes(ctx context.Context, hashes []string) ([]model.FillEvent, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT address, block, block_hash, tx_hash, tx_index, log_index, batch_index, "timestamp",
			order_kind, order_id, order_side, maker, taker,
			price::text, currency, currency_price::text, amount::text
		FROM fill_events
		WHERE tx_hash = ANY($1)
		ORDER BY tx_hash, log_index, batch_index`,
		pq.Array(hashes))
	if err != nil {
		return nil, fmt.Errorf("query fill_events by tx hashes: %w", err)
	}
	defer rows.Close()

	var events []model.FillEvent
	for rows.Next() {
		var e model.FillEvent
		if err := rows.Scan(
			&e.Contract, &e.BaseEventParams.Block, &e.BaseEventParams.BlockHash,
			&e.BaseEventParams.TxHash, &e.BaseEventParams.TxIndex, &e.BaseEventParams.LogIndex,
			&e.BaseEventParams.BatchIndex, &e.BaseEventParams.Timestamp,
			&e.OrderKind, &e.OrderID, &e.OrderSide, &e.Maker, &e.Taker,
			&e.Price, &e.Currency, &e.CurrencyPrice, &e.Amount,
		); err != nil {
			return nil, fmt.Errorf("scan fill_events row: %w", err)
		}
		e.BaseEventParams.Address = e.Contract
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fill_events rows: %w", err)
	}
	return events, nil
}
