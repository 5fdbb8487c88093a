package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
)

type TransferEventRepo struct {
	db *DB
}

func NewTransferEventRepo(db *DB) *TransferEventRepo {
	return &TransferEventRepo{db: db}
}

const (
	ftTransferCols  = 11
	nftTransferCols = 13
)

// AddFtEvents persists fungible transfers. During backfill the ownership
// side table is left untouched; it is rebuilt by aggregate jobs instead.
func (r *TransferEventRepo) AddFtEvents(ctx context.Context, events []model.FtTransferEvent, backfill bool) error {
	if len(events) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO ft_transfer_events (
			address, block, block_hash, tx_hash, tx_index, log_index, batch_index, "timestamp",
			"from", "to", amount
		) VALUES `)

	args := make([]interface{}, 0, len(events)*ftTransferCols)
	for i, e := range events {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * ftTransferCols
		sb.WriteString("(")
		for j := 1; j <= ftTransferCols; j++ {
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
			strings.ToLower(e.From), strings.ToLower(e.To), e.Amount,
		)
	}

	sb.WriteString(`
		ON CONFLICT DO NOTHING`)

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert ft transfer events: %w", err)
	}
	return nil
}

// AddNftEvents persists non-fungible transfers and, outside backfill,
// applies the ownership delta to nft_balances in the same statement.
func (r *TransferEventRepo) AddNftEvents(ctx context.Context, events []model.NftTransferEvent, backfill bool) error {
	if len(events) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`
		WITH x AS (
			INSERT INTO nft_transfer_events (
				address, block, block_hash, tx_hash, tx_index, log_index, batch_index, "timestamp",
				kind, "from", "to", token_id, amount
			) VALUES `)

	args := make([]interface{}, 0, len(events)*nftTransferCols)
	for i, e := range events {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * nftTransferCols
		sb.WriteString("(")
		for j := 1; j <= nftTransferCols; j++ {
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
			e.Kind, strings.ToLower(e.From), strings.ToLower(e.To), e.TokenID, e.Amount,
		)
	}

	if backfill {
		sb.WriteString(`
			ON CONFLICT (tx_hash, log_index, batch_index) DO NOTHING
		)
		SELECT 1`)
	} else {
		sb.WriteString(`
			ON CONFLICT (tx_hash, log_index, batch_index) DO NOTHING
			RETURNING address, token_id, "from", "to", amount
		), d AS (
			SELECT address, token_id, "from" AS owner, -SUM(amount::numeric) AS delta FROM x GROUP BY address, token_id, "from"
			UNION ALL
			SELECT address, token_id, "to" AS owner, SUM(amount::numeric) AS delta FROM x GROUP BY address, token_id, "to"
		)
		INSERT INTO nft_balances (contract, token_id, owner, amount)
		SELECT address, token_id, owner, delta FROM d
		ON CONFLICT (contract, token_id, owner) DO UPDATE SET
			amount = nft_balances.amount + EXCLUDED.amount,
			updated_at = now()`)
	}

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert nft transfer events: %w", err)
	}
	return nil
}
