package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
)

type ApprovalEventRepo struct {
	db *DB
}

func NewApprovalEventRepo(db *DB) *ApprovalEventRepo {
	return &ApprovalEventRepo{db: db}
}

const approvalEventCols = 11

func (r *ApprovalEventRepo) AddEvents(ctx context.Context, events []model.NftApprovalEvent) error {
	if len(events) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO nft_approval_events (
			address, block, block_hash, tx_hash, tx_index, log_index, batch_index, "timestamp",
			owner, operator, approved
		) VALUES `)

	args := make([]interface{}, 0, len(events)*approvalEventCols)
	for i, e := range events {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * approvalEventCols
		sb.WriteString("(")
		for j := 1; j <= approvalEventCols; j++ {
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
			strings.ToLower(e.Owner), strings.ToLower(e.Operator), e.Approved,
		)
	}

	sb.WriteString(`
		ON CONFLICT DO NOTHING`)

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert nft approval events: %w", err)
	}
	return nil
}
