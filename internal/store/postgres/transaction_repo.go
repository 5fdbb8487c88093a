package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
)

type TransactionRepo struct {
	db *DB
}

func NewTransactionRepo(db *DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

const transactionCols = 10

// SaveTransactions upserts the transactions retained by focus mode.
func (r *TransactionRepo) SaveTransactions(ctx context.Context, txs []*model.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO transactions (
			hash, from_address, to_address, value, data,
			block_number, block_hash, gas_used, gas_price, chain_data
		) VALUES `)

	args := make([]interface{}, 0, len(txs)*transactionCols)
	for i, t := range txs {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * transactionCols
		sb.WriteString("(")
		for j := 1; j <= transactionCols; j++ {
			if j > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", base+j)
		}
		sb.WriteString(")")
		args = append(args,
			strings.ToLower(t.Hash), strings.ToLower(t.From), strings.ToLower(t.To),
			t.Value, t.Data, t.BlockNumber, t.BlockHash, t.GasUsed, t.GasPrice, t.ChainData,
		)
	}

	sb.WriteString(`
		ON CONFLICT (hash) DO NOTHING`)

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert transactions: %w", err)
	}
	return nil
}
