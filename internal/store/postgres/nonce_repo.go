package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
)

type NonceRepo struct {
	db *DB
}

func NewNonceRepo(db *DB) *NonceRepo {
	return &NonceRepo{db: db}
}

// GetMinNonce returns the maker's current minimum valid nonce for a
// protocol, derived from the highest observed bulk-cancel bump. A maker
// with no bumps is at nonce zero.
func (r *NonceRepo) GetMinNonce(ctx context.Context, orderKind model.OrderKind, maker string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var minNonce int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(min_nonce::bigint), 0)
		FROM bulk_cancel_events
		WHERE order_kind = $1 AND maker = $2
	`, orderKind, strings.ToLower(maker)).Scan(&minNonce)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query min nonce: %w", err)
	}
	return minNonce, nil
}
