package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type OrderRepo struct {
	db *DB
}

func NewOrderRepo(db *DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// GetFillabilityStatus returns the current fillability status of an order,
// or empty string when the order is unknown.
func (r *OrderRepo) GetFillabilityStatus(ctx context.Context, orderID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var status string
	err := r.db.QueryRowContext(ctx,
		"SELECT fillability_status FROM orders WHERE id = $1", orderID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query order fillability: %w", err)
	}
	return status, nil
}
