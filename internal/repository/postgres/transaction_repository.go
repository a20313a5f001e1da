package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
)

type transactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *transactionRepository {
	return &transactionRepository{db: db}
}

const completedTransactionColumns = `id, product_id, quantity_units, date_submitted, order_status`

func (r *transactionRepository) ListCompletedByProduct(ctx context.Context, productID string) ([]domain.Transaction, error) {
	query := `
		SELECT ` + completedTransactionColumns + `
		FROM transactions
		WHERE product_id = $1 AND order_status = $2
		ORDER BY date_submitted ASC, id ASC
	`

	var txns []domain.Transaction
	if err := r.db.SelectContext(ctx, &txns, query, productID, domain.OrderStatusCompleted); err != nil {
		return nil, fmt.Errorf("failed to list transactions for product %s: %w", productID, err)
	}
	return txns, nil
}

func (r *transactionRepository) ListCompletedByProducts(ctx context.Context, productIDs []string) (map[string][]domain.Transaction, error) {
	out := make(map[string][]domain.Transaction, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT ` + completedTransactionColumns + `
		FROM transactions
		WHERE product_id = ANY($1::text[]) AND order_status = $2
		ORDER BY product_id, date_submitted ASC, id ASC
	`

	rows, err := r.db.QueryxContext(ctx, query, pq.Array(productIDs), domain.OrderStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to batch read transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var txn domain.Transaction
		if err := rows.StructScan(&txn); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out[txn.ProductID] = append(out[txn.ProductID], txn)
	}
	return out, rows.Err()
}
