package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
)

type productRepository struct {
	db *DB
}

func NewProductRepository(db *DB) *productRepository {
	return &productRepository{db: db}
}

const productColumns = `
	id, client_id, product_id, name, pack_size, current_stock_packs,
	total_lead_days, COALESCE(item_type, '') AS item_type, is_active,
	monthly_usage_units, monthly_usage_packs, usage_calculation_tier,
	usage_confidence, usage_confidence_score, reorder_point_packs,
	usage_last_calculated`

func (r *productRepository) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	var product domain.Product
	err := r.db.GetContext(ctx, &product, query, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", productID, err)
	}
	return &product, nil
}

func (r *productRepository) ListActiveByClient(ctx context.Context, clientID string) ([]domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE client_id = $1 AND is_active = true
		ORDER BY id
	`

	var products []domain.Product
	if err := r.db.SelectContext(ctx, &products, query, clientID); err != nil {
		return nil, fmt.Errorf("failed to list products for client %s: %w", clientID, err)
	}
	return products, nil
}

func (r *productRepository) SaveDerivedUsage(ctx context.Context, usage domain.DerivedUsage) error {
	query := `
		UPDATE products
		SET monthly_usage_units = $1,
		    monthly_usage_packs = $2,
		    usage_data_months = $3,
		    usage_calculation_tier = $4,
		    usage_confidence = $5,
		    usage_confidence_score = $6,
		    reorder_point_packs = $7,
		    weeks_remaining = $8,
		    stock_status = $9,
		    usage_trend = $10,
		    suggested_reorder_packs = $11,
		    usage_last_calculated = $12,
		    updated_at = NOW()
		WHERE id = $13
	`

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query,
			usage.MonthlyUsageUnits,
			usage.MonthlyUsagePacks,
			usage.DataMonths,
			string(usage.Tier),
			string(usage.Confidence),
			usage.ConfidenceScore,
			usage.ReorderPointPacks,
			usage.WeeksRemaining,
			string(usage.StockStatus),
			string(usage.Trend),
			usage.SuggestedReorderPacks,
			usage.CalculatedAt,
			usage.ProductID,
		)
		if err != nil {
			return fmt.Errorf("failed to update derived usage: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s", domain.ErrProductNotFound, usage.ProductID)
		}
		return nil
	})
}

func (r *productRepository) GetConfidenceStats(ctx context.Context, clientID string) (domain.ConfidenceStats, error) {
	query := `
		SELECT
			COUNT(*) AS total_products,
			COUNT(*) FILTER (WHERE COALESCE(monthly_usage_units, 0) > 0) AS products_with_usage,
			COUNT(*) FILTER (WHERE usage_confidence = 'high') AS high_confidence_count,
			COUNT(*) FILTER (WHERE usage_confidence = 'medium') AS medium_confidence_count,
			COUNT(*) FILTER (WHERE usage_confidence = 'low') AS low_confidence_count,
			COALESCE(ROUND(AVG(usage_confidence_score)::numeric, 2), 0)::float8 AS avg_confidence_score
		FROM products
		WHERE client_id = $1 AND is_active = true
	`

	var stats domain.ConfidenceStats
	if err := r.db.GetContext(ctx, &stats, query, clientID); err != nil {
		return stats, fmt.Errorf("failed to get confidence stats for client %s: %w", clientID, err)
	}

	tierQuery := `
		SELECT usage_calculation_tier AS tier, COUNT(*) AS products
		FROM products
		WHERE client_id = $1 AND is_active = true AND usage_calculation_tier IS NOT NULL
		GROUP BY usage_calculation_tier
	`

	var rows []struct {
		Tier     string `db:"tier"`
		Products int    `db:"products"`
	}
	if err := r.db.SelectContext(ctx, &rows, tierQuery, clientID); err != nil {
		return stats, fmt.Errorf("failed to count calculation tiers for client %s: %w", clientID, err)
	}
	stats.Tiers = make(map[domain.Tier]int, len(rows))
	for _, row := range rows {
		stats.Tiers[domain.Tier(row.Tier)] = row.Products
	}
	return stats, nil
}
