package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
)

type metricsRepository struct {
	db *DB
}

func NewMetricsRepository(db *DB) *metricsRepository {
	return &metricsRepository{db: db}
}

func (r *metricsRepository) UpsertUsageMetric(ctx context.Context, m domain.UsageMetric) error {
	query := `
		INSERT INTO usage_metrics (
			product_id, period_type, period_start, period_end,
			total_consumed_units, daily_rate, weekly_rate, sample_size, calculated_at
		) VALUES (
			:product_id, :period_type, :period_start, :period_end,
			:total_consumed_units, :daily_rate, :weekly_rate, :sample_size, :calculated_at
		)
		ON CONFLICT (product_id, period_type, period_start)
		DO UPDATE SET
			period_end = EXCLUDED.period_end,
			total_consumed_units = EXCLUDED.total_consumed_units,
			daily_rate = EXCLUDED.daily_rate,
			weekly_rate = EXCLUDED.weekly_rate,
			sample_size = EXCLUDED.sample_size,
			calculated_at = EXCLUDED.calculated_at
	`

	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("failed to upsert usage metric: %w", err)
	}
	return nil
}

func (r *metricsRepository) UpsertMonthlySnapshots(ctx context.Context, snapshots []domain.MonthlySnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	query := `
		INSERT INTO monthly_usage_snapshots (
			product_id, year_month, consumed_units, consumed_packs,
			transaction_count, calculated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (product_id, year_month)
		DO UPDATE SET
			consumed_units = EXCLUDED.consumed_units,
			consumed_packs = EXCLUDED.consumed_packs,
			transaction_count = EXCLUDED.transaction_count,
			calculated_at = EXCLUDED.calculated_at
	`

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, s := range snapshots {
			if _, err := stmt.ExecContext(ctx,
				s.ProductID, s.YearMonth, s.ConsumedUnits, s.ConsumedPacks,
				s.TransactionCount, s.CalculatedAt,
			); err != nil {
				return fmt.Errorf("failed to upsert snapshot %s/%s: %w", s.ProductID, s.YearMonth, err)
			}
		}
		return nil
	})
}
