package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
)

type clientRepository struct {
	db *DB
}

func NewClientRepository(db *DB) *clientRepository {
	return &clientRepository{db: db}
}

// GetPolicySettings reads the client's reorder settings. A client without a
// config row yields empty settings, which resolve to defaults.
func (r *clientRepository) GetPolicySettings(ctx context.Context, clientID string) (domain.PolicySettings, error) {
	query := `
		SELECT
			c.id AS client_id,
			cc.reorder_lead_days,
			cc.safety_stock_weeks,
			cc.service_level,
			cc.critical_weeks,
			cc.low_weeks,
			cc.watch_weeks
		FROM clients c
		LEFT JOIN client_configs cc ON cc.client_id = c.id
		WHERE c.id = $1
	`

	var settings domain.PolicySettings
	err := r.db.GetContext(ctx, &settings, query, clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return settings, fmt.Errorf("%w: %s", domain.ErrClientNotFound, clientID)
	}
	if err != nil {
		return settings, fmt.Errorf("failed to get policy for client %s: %w", clientID, err)
	}
	return settings, nil
}

func (r *clientRepository) ListActiveClientIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM clients WHERE is_active = true ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return ids, nil
}
