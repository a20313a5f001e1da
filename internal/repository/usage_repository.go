package repository

import (
	"context"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
)

// TransactionReader returns completed transactions ordered by submission
// date ascending.
type TransactionReader interface {
	ListCompletedByProduct(ctx context.Context, productID string) ([]domain.Transaction, error)
	// ListCompletedByProducts batch-reads history for many products, keyed
	// by product ID.
	ListCompletedByProducts(ctx context.Context, productIDs []string) (map[string][]domain.Transaction, error)
}

// ProductStore reads products and writes the derived usage fields.
type ProductStore interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	ListActiveByClient(ctx context.Context, clientID string) ([]domain.Product, error)
	SaveDerivedUsage(ctx context.Context, usage domain.DerivedUsage) error
	GetConfidenceStats(ctx context.Context, clientID string) (domain.ConfidenceStats, error)
}

// PolicyReader exposes the raw client reorder settings. Missing clients
// return domain.ErrClientNotFound.
type PolicyReader interface {
	GetPolicySettings(ctx context.Context, clientID string) (domain.PolicySettings, error)
}

// MetricsStore upserts usage metric and monthly snapshot records.
type MetricsStore interface {
	UpsertUsageMetric(ctx context.Context, metric domain.UsageMetric) error
	UpsertMonthlySnapshots(ctx context.Context, snapshots []domain.MonthlySnapshot) error
}

// ClientLister lists clients eligible for scheduled recalculation.
type ClientLister interface {
	ListActiveClientIDs(ctx context.Context) ([]string, error)
}
