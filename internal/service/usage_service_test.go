package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/cache"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/pipeline"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/usage"
)

var testNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu       sync.Mutex
	clients  map[string]domain.PolicySettings
	products map[string]domain.Product
	txns     map[string][]domain.Transaction
	derived  map[string]domain.DerivedUsage
	stats    domain.ConfidenceStats
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clients:  map[string]domain.PolicySettings{},
		products: map[string]domain.Product{},
		txns:     map[string][]domain.Transaction{},
		derived:  map[string]domain.DerivedUsage{},
	}
}

func (f *fakeStore) GetPolicySettings(_ context.Context, clientID string) (domain.PolicySettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.clients[clientID]
	if !ok {
		return domain.PolicySettings{}, fmt.Errorf("%w: %s", domain.ErrClientNotFound, clientID)
	}
	return s, nil
}

func (f *fakeStore) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (f *fakeStore) ListActiveByClient(_ context.Context, clientID string) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Product
	for _, p := range f.products {
		if p.ClientID == clientID && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveDerivedUsage(_ context.Context, u domain.DerivedUsage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.derived[u.ProductID] = u
	return nil
}

func (f *fakeStore) GetConfidenceStats(_ context.Context, _ string) (domain.ConfidenceStats, error) {
	return f.stats, nil
}

func (f *fakeStore) ListCompletedByProduct(_ context.Context, productID string) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Transaction(nil), f.txns[productID]...), nil
}

func (f *fakeStore) ListCompletedByProducts(ctx context.Context, ids []string) (map[string][]domain.Transaction, error) {
	out := make(map[string][]domain.Transaction, len(ids))
	for _, id := range ids {
		txns, _ := f.ListCompletedByProduct(ctx, id)
		out[id] = txns
	}
	return out, nil
}

func (f *fakeStore) UpsertUsageMetric(context.Context, domain.UsageMetric) error { return nil }

func (f *fakeStore) UpsertMonthlySnapshots(context.Context, []domain.MonthlySnapshot) error {
	return nil
}

type cacheCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *cacheCounter) ObserveCache(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[result]++
}

func monthlyTxns(productID string, from time.Time, months int, units float64) []domain.Transaction {
	out := make([]domain.Transaction, 0, months)
	for i := 0; i < months; i++ {
		date := from.AddDate(0, i, 0)
		out = append(out, domain.Transaction{
			ID:            fmt.Sprintf("%s-%d", productID, i),
			ProductID:     productID,
			QuantityUnits: units,
			DateSubmitted: date,
			OrderStatus:   domain.OrderStatusCompleted,
		})
	}
	return out
}

type testEnv struct {
	store    *fakeStore
	redis    *miniredis.Miniredis
	cache    cache.UsageCache
	observer *cacheCounter
	service  *UsageService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newFakeStore()
	store.clients["c-1"] = domain.PolicySettings{ClientID: "c-1"}
	store.products["p-1"] = domain.Product{ID: "p-1", ClientID: "c-1", PackSize: 10, CurrentStockPacks: 5, IsActive: true}
	store.txns["p-1"] = monthlyTxns("p-1", time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC), 14, 100)

	usageCache := cache.NewRedisUsageCache(client, time.Minute)
	observer := &cacheCounter{counts: map[string]int{}}

	cfg := pipeline.DefaultConfig()
	orch := pipeline.NewOrchestrator(pipeline.Dependencies{
		Products:     store,
		Transactions: store,
		Policies:     store,
		Metrics:      store,
		Cache:        usageCache,
		Clock:        func() time.Time { return testNow },
	}, cfg)

	svc := NewUsageService(UsageDependencies{
		Products:     store,
		Transactions: store,
		Policies:     store,
		Orchestrator: orch,
		Cache:        usageCache,
		Observer:     observer,
	}, cfg)

	return &testEnv{store: store, redis: mr, cache: usageCache, observer: observer, service: svc}
}

func TestCalculateUsageCachesEstimate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.service.CalculateUsage(ctx, "p-1")
	require.NoError(t, err)
	require.Equal(t, domain.Tier12Month, first.Tier)
	require.Equal(t, domain.ConfidenceHigh, first.Confidence)
	require.InDelta(t, 100, first.MonthlyUsageUnits, 1e-9)
	require.True(t, env.redis.Exists("usage:estimate:p-1"))

	env.store.txns["p-1"] = nil

	second, err := env.service.CalculateUsage(ctx, "p-1")
	require.NoError(t, err)
	require.InDelta(t, 100, second.MonthlyUsageUnits, 1e-9)
	require.Equal(t, 1, env.observer.counts["miss"])
	require.Equal(t, 1, env.observer.counts["hit"])
	require.Empty(t, env.store.derived)
}

func TestCalculateUsageProductNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.CalculateUsage(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrProductNotFound)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCalculateUsageClientNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.store.products["p-2"] = domain.Product{ID: "p-2", ClientID: "orphan", PackSize: 1, IsActive: true}

	_, err := env.service.CalculateUsage(context.Background(), "p-2")
	require.ErrorIs(t, err, domain.ErrClientNotFound)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.False(t, env.redis.Exists("usage:estimate:p-2"))
}

func TestCalculateUsageBatch(t *testing.T) {
	env := newTestEnv(t)
	env.store.products["p-2"] = domain.Product{ID: "p-2", ClientID: "c-1", PackSize: 1, IsActive: true}

	items, err := env.service.CalculateUsageBatch(context.Background(), []string{"p-1", "missing", " p-2 ", "p-1", ""})
	require.NoError(t, err)
	require.Len(t, items, 3)

	require.Equal(t, "p-1", items[0].ProductID)
	require.NotNil(t, items[0].Estimate)
	require.Equal(t, domain.Tier12Month, items[0].Estimate.Tier)
	require.Greater(t, items[0].Estimate.ConfidenceScore, 0.0)

	require.Equal(t, "missing", items[1].ProductID)
	require.Nil(t, items[1].Estimate)
	require.True(t, items[1].NotFound)
	require.NotEmpty(t, items[1].Error)

	require.Equal(t, "p-2", items[2].ProductID)
	require.Equal(t, domain.TierWeekly, items[2].Estimate.Tier)
	require.Zero(t, items[2].Estimate.ConfidenceScore)
}

func TestCalculateUsageBatchLimits(t *testing.T) {
	env := newTestEnv(t)

	ids := make([]string, MaxBatchProducts+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("p-%d", i)
	}
	_, err := env.service.CalculateUsageBatch(context.Background(), ids)
	require.ErrorIs(t, err, domain.ErrOutOfRange)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = env.service.CalculateUsageBatch(ctx, []string{"p-1"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestCalculateUsageRecoversFromCacheOutage(t *testing.T) {
	env := newTestEnv(t)
	env.redis.SetError("ERR injected failure")

	estimate, err := env.service.CalculateUsage(context.Background(), "p-1")
	require.NoError(t, err)
	require.InDelta(t, 100, estimate.MonthlyUsageUnits, 1e-9)
	require.Equal(t, 1, env.observer.counts["error"])
}

func TestCalculateReorderPoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	weeks := 2.0
	res, err := env.service.CalculateReorderPoint(ctx, ReorderPointInput{
		DailyRate:        2,
		SafetyStockWeeks: &weeks,
		PackSize:         10,
	})
	require.NoError(t, err)
	require.Equal(t, 56, res.Units)
	require.Equal(t, usage.SafetyStockWeeks, res.Mode)
	require.NotNil(t, res.Packs)
	require.Equal(t, 6, *res.Packs)

	lead := 21
	env.store.clients["c-1"] = domain.PolicySettings{ClientID: "c-1", LeadTimeDays: &lead}
	res, err = env.service.CalculateReorderPoint(ctx, ReorderPointInput{DailyRate: 2, ClientID: "c-1"})
	require.NoError(t, err)
	require.Equal(t, 21, res.LeadTimeDays)
	require.Equal(t, 70, res.Units)
	require.Nil(t, res.Packs)
}

func TestCalculateReorderPointRejectsInvalidPolicy(t *testing.T) {
	env := newTestEnv(t)

	level := 1.2
	_, err := env.service.CalculateReorderPoint(context.Background(), ReorderPointInput{DailyRate: 1, ServiceLevel: &level})
	require.ErrorIs(t, err, domain.ErrInvalidPolicy)

	_, err = env.service.CalculateReorderPoint(context.Background(), ReorderPointInput{DailyRate: 1, ClientID: "nobody"})
	require.ErrorIs(t, err, domain.ErrClientNotFound)
}

func TestCalculateSuggestedReorderQuantity(t *testing.T) {
	env := newTestEnv(t)

	s, err := env.service.CalculateSuggestedReorderQuantity(usage.SuggestionInput{
		MonthlyUsageUnits: 100,
		CurrentStockUnits: 0,
		PackSize:          10,
	})
	require.NoError(t, err)
	require.Equal(t, 24, s.SuggestedPacks)
	require.Equal(t, 240, s.SuggestedUnits)

	_, err = env.service.CalculateSuggestedReorderQuantity(usage.SuggestionInput{MonthlyUsageUnits: 1})
	require.ErrorIs(t, err, domain.ErrInvalidPackSize)
}

func TestRecalculateClientUsageInvalidatesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.service.CalculateUsage(ctx, "p-1")
	require.NoError(t, err)
	require.True(t, env.redis.Exists("usage:estimate:p-1"))

	report, err := env.service.RecalculateClientUsage(ctx, "c-1", "")
	require.NoError(t, err)
	require.Equal(t, 1, report.Processed)
	require.Empty(t, report.Errors)
	require.False(t, env.redis.Exists("usage:estimate:p-1"))
	require.Equal(t, domain.Tier12Month, env.store.derived["p-1"].Tier)
}

func TestGetUsageTierDisplay(t *testing.T) {
	env := newTestEnv(t)

	display, ok := env.service.GetUsageTierDisplay("12-month")
	require.True(t, ok)
	require.Equal(t, "12mo", display.ShortLabel)

	display, ok = env.service.GetUsageTierDisplay("fortnightly")
	require.False(t, ok)
	require.Equal(t, "gray", display.ColorHint)
}

func TestGetConfidenceStats(t *testing.T) {
	env := newTestEnv(t)
	env.store.stats = domain.ConfidenceStats{TotalProducts: 3, HighConfidence: 1, LowConfidence: 2}

	stats, err := env.service.GetConfidenceStats(context.Background(), "c-1")
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalProducts)

	_, err = env.service.GetConfidenceStats(context.Background(), "nobody")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListRunsWithoutStore(t *testing.T) {
	env := newTestEnv(t)

	runs, err := env.service.ListRuns(context.Background(), "c-1", 0)
	require.NoError(t, err)
	require.Empty(t, runs)
}
