package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/cache"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/pipeline"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/repository"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/usage"
)

const defaultRunListLimit = 20

// CacheObserver records usage cache lookups.
type CacheObserver interface {
	ObserveCache(result string)
}

// UsageDependencies are the collaborators of a UsageService. Runs, Cache
// and Observer are optional.
type UsageDependencies struct {
	Products     repository.ProductStore
	Transactions repository.TransactionReader
	Policies     repository.PolicyReader
	Runs         pipeline.RunStore
	Orchestrator *pipeline.Orchestrator
	Cache        cache.UsageCache
	Observer     CacheObserver
}

// UsageService exposes the usage and reorder operations to the API, the
// worker and the CLI.
type UsageService struct {
	products     repository.ProductStore
	transactions repository.TransactionReader
	policies     repository.PolicyReader
	runs         pipeline.RunStore
	orchestrator *pipeline.Orchestrator
	cache        cache.UsageCache
	observer     CacheObserver
	cfg          pipeline.Config
}

func NewUsageService(deps UsageDependencies, cfg pipeline.Config) *UsageService {
	cacheImpl := deps.Cache
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopUsageCache()
	}
	if cfg.Defaults == (domain.ReorderPolicy{}) {
		cfg.Defaults = domain.DefaultReorderPolicy()
	}
	return &UsageService{
		products:     deps.Products,
		transactions: deps.Transactions,
		policies:     deps.Policies,
		runs:         deps.Runs,
		orchestrator: deps.Orchestrator,
		cache:        cacheImpl,
		observer:     deps.Observer,
		cfg:          cfg,
	}
}

// CalculateUsage returns the usage estimate of one product, served from
// the cache when a fresh entry exists. Nothing is persisted.
func (s *UsageService) CalculateUsage(ctx context.Context, productID string) (*usage.Estimate, error) {
	if estimate, ok, err := s.cache.GetEstimate(ctx, productID); err == nil && ok {
		s.observeCache("hit")
		return estimate, nil
	} else if err != nil {
		s.observeCache("error")
		log.Warn().Err(err).Str("product_id", productID).Msg("usage: cache get estimate failed")
	} else {
		s.observeCache("miss")
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	policy, err := s.clientPolicy(ctx, product.ClientID)
	if err != nil {
		return nil, err
	}

	txns, err := s.transactions.ListCompletedByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	calc := s.orchestrator.Calculator()
	now := calc.Now()
	result := calc.CalculateAt(productID, txns, now)
	estimate, err := usage.Analyze(result, *product, policy, now, s.analyzeOptions())
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetEstimate(ctx, estimate); err != nil {
		log.Warn().Err(err).Str("product_id", productID).Msg("usage: cache set estimate failed")
	}

	return &estimate, nil
}

// MaxBatchProducts bounds CalculateUsageBatch.
const MaxBatchProducts = 200

// UsageBatchItem is the outcome for one product of a batch calculation.
type UsageBatchItem struct {
	ProductID string          `json:"product_id"`
	Estimate  *usage.Estimate `json:"estimate,omitempty"`
	Error     string          `json:"error,omitempty"`
	NotFound  bool            `json:"not_found,omitempty"`
}

// CalculateUsageBatch calculates usage for several products, in request
// order with duplicates dropped. A failing product is reported in its item
// and does not fail the batch; only cancellation does.
func (s *UsageService) CalculateUsageBatch(ctx context.Context, productIDs []string) ([]UsageBatchItem, error) {
	ids := uniqueIDs(productIDs)
	if len(ids) > MaxBatchProducts {
		return nil, fmt.Errorf("%w: at most %d products per batch", domain.ErrOutOfRange, MaxBatchProducts)
	}

	items := make([]UsageBatchItem, len(ids))
	var g errgroup.Group
	g.SetLimit(max(1, s.cfg.WorkerCount))
	for i, id := range ids {
		g.Go(func() error {
			item := UsageBatchItem{ProductID: id}
			estimate, err := s.CalculateUsage(ctx, id)
			if err != nil {
				item.Error = err.Error()
				item.NotFound = errors.Is(err, domain.ErrNotFound)
				log.Warn().Err(err).Str("product_id", id).Msg("usage: batch calculation failed for product")
			} else {
				item.Estimate = estimate
			}
			items[i] = item
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// ReorderPointInput is the input to CalculateReorderPoint. Unset policy
// fields come from the client settings when ClientID is given, then from
// the engine defaults.
type ReorderPointInput struct {
	DailyRate        float64  `json:"daily_rate" binding:"gte=0"`
	StdDev           float64  `json:"std_dev" binding:"gte=0"`
	LeadTimeDays     *int     `json:"lead_time_days,omitempty" binding:"omitempty,gt=0"`
	SafetyStockWeeks *float64 `json:"safety_stock_weeks,omitempty" binding:"omitempty,gte=0"`
	ServiceLevel     *float64 `json:"service_level,omitempty" binding:"omitempty,gt=0,lt=1"`
	PackSize         int      `json:"pack_size,omitempty" binding:"gte=0"`
	ClientID         string   `json:"client_id,omitempty"`
}

// ReorderPointResult is a reorder point with the policy that produced it.
type ReorderPointResult struct {
	usage.ReorderPoint
	Packs  *int                 `json:"packs,omitempty"`
	Policy domain.ReorderPolicy `json:"policy"`
}

// CalculateReorderPoint computes a reorder point in units, and in packs
// when a pack size is given.
func (s *UsageService) CalculateReorderPoint(ctx context.Context, in ReorderPointInput) (*ReorderPointResult, error) {
	settings := domain.PolicySettings{}
	if in.ClientID != "" {
		stored, err := s.policies.GetPolicySettings(ctx, in.ClientID)
		if err != nil {
			return nil, err
		}
		settings = stored
	}
	if in.LeadTimeDays != nil {
		settings.LeadTimeDays = in.LeadTimeDays
	}
	if in.SafetyStockWeeks != nil {
		settings.SafetyStockWeeks = in.SafetyStockWeeks
	}
	if in.ServiceLevel != nil {
		settings.ServiceLevel = in.ServiceLevel
	}

	policy, err := domain.ResolvePolicy(settings, s.cfg.Defaults)
	if err != nil {
		return nil, err
	}

	rp, err := usage.CalculateReorderPoint(in.DailyRate, policy.LeadTimeDays, in.StdDev, policy)
	if err != nil {
		return nil, err
	}
	out := &ReorderPointResult{ReorderPoint: rp, Policy: policy}
	if in.PackSize > 0 {
		packs, err := rp.Packs(in.PackSize)
		if err != nil {
			return nil, err
		}
		out.Packs = &packs
	}
	return out, nil
}

// CalculateSuggestedReorderQuantity sizes an order in whole packs. Zero
// target and lead weeks use the configured horizon.
func (s *UsageService) CalculateSuggestedReorderQuantity(in usage.SuggestionInput) (usage.Suggestion, error) {
	if in.TargetWeeks <= 0 {
		in.TargetWeeks = s.cfg.TargetWeeks
	}
	if in.LeadWeeks <= 0 {
		in.LeadWeeks = s.cfg.LeadWeeks
	}
	return usage.SuggestReorder(in)
}

// RecalculateClientUsage recalculates and persists every active product
// of a client.
func (s *UsageService) RecalculateClientUsage(ctx context.Context, clientID, trigger string) (*pipeline.Report, error) {
	if trigger == "" {
		trigger = pipeline.TriggerAPI
	}
	return s.orchestrator.RecalculateClient(ctx, clientID, trigger)
}

// GetUsageTierDisplay maps a tier label to its display description. The
// second return is false for unknown labels.
func (s *UsageService) GetUsageTierDisplay(label string) (domain.TierDisplay, bool) {
	tier, ok := domain.ParseTier(label)
	return domain.TierDisplayFor(tier), ok
}

// GetConfidenceStats returns the confidence distribution of a client's
// active products.
func (s *UsageService) GetConfidenceStats(ctx context.Context, clientID string) (domain.ConfidenceStats, error) {
	if _, err := s.policies.GetPolicySettings(ctx, clientID); err != nil {
		return domain.ConfidenceStats{}, err
	}
	return s.products.GetConfidenceStats(ctx, clientID)
}

// ListRuns returns the most recent recalculation runs of a client.
func (s *UsageService) ListRuns(ctx context.Context, clientID string, limit int) ([]*pipeline.RecalculationRun, error) {
	if s.runs == nil {
		return []*pipeline.RecalculationRun{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = defaultRunListLimit
	}
	runs, err := s.runs.ListRecentRuns(ctx, clientID, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = make([]*pipeline.RecalculationRun, 0)
	}
	return runs, nil
}

func (s *UsageService) clientPolicy(ctx context.Context, clientID string) (domain.ReorderPolicy, error) {
	settings, err := s.policies.GetPolicySettings(ctx, clientID)
	if err != nil {
		return domain.ReorderPolicy{}, fmt.Errorf("failed to read client policy: %w", err)
	}
	return domain.ResolvePolicy(settings, s.cfg.Defaults)
}

func (s *UsageService) analyzeOptions() usage.AnalyzeOptions {
	return usage.AnalyzeOptions{TargetWeeks: s.cfg.TargetWeeks, LeadWeeks: s.cfg.LeadWeeks}
}

func (s *UsageService) observeCache(result string) {
	if s.observer != nil {
		s.observer.ObserveCache(result)
	}
}
