package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/config"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/usage"
)

const (
	usageEstimateKeyPrefix = "usage:estimate"
	usageScanBatchSize     = 100
)

// UsageCache stores per-product usage estimates between recalculations.
type UsageCache interface {
	GetEstimate(ctx context.Context, productID string) (*usage.Estimate, bool, error)
	SetEstimate(ctx context.Context, estimate usage.Estimate) error
	Invalidate(ctx context.Context, productIDs ...string) error
	InvalidateAll(ctx context.Context) error
}

type redisUsageCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopUsageCache struct{}

// NewUsageCache returns a redis cache when enabled, else a noop cache.
func NewUsageCache(cfg config.CacheConfig) (UsageCache, error) {
	if !cfg.Enabled {
		return &noopUsageCache{}, nil
	}

	client, err := NewRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return NewRedisUsageCache(client, cacheTTL(cfg)), nil
}

// NewRedisUsageCache wraps an existing client.
func NewRedisUsageCache(client *redis.Client, ttl time.Duration) UsageCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisUsageCache{client: client, ttl: ttl}
}

func NewNoopUsageCache() UsageCache {
	return &noopUsageCache{}
}

func (c *redisUsageCache) GetEstimate(ctx context.Context, productID string) (*usage.Estimate, bool, error) {
	payload, err := c.client.Get(ctx, usageEstimateKey(productID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var estimate usage.Estimate
	if err := json.Unmarshal(payload, &estimate); err != nil {
		return nil, false, fmt.Errorf("decode usage estimate cache: %w", err)
	}

	return &estimate, true, nil
}

func (c *redisUsageCache) SetEstimate(ctx context.Context, estimate usage.Estimate) error {
	payload, err := json.Marshal(estimate)
	if err != nil {
		return fmt.Errorf("encode usage estimate cache: %w", err)
	}

	if err := c.client.Set(ctx, usageEstimateKey(estimate.ProductID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisUsageCache) Invalidate(ctx context.Context, productIDs ...string) error {
	if len(productIDs) == 0 {
		return nil
	}
	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = usageEstimateKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (c *redisUsageCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, usageEstimateKeyPrefix, usageScanBatchSize)
}

func (n *noopUsageCache) GetEstimate(ctx context.Context, productID string) (*usage.Estimate, bool, error) {
	return nil, false, nil
}

func (n *noopUsageCache) SetEstimate(ctx context.Context, estimate usage.Estimate) error {
	return nil
}

func (n *noopUsageCache) Invalidate(ctx context.Context, productIDs ...string) error {
	return nil
}

func (n *noopUsageCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func usageEstimateKey(productID string) string {
	return fmt.Sprintf("%s:%s", usageEstimateKeyPrefix, productID)
}
