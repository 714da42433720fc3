package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/beta-portfolio/internal/types"
)

// PriceCache caches benchmark price histories so concurrent analyses of
// different wallets share one upstream fetch per benchmark per window.
type PriceCache interface {
	Get(ctx context.Context, coinID string, days int) ([]types.PricePoint, bool, error)
	Set(ctx context.Context, coinID string, days int, history []types.PricePoint) error
}

func priceKey(coinID string, days int) string {
	return fmt.Sprintf("prices:%s:%dd", coinID, days)
}

type memoryPriceEntry struct {
	history   []types.PricePoint
	expiresAt time.Time
}

// MemoryPriceCache is a TTL map cache used when Redis is not configured.
type MemoryPriceCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryPriceEntry
}

// NewMemoryPriceCache creates a cache whose entries expire after ttl.
func NewMemoryPriceCache(ttl time.Duration) *MemoryPriceCache {
	return &MemoryPriceCache{ttl: ttl, entries: make(map[string]memoryPriceEntry)}
}

// Get implements PriceCache.
func (c *MemoryPriceCache) Get(_ context.Context, coinID string, days int) ([]types.PricePoint, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[priceKey(coinID, days)]
	if !ok || time.Now().After(e.expiresAt) {
		delete(c.entries, priceKey(coinID, days))
		return nil, false, nil
	}
	return e.history, true, nil
}

// Set implements PriceCache.
func (c *MemoryPriceCache) Set(_ context.Context, coinID string, days int, history []types.PricePoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[priceKey(coinID, days)] = memoryPriceEntry{
		history:   history,
		expiresAt: time.Now().Add(c.ttl),
	}
	return nil
}

// RedisPriceCache stores histories as JSON in Redis with a TTL.
type RedisPriceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPriceCache wraps client with the given entry TTL.
func NewRedisPriceCache(client *redis.Client, ttl time.Duration) *RedisPriceCache {
	return &RedisPriceCache{client: client, ttl: ttl}
}

// Get implements PriceCache.
func (c *RedisPriceCache) Get(ctx context.Context, coinID string, days int) ([]types.PricePoint, bool, error) {
	data, err := c.client.Get(ctx, priceKey(coinID, days)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("price cache get %s: %w", coinID, err)
	}
	var history []types.PricePoint
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, false, fmt.Errorf("price cache decode %s: %w", coinID, err)
	}
	return history, true, nil
}

// Set implements PriceCache.
func (c *RedisPriceCache) Set(ctx context.Context, coinID string, days int, history []types.PricePoint) error {
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("price cache encode %s: %w", coinID, err)
	}
	if err := c.client.Set(ctx, priceKey(coinID, days), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("price cache set %s: %w", coinID, err)
	}
	return nil
}
