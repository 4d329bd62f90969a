// Package resultcache keeps successful module results in Redis so repeated
// jobs within the adaptive TTL skip the tool run.
package resultcache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"attackgraph/pkg/models"
)

// Config configures Redis access for cached results.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Cache stores one result per (module, host).
type Cache struct {
	client *redis.Client
	prefix string
}

// New constructs a Redis-backed result cache.
func New(cfg Config) (*Cache, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = "attackgraph:result"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis result cache: %w", err)
	}
	return &Cache{client: client, prefix: strings.TrimSpace(cfg.KeyPrefix)}, nil
}

// Get returns the cached result for module on host. The returned result has
// Cached set.
func (c *Cache) Get(ctx context.Context, module, host string) (models.ModuleResult, bool, error) {
	data, err := c.client.Get(ctx, c.key(module, host)).Bytes()
	if err == redis.Nil {
		return models.ModuleResult{}, false, nil
	}
	if err != nil {
		return models.ModuleResult{}, false, fmt.Errorf("read cached result: %w", err)
	}
	var res models.ModuleResult
	if err := json.Unmarshal(data, &res); err != nil {
		// A corrupt entry is a miss; drop it so the next run refreshes it.
		_ = c.client.Del(ctx, c.key(module, host)).Err()
		return models.ModuleResult{}, false, nil
	}
	res.Cached = true
	return res, true, nil
}

// Put caches res for ttl. Only ok results are cached; anything else is a no-op.
func (c *Cache) Put(ctx context.Context, res models.ModuleResult, ttl time.Duration) error {
	if res.Status != models.StatusOK || ttl <= 0 {
		return nil
	}
	res.Cached = false
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := c.client.Set(ctx, c.key(res.Module, res.Target), data, ttl).Err(); err != nil {
		return fmt.Errorf("write cached result: %w", err)
	}
	return nil
}

// Invalidate drops the cached result for module on host.
func (c *Cache) Invalidate(ctx context.Context, module, host string) error {
	if err := c.client.Del(ctx, c.key(module, host)).Err(); err != nil {
		return fmt.Errorf("invalidate cached result: %w", err)
	}
	return nil
}

// Close closes Redis resources.
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Cache) key(module, host string) string {
	return c.prefix + ":" + module + ":" + host
}
