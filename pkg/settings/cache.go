package settings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// SystemConfigCacheKey is the redis key of the cached system config map
	SystemConfigCacheKey = "stepup:cache:system_notification_config"
	DefaultCacheTTL      = 5 * time.Minute
)

// CachedSystemConfigRepository keeps the system fallback config in redis so
// every dispatch does not hit the database.
type CachedSystemConfigRepository struct {
	next   SystemConfigRepository
	client *redis.Client
	ttl    time.Duration
}

func NewCachedSystemConfigRepository(next SystemConfigRepository, client *redis.Client, ttl time.Duration) *CachedSystemConfigRepository {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSystemConfigRepository{next: next, client: client, ttl: ttl}
}

func (c *CachedSystemConfigRepository) GetSystemConfig(ctx context.Context) (map[string]string, error) {
	val, err := c.client.Get(ctx, SystemConfigCacheKey).Result()
	if err == nil {
		var config map[string]string
		if err := json.Unmarshal([]byte(val), &config); err == nil {
			return config, nil
		}
		slog.Warn("Discarding corrupt system config cache entry")
	} else if !errors.Is(err, redis.Nil) {
		// cache is optional, fall through to the store
		slog.Warn("Redis get failed", "key", SystemConfigCacheKey, "err", err)
	}

	config, err := c.next.GetSystemConfig(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(config)
	if err == nil {
		if err := c.client.Set(ctx, SystemConfigCacheKey, data, c.ttl).Err(); err != nil {
			slog.Warn("Redis set failed", "key", SystemConfigCacheKey, "err", err)
		}
	}
	return config, nil
}

func (c *CachedSystemConfigRepository) SetSystemConfig(ctx context.Context, key, value string) error {
	if err := c.next.SetSystemConfig(ctx, key, value); err != nil {
		return err
	}
	if err := c.client.Del(ctx, SystemConfigCacheKey).Err(); err != nil {
		slog.Warn("Redis invalidate failed", "key", SystemConfigCacheKey, "err", err)
	}
	return nil
}
