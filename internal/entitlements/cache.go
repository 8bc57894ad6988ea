package entitlements

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/angelmondragon/omni-backend/internal/billing"
	"github.com/angelmondragon/omni-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/omni-backend/pkg/redis"
)

// StatusCache holds recent subscription statuses per (user, product).
type StatusCache interface {
	Get(ctx context.Context, userID, productName string) (*billing.SubscriptionStatus, bool)
	Set(ctx context.Context, userID, productName string, status *billing.SubscriptionStatus)
	Invalidate(ctx context.Context, userID, productName string) error
}

type redisKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	EntitlementStatusKey(userID, productName string) string
}

// RedisStatusCache stores statuses as JSON with a fixed TTL. Cache failures
// are logged and treated as misses.
type RedisStatusCache struct {
	kv   redisKV
	ttl  time.Duration
	logg *logger.Logger
}

// NewRedisStatusCache returns nil when caching is disabled (no client or
// non-positive TTL).
func NewRedisStatusCache(client *pkgredis.Client, ttl time.Duration, logg *logger.Logger) StatusCache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &RedisStatusCache{kv: client, ttl: ttl, logg: logg}
}

func (c *RedisStatusCache) Get(ctx context.Context, userID, productName string) (*billing.SubscriptionStatus, bool) {
	raw, err := c.kv.Get(ctx, c.kv.EntitlementStatusKey(userID, productName))
	if err != nil {
		if !errors.Is(err, pkgredis.ErrNil) && c.logg != nil {
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "entitlement cache read failed")
		}
		return nil, false
	}
	var status billing.SubscriptionStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil, false
	}
	return &status, true
}

func (c *RedisStatusCache) Set(ctx context.Context, userID, productName string, status *billing.SubscriptionStatus) {
	if status == nil {
		return
	}
	payload, err := json.Marshal(status)
	if err != nil {
		return
	}
	if err := c.kv.Set(ctx, c.kv.EntitlementStatusKey(userID, productName), payload, c.ttl); err != nil && c.logg != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "entitlement cache write failed")
	}
}

func (c *RedisStatusCache) Invalidate(ctx context.Context, userID, productName string) error {
	return c.kv.Del(ctx, c.kv.EntitlementStatusKey(userID, productName))
}
