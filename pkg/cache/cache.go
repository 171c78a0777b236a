package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache TTLs
const (
	TTLEntitlement = 5 * time.Minute  // resolved entitlements (invalidated on every mutation)
	TTLCatalog     = 10 * time.Minute // plan/module catalog (changes only on reseed)
	TTLDefault     = 5 * time.Minute
)

// Cache key prefixes
const (
	PrefixEntitlement = "entitlement:"
	PrefixCatalog     = "catalog:"
)

// ErrMiss is returned when a key is absent
var ErrMiss = errors.New("cache miss")

// Service is the Redis-backed cache used for entitlement reads.
// The database stays the source of truth; every subscription, grant or
// override mutation must invalidate the tenant's entry.
type Service interface {
	GetEntitlement(ctx context.Context, tenantID string, dest interface{}) error
	SetEntitlement(ctx context.Context, tenantID string, value interface{}) error
	InvalidateEntitlement(ctx context.Context, tenantID string) error
}

type redisCache struct {
	client *redis.Client
}

// NewService creates a Redis-backed cache service
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

func (c *redisCache) GetEntitlement(ctx context.Context, tenantID string, dest interface{}) error {
	data, err := c.client.Get(ctx, PrefixEntitlement+tenantID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return fmt.Errorf("cache get: %w", err)
	}
	return json.Unmarshal(data, dest)
}

func (c *redisCache) SetEntitlement(ctx context.Context, tenantID string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	return c.client.Set(ctx, PrefixEntitlement+tenantID, data, TTLEntitlement).Err()
}

func (c *redisCache) InvalidateEntitlement(ctx context.Context, tenantID string) error {
	return c.client.Del(ctx, PrefixEntitlement+tenantID).Err()
}

// Noop returns a cache service that stores nothing. Used when Redis is
// unavailable so entitlement reads fall through to the database.
func Noop() Service {
	return noopCache{}
}

type noopCache struct{}

func (noopCache) GetEntitlement(context.Context, string, interface{}) error { return ErrMiss }
func (noopCache) SetEntitlement(context.Context, string, interface{}) error {
	return nil
}
func (noopCache) InvalidateEntitlement(context.Context, string) error { return nil }
