package tenant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"courier/internal/logger"
)

// CachedRepository is a read-through cache over the tenant repository.
// Authorization hits the directory on every broker callback, so tenant and
// sub-scope documents are cached for a short TTL. Cache failures fall back to
// the store; they never fail a lookup. Counter increments bypass the cache
// entirely (counters are fire-and-forget and never read on this path), and
// credential lookups are not cached: a revoked secret must stop
// authenticating on the next connection attempt.
type CachedRepository struct {
	Repository
	rdb *redis.Client
	ttl time.Duration
	log logger.Logger
}

func NewCachedRepository(repo Repository, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedRepository {
	return &CachedRepository{
		Repository: repo,
		rdb:        rdb,
		ttl:        ttl,
		log:        log,
	}
}

func (c *CachedRepository) FindTenantByID(ctx context.Context, id string) (*Tenant, error) {
	return c.cachedTenant(ctx, "tenant:id:"+id, func() (*Tenant, error) {
		return c.Repository.FindTenantByID(ctx, id)
	})
}

func (c *CachedRepository) FindTenantByAlias(ctx context.Context, alias string) (*Tenant, error) {
	return c.cachedTenant(ctx, "tenant:alias:"+alias, func() (*Tenant, error) {
		return c.Repository.FindTenantByAlias(ctx, alias)
	})
}

func (c *CachedRepository) FindSubScopeByID(ctx context.Context, tenantID, id string) (*SubScope, error) {
	return c.cachedSubScope(ctx, "subscope:id:"+tenantID+":"+id, func() (*SubScope, error) {
		return c.Repository.FindSubScopeByID(ctx, tenantID, id)
	})
}

func (c *CachedRepository) FindSubScopeByAlias(ctx context.Context, tenantID, alias string) (*SubScope, error) {
	return c.cachedSubScope(ctx, "subscope:alias:"+tenantID+":"+alias, func() (*SubScope, error) {
		return c.Repository.FindSubScopeByAlias(ctx, tenantID, alias)
	})
}

func (c *CachedRepository) cachedTenant(ctx context.Context, key string, load func() (*Tenant, error)) (*Tenant, error) {
	if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var t Tenant
		if err := json.Unmarshal(data, &t); err == nil {
			return &t, nil
		}
	} else if err != redis.Nil {
		c.log.Warnw("Tenant cache read failed, falling back to store", "key", key, "error", err)
	}

	t, err := load()
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, t)
	return t, nil
}

func (c *CachedRepository) cachedSubScope(ctx context.Context, key string, load func() (*SubScope, error)) (*SubScope, error) {
	if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var s SubScope
		if err := json.Unmarshal(data, &s); err == nil {
			return &s, nil
		}
	} else if err != redis.Nil {
		c.log.Warnw("Sub-scope cache read failed, falling back to store", "key", key, "error", err)
	}

	s, err := load()
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, s)
	return s, nil
}

func (c *CachedRepository) set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warnw("Tenant cache write failed", "key", key, "error", err)
	}
}

var _ Repository = (*CachedRepository)(nil)
