package postgres

import (
	"context"

	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/storage"
)

// CachedStore puts a Redis read-through cache in front of user lookups by id.
// Every other call goes straight to the wrapped store. Cache failures are
// logged and fall back to the store.
//
// Users served from the cache carry no password hash. A load that races an
// UpdateUser is not written back: the generation read before the load no
// longer matches once UpdateUser has invalidated the entry.
type CachedStore struct {
	storage.Store
	redis   *RedisClient
	metrics *observability.Metrics
}

// NewCachedStore wraps store. metrics may be nil.
func NewCachedStore(store storage.Store, redis *RedisClient, metrics *observability.Metrics) *CachedStore {
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &CachedStore{
		Store:   store,
		redis:   redis,
		metrics: metrics,
	}
}

// GetUser returns the cached user or loads and caches it
func (c *CachedStore) GetUser(ctx context.Context, id string) (*storage.User, error) {
	logger := observability.FromContext(ctx).WithField("user_id", id)

	cached, err := c.redis.GetUser(ctx, id)
	if err != nil {
		logger.WithError(err).Warn("User cache read failed")
	}
	if cached != nil {
		c.metrics.CacheHitsTotal.WithLabelValues("user").Inc()
		return cached, nil
	}
	c.metrics.CacheMissesTotal.WithLabelValues("user").Inc()

	gen, genErr := c.redis.UserGeneration(ctx, id)
	user, err := c.Store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		logger.WithError(genErr).Warn("User cache read failed")
		return user, nil
	}
	if _, err := c.redis.SetUser(ctx, user, gen); err != nil {
		logger.WithError(err).Warn("User cache write failed")
	}
	return user, nil
}

// UpdateUser writes through to the store and drops the cached copy. A user
// that came from the cache has no hash; the stored one is kept.
func (c *CachedStore) UpdateUser(ctx context.Context, user *storage.User) error {
	if user.PasswordHash == "" {
		stored, err := c.Store.GetUser(ctx, user.ID)
		if err != nil {
			return err
		}
		user.PasswordHash = stored.PasswordHash
	}
	if err := c.Store.UpdateUser(ctx, user); err != nil {
		return err
	}
	if err := c.redis.InvalidateUser(ctx, user.ID); err != nil {
		observability.FromContext(ctx).WithError(err).WithField("user_id", user.ID).Warn("User cache invalidation failed")
	}
	return nil
}

// Close closes the wrapped store. The Redis client is owned by the caller.
func (c *CachedStore) Close() error {
	return c.Store.Close()
}
