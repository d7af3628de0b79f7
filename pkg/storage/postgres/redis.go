package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/storage"
)

const (
	cacheNamespace   = "taskhub"
	redisDialTimeout = 5 * time.Second
	redisIOTimeout   = 3 * time.Second
	// generation counters outlive any plausible load that read them
	userGenTTL = 24 * time.Hour
)

var errStaleUser = errors.New("user changed since load")

func userKey(id string) string {
	return cacheNamespace + ":user:" + id
}

func userGenKey(id string) string {
	return userKey(id) + ":gen"
}

// cachedUser is the cache entry for a user. Password hashes never reach Redis.
type cachedUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      auth.Role `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RedisClient is the shared Redis connection: user cache entries, rate limit
// counters and, through Client, the broadcast channel
type RedisClient struct {
	client  *redis.Client
	userTTL time.Duration
}

func redisOptions(cfg storage.Config) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	if cfg.RedisDB > 0 {
		opts.DB = cfg.RedisDB
	}
	if cfg.RedisMaxRetries > 0 {
		opts.MaxRetries = cfg.RedisMaxRetries
	}
	if cfg.RedisPoolSize > 0 {
		opts.PoolSize = cfg.RedisPoolSize
	}
	opts.DialTimeout = redisDialTimeout
	opts.ReadTimeout = redisIOTimeout
	opts.WriteTimeout = redisIOTimeout
	opts.PoolTimeout = redisIOTimeout + time.Second
	return opts, nil
}

// NewRedisClient connects using cfg.RedisURL plus the explicit overrides in
// cfg. The server must answer a ping.
func NewRedisClient(cfg storage.Config) (*RedisClient, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisClient{client: client, userTTL: cfg.UserCacheTTL}, nil
}

// GetUser returns the cached user, without its password hash, or (nil, nil)
// on a miss. Undecodable entries are evicted.
func (c *RedisClient) GetUser(ctx context.Context, id string) (*storage.User, error) {
	var entry cachedUser
	found, err := c.getJSON(ctx, userKey(id), &entry)
	if !found || err != nil {
		return nil, err
	}
	return &storage.User{
		ID:        entry.ID,
		Email:     entry.Email,
		Name:      entry.Name,
		Role:      entry.Role,
		CreatedAt: entry.CreatedAt,
		UpdatedAt: entry.UpdatedAt,
	}, nil
}

// UserGeneration reads the invalidation counter for id. Read it before
// loading the user from the store and hand it to SetUser.
func (c *RedisClient) UserGeneration(ctx context.Context, id string) (int64, error) {
	n, err := c.client.Get(ctx, userGenKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// SetUser caches user for the configured TTL unless InvalidateUser ran after
// gen was read. It reports whether the entry was written.
func (c *RedisClient) SetUser(ctx context.Context, user *storage.User, gen int64) (bool, error) {
	key, genKey := userKey(user.ID), userGenKey(user.ID)
	raw, err := json.Marshal(cachedUser{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	})
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", key, err)
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleUser
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, c.userTTL)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errStaleUser), errors.Is(err, redis.TxFailedErr):
		return false, nil
	}
	return false, fmt.Errorf("redis set %s: %w", key, err)
}

// InvalidateUser drops the cached user and bumps its generation so a load
// already in flight cannot write the old copy back
func (c *RedisClient) InvalidateUser(ctx context.Context, id string) error {
	genKey := userGenKey(id)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, userGenTTL)
		pipe.Del(ctx, userKey(id))
		return nil
	})
	return err
}

func (c *RedisClient) getJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		c.client.Del(ctx, key)
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Incr bumps a counter and returns its new value
func (c *RedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

// Expire sets a TTL on key
func (c *RedisClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}

func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Client exposes the raw client for health checks and pub/sub
func (c *RedisClient) Client() *redis.Client {
	return c.client
}

func (c *RedisClient) Close() error {
	return c.client.Close()
}
