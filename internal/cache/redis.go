package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL    = 15 * time.Minute
	DefaultJitter = 5 * time.Minute

	cartKeyPrefix = "cart:"
	metricName    = "cart"
)

type Options struct {
	TTL time.Duration
	// Jitter is the upper bound of a random extra added to TTL, so carts
	// cached in the same burst do not all expire at once.
	Jitter time.Duration
	// Metrics may be nil.
	Metrics *metrics.AppMetrics
}

// RedisCache keeps a JSON copy of each user's cart under cart:<userID>.
// Every lookup counts as a hit or a miss.
type RedisCache struct {
	client  redis.UniversalClient
	ttl     time.Duration
	jitter  time.Duration
	metrics *metrics.AppMetrics
}

func NewRedisCache(client redis.UniversalClient, opts Options) *RedisCache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Jitter < 0 {
		opts.Jitter = 0
	}
	return &RedisCache{
		client:  client,
		ttl:     opts.TTL,
		jitter:  opts.Jitter,
		metrics: opts.Metrics,
	}
}

// Get returns ErrCacheMiss for an absent key. An entry that no longer
// decodes is dropped and reported as an error, so the caller falls back to
// the store and rewrites it.
func (r *RedisCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	key := cartKey(userID)
	data, err := r.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		r.metrics.CacheMiss(ctx, metricName)
		return nil, ErrCacheMiss
	case err != nil:
		r.metrics.CacheMiss(ctx, metricName)
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		r.metrics.CacheMiss(ctx, metricName)
		if delErr := r.client.Del(ctx, key).Err(); delErr != nil {
			return nil, errors.Join(fmt.Errorf("unmarshal cart failed: %w", err), delErr)
		}
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	r.metrics.CacheHit(ctx, metricName)
	return &cart, nil
}

func (r *RedisCache) Set(ctx context.Context, userID string, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := r.client.Set(ctx, cartKey(userID), data, r.expiry()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisCache) expiry() time.Duration {
	if r.jitter == 0 {
		return r.ttl
	}
	return r.ttl + rand.N(r.jitter)
}

func cartKey(userID string) string {
	return cartKeyPrefix + userID
}
