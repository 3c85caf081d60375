// Package cache provides a Redis read-through cache for catalog queries.
package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
)

const featuredKeyPrefix = "storefront:products:featured:"

var _ product.FeaturedCache = (*FeaturedProducts)(nil)

// FeaturedProducts caches featured product lists in Redis. Redis errors are
// logged and treated as misses so the catalog stays readable without it.
type FeaturedProducts struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewFeaturedProducts returns a cache storing entries for ttl.
func NewFeaturedProducts(client redis.Cmdable, ttl time.Duration) *FeaturedProducts {
	return &FeaturedProducts{client: client, ttl: ttl}
}

func featuredKey(limit int) string {
	return featuredKeyPrefix + strconv.Itoa(limit)
}

// Featured returns the cached list for limit.
func (c *FeaturedProducts) Featured(ctx context.Context, limit int) ([]product.Product, bool) {
	data, err := c.client.Get(ctx, featuredKey(limit)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zctx.From(ctx).Warn("Featured cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var products []product.Product
	if err := json.Unmarshal(data, &products); err != nil {
		zctx.From(ctx).Warn("Featured cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return products, true
}

// StoreFeatured caches products for limit.
func (c *FeaturedProducts) StoreFeatured(ctx context.Context, limit int, products []product.Product) {
	data, err := json.Marshal(products)
	if err != nil {
		zctx.From(ctx).Warn("Featured cache encode failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, featuredKey(limit), data, c.ttl).Err(); err != nil {
		zctx.From(ctx).Warn("Featured cache write failed", zap.Error(err))
	}
}

// Invalidate drops every cached featured list.
func (c *FeaturedProducts) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, featuredKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "scan featured keys")
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "delete featured keys")
	}
	return nil
}

// Ping checks the Redis connection. It backs the readiness probe.
func (c *FeaturedProducts) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
