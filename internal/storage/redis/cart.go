// Package redis provides a read-through cache in front of a cart.Store.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/storefront/internal/domain/cart"
)

var _ cart.Store = (*CartCache)(nil)

// CartCache serves carts from Redis and falls back to the wrapped store on a
// miss. Writes go to the store first and then invalidate the cached copy.
// Redis failures are logged and never fail the call.
//
// Every invalidation bumps a per-user generation counter. A miss fill only
// lands if the generation it read before loading is still current, so a
// load racing a Save or Delete cannot put the old cart back.
type CartCache struct {
	next   cart.Store
	client goredis.UniversalClient
	ttl    time.Duration
	jitter time.Duration
	group  singleflight.Group
}

// NewCartCache wraps next. Entries live for ttl plus up to jitter, so keys
// written together do not expire together.
func NewCartCache(next cart.Store, client goredis.UniversalClient, ttl, jitter time.Duration) *CartCache {
	return &CartCache{
		next:   next,
		client: client,
		ttl:    ttl,
		jitter: jitter,
	}
}

func cacheKey(userID string) string {
	return "cart:" + userID
}

func genKey(userID string) string {
	return "cart:gen:" + userID
}

var errStaleFill = errors.New("cart changed during cache fill")

// Get coalesces concurrent misses for a user. The shared load is detached
// from any single caller's cancellation; a cancelled caller stops waiting
// without failing the others.
func (c *CartCache) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	ch := c.group.DoChan(userID, func() (any, error) {
		return c.load(context.WithoutCancel(ctx), userID)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	// Callers sharing a flight must not share the items slice.
	out := *res.Val.(*cart.Cart)
	out.Items = slices.Clone(out.Items)
	return &out, nil
}

func (c *CartCache) load(ctx context.Context, userID string) (*cart.Cart, error) {
	cached, err := c.read(ctx, userID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, goredis.Nil) {
		zctx.From(ctx).Warn("Cart cache read failed", zap.String("user_id", userID), zap.Error(err))
	}

	gen, genErr := c.generation(ctx, userID)
	loaded, err := c.next.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		zctx.From(ctx).Warn("Cart cache generation read failed", zap.String("user_id", userID), zap.Error(genErr))
		return loaded, nil
	}
	c.write(ctx, loaded, gen)
	return loaded, nil
}

func (c *CartCache) Save(ctx context.Context, ct *cart.Cart) error {
	if err := c.next.Save(ctx, ct); err != nil {
		return err
	}
	c.invalidate(ctx, ct.UserID)
	return nil
}

func (c *CartCache) Delete(ctx context.Context, userID string) error {
	if err := c.next.Delete(ctx, userID); err != nil {
		return err
	}
	c.invalidate(ctx, userID)
	return nil
}

func (c *CartCache) read(ctx context.Context, userID string) (*cart.Cart, error) {
	data, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		return nil, err
	}
	var ct cart.Cart
	if err := json.Unmarshal(data, &ct); err != nil {
		return nil, fmt.Errorf("unmarshal cached cart: %w", err)
	}
	return &ct, nil
}

func (c *CartCache) generation(ctx context.Context, userID string) (int64, error) {
	gen, err := c.client.Get(ctx, genKey(userID)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	return gen, err
}

// write stores ct only while the user's generation still equals gen.
func (c *CartCache) write(ctx context.Context, ct *cart.Cart, gen int64) {
	data, err := json.Marshal(ct)
	if err != nil {
		zctx.From(ctx).Warn("Cart cache encode failed", zap.Error(err))
		return
	}

	err = c.client.Watch(ctx, func(tx *goredis.Tx) error {
		cur, err := tx.Get(ctx, genKey(ct.UserID)).Int64()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Set(ctx, cacheKey(ct.UserID), data, c.expiry())
			return nil
		})
		return err
	}, genKey(ct.UserID))

	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, goredis.TxFailedErr):
		zctx.From(ctx).Debug("Cart cache fill skipped", zap.String("user_id", ct.UserID))
	default:
		zctx.From(ctx).Warn("Cart cache write failed", zap.String("user_id", ct.UserID), zap.Error(err))
	}
}

func (c *CartCache) invalidate(ctx context.Context, userID string) {
	_, err := c.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Incr(ctx, genKey(userID))
		if life := c.ttl + c.jitter; life > 0 {
			p.Expire(ctx, genKey(userID), 2*life)
		}
		p.Del(ctx, cacheKey(userID))
		return nil
	})
	if err != nil {
		zctx.From(ctx).Warn("Cart cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (c *CartCache) expiry() time.Duration {
	if c.jitter <= 0 {
		return c.ttl
	}
	return c.ttl + rand.N(c.jitter)
}
