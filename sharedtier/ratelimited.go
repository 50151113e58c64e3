package sharedtier

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedClient wraps a RemoteClient with an outbound rate limiter,
// the same golang.org/x/time/rate pattern the warming pipeline it is
// adapted from uses to cap origin-fetch RPS — here capping shared-tier
// RPS instead, for deployments fronting a cluster shared by many
// cache-enabled processes.
type RateLimitedClient struct {
	inner   RemoteClient
	limiter *rate.Limiter
}

// NewRateLimitedClient caps inner to at most rps requests per second,
// allowing bursts up to burst.
func NewRateLimitedClient(inner RemoteClient, rps float64, burst int) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (c *RateLimitedClient) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sharedtier: rate limit wait: %w", err)
	}
	return nil
}

func (c *RateLimitedClient) Get(ctx context.Context, key string) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.Get(ctx, key)
}

func (c *RateLimitedClient) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.MGet(ctx, keys...)
}

func (c *RateLimitedClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	return c.inner.Set(ctx, key, value, ttl)
}

func (c *RateLimitedClient) Delete(ctx context.Context, key string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	return c.inner.Delete(ctx, key)
}

func (c *RateLimitedClient) FlushAll(ctx context.Context) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	return c.inner.FlushAll(ctx)
}
