package pipeline

import (
	"context"
	"log/slog"
	"time"

	"bitbalance/internal/domain/model"
	"bitbalance/internal/domain/port"
)

const DefaultCacheTTL = 5 * time.Minute

// Cached serves quotes from a cache and fills it from the inner provider.
// Misses are never cached, and cache failures never fail a lookup.
type Cached struct {
	inner  port.PriceProvider
	cache  port.PriceCache
	ttl    time.Duration
	logger *slog.Logger
}

var _ port.PriceProvider = (*Cached)(nil)

func NewCached(inner port.PriceProvider, cache port.PriceCache, ttl time.Duration, logger *slog.Logger) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

func (c *Cached) TryGetPrice(ctx context.Context, symbol model.CoinSymbol) (*model.Quote, error) {
	hit, err := c.cache.GetQuote(ctx, symbol)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("failed to read price cache", "symbol", symbol, "error", err)
	} else if hit != nil {
		c.logger.Debug("price cache hit", "symbol", symbol, "source", hit.Source)
		return hit, nil
	}

	q, err := c.inner.TryGetPrice(ctx, symbol)
	if err != nil || q == nil {
		return q, err
	}

	if err := c.cache.SetQuote(ctx, *q, c.ttl); err != nil {
		c.logger.Warn("failed to write price cache", "symbol", symbol, "error", err)
	}
	return q, nil
}
