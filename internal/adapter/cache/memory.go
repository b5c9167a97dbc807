package cache

import (
	"context"
	"sync"
	"time"

	"bitbalance/internal/domain/model"
	"bitbalance/internal/domain/port"
)

type memoryEntry struct {
	quote     model.Quote
	expiresAt time.Time
}

// MemoryCache keeps quotes in process, for single-node deployments and
// when redis is disabled. Expired entries are dropped on read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[model.CoinSymbol]memoryEntry
	now     func() time.Time
}

var _ port.PriceCache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[model.CoinSymbol]memoryEntry),
		now:     time.Now,
	}
}

// WithClock replaces the time source.
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

func (c *MemoryCache) GetQuote(ctx context.Context, symbol model.CoinSymbol) (*model.Quote, error) {
	c.mu.RLock()
	e, ok := c.entries[symbol]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		// re-check, a writer may have refreshed it meanwhile
		if cur, ok := c.entries[symbol]; ok && !c.now().Before(cur.expiresAt) {
			delete(c.entries, symbol)
		}
		c.mu.Unlock()
		return nil, nil
	}

	q := e.quote
	return &q, nil
}

func (c *MemoryCache) SetQuote(ctx context.Context, quote model.Quote, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[quote.Symbol] = memoryEntry{quote: quote, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) Ping(ctx context.Context) error { return nil }
func (c *MemoryCache) Close() error                   { return nil }
