package costs

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type priceEntry struct {
	price     decimal.Decimal
	expiresAt time.Time
}

// priceCache holds resolved rates keyed by region/instanceType.
// Expiry is checked on read; the key space is a handful of instance
// types, so there is no background sweep.
type priceCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]priceEntry
}

func newPriceCache(ttl time.Duration, now func() time.Time) *priceCache {
	return &priceCache{
		ttl:   ttl,
		now:   now,
		items: make(map[string]priceEntry),
	}
}

func (c *priceCache) get(key string) (decimal.Decimal, bool) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return decimal.Zero, false
	}

	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		if current, still := c.items[key]; still && c.now().After(current.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return decimal.Zero, false
	}
	return entry.price, true
}

func (c *priceCache) set(key string, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = priceEntry{price: price, expiresAt: c.now().Add(c.ttl)}
}

func (c *priceCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
