package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

// sweepInterval bounds how often writes scan for expired entries.
const sweepInterval = time.Minute

// MemoryCache provides idempotency keys and cart storage for single-node
// deployments. Entries expire after ttl and are purged by a sweep that runs
// on write at most once per sweep interval.
type MemoryCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	keys      map[string]time.Time
	carts     map[string]cartEntry
	now       func() time.Time
	lastSweep time.Time
}

type cartEntry struct {
	cart      *domain.Cart
	expiresAt time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = idempotencyKeyTTL
	}
	return &MemoryCache{
		ttl:   ttl,
		keys:  make(map[string]time.Time),
		carts: make(map[string]cartEntry),
		now:   time.Now,
	}
}

func (c *MemoryCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepLocked(now)
	if expiresAt, ok := c.keys[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	c.keys[key] = now.Add(c.ttl)
	return true, nil
}

func (c *MemoryCache) ReleaseIdempotency(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
	return nil
}

func (c *MemoryCache) LoadCart(ctx context.Context, terminalID string) (*domain.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.carts[terminalID]
	if !ok || !c.now().Before(e.expiresAt) {
		delete(c.carts, terminalID)
		return domain.NewCart(), nil
	}
	return e.cart.Clone(), nil
}

func (c *MemoryCache) SaveCart(ctx context.Context, terminalID string, cart *domain.Cart) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepLocked(now)
	if cart.IsEmpty() {
		delete(c.carts, terminalID)
		return nil
	}
	c.carts[terminalID] = cartEntry{cart: cart.Clone(), expiresAt: now.Add(c.ttl)}
	return nil
}

func (c *MemoryCache) DeleteCart(ctx context.Context, terminalID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.carts, terminalID)
	return nil
}

// sweepLocked drops expired keys and carts. c.mu must be held.
func (c *MemoryCache) sweepLocked(now time.Time) {
	interval := sweepInterval
	if c.ttl < interval {
		interval = c.ttl
	}
	if now.Sub(c.lastSweep) < interval {
		return
	}
	c.lastSweep = now

	for key, expiresAt := range c.keys {
		if !now.Before(expiresAt) {
			delete(c.keys, key)
		}
	}
	for terminalID, e := range c.carts {
		if !now.Before(e.expiresAt) {
			delete(c.carts, terminalID)
		}
	}
}
