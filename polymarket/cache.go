package polymarket

import (
	"sync"
	"time"
)

type cacheEntry struct {
	price float64
	at    time.Time
}

// PriceCache deduplicates near-simultaneous quote lookups. Entries are
// keyed by (token, side) and expire after a short TTL. Only successful
// fetches are stored so a fresh failure is never masked.
type PriceCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[[2]string]cacheEntry
}

// NewPriceCache creates a price cache with the given entry lifetime.
func NewPriceCache(ttl time.Duration) *PriceCache {
	return &PriceCache{
		ttl:     ttl,
		entries: make(map[[2]string]cacheEntry),
	}
}

// Get returns a cached price if it has not expired.
func (p *PriceCache) Get(tokenID, side string) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[[2]string{tokenID, side}]
	if !ok || time.Since(e.at) >= p.ttl {
		return 0, false
	}
	return e.price, true
}

// Put stores a successfully fetched price.
func (p *PriceCache) Put(tokenID, side string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[[2]string{tokenID, side}] = cacheEntry{price: price, at: time.Now()}
}
