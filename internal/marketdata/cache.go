package marketdata

import (
	"context"
	"sync"
	"time"

	"squeeze-screener/internal/frame"
)

type cachedTable struct {
	table     *frame.Table
	expiresAt time.Time
}

// BarCache wraps a Fetcher with a TTL cache so repeated runs within a
// scheduling window reuse downloaded bars.
type BarCache struct {
	mu    sync.RWMutex
	inner Fetcher
	cache map[string]*cachedTable
	ttl   time.Duration
}

// NewBarCache wraps inner with the given TTL.
func NewBarCache(inner Fetcher, ttl time.Duration) *BarCache {
	return &BarCache{
		inner: inner,
		cache: make(map[string]*cachedTable),
		ttl:   ttl,
	}
}

func (bc *BarCache) Name() string { return bc.inner.Name() }

func (bc *BarCache) get(symbol string) *frame.Table {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	cached, exists := bc.cache[symbol]
	if !exists {
		return nil
	}
	if time.Now().After(cached.expiresAt) {
		return nil
	}
	return cached.table
}

// FetchDaily serves from cache when fresh, otherwise delegates and
// stores the result.
func (bc *BarCache) FetchDaily(ctx context.Context, symbol string, days int) (*frame.Table, error) {
	if t := bc.get(symbol); t != nil {
		return t, nil
	}

	t, err := bc.inner.FetchDaily(ctx, symbol, days)
	if err != nil {
		return nil, err
	}

	bc.mu.Lock()
	bc.cache[symbol] = &cachedTable{table: t, expiresAt: time.Now().Add(bc.ttl)}
	bc.mu.Unlock()
	return t, nil
}

// Clear drops all cached tables.
func (bc *BarCache) Clear() {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.cache = make(map[string]*cachedTable)
}

// CleanupExpired removes entries whose TTL has lapsed.
func (bc *BarCache) CleanupExpired() {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	now := time.Now()
	for key, cached := range bc.cache {
		if now.After(cached.expiresAt) {
			delete(bc.cache, key)
		}
	}
}
