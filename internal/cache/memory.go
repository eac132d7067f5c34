package cache

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// call is an in-flight GetOrSet load shared by concurrent callers.
type call struct {
	done  chan struct{}
	value []byte
	err   error
}

// MemoryCache is an in-process Cache. Concurrent GetOrSet calls for the same
// missing key run the loader once.
type MemoryCache struct {
	clock clock.Clock

	mu       sync.RWMutex
	entries  map[string]cacheEntry
	inflight map[string]*call

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewMemoryCache creates a memory cache that sweeps expired entries every
// sweep interval.
func NewMemoryCache(sweep time.Duration, clk clock.Clock) *MemoryCache {
	if clk == nil {
		clk = clock.New()
	}
	if sweep <= 0 {
		sweep = time.Minute
	}
	c := &MemoryCache{
		clock:       clk,
		entries:     make(map[string]cacheEntry),
		inflight:    make(map[string]*call),
		stopCleanup: make(chan struct{}),
	}

	go c.cleanup(c.clock.Ticker(sweep))

	return c
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !c.clock.Now().Before(entry.expiresAt) {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), entry.value...), nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[key] = cacheEntry{
		value:     append([]byte(nil), value...),
		expiresAt: c.clock.Now().Add(ttl),
	}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	if value, err := c.Get(ctx, key); err == nil {
		return value, nil
	}

	c.mu.Lock()
	if cl, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-cl.done:
			if cl.err != nil {
				return nil, cl.err
			}
			return append([]byte(nil), cl.value...), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	cl := &call{done: make(chan struct{})}
	c.inflight[key] = cl
	c.mu.Unlock()

	cl.value, cl.err = fn()

	c.mu.Lock()
	delete(c.inflight, key)
	if cl.err == nil {
		c.entries[key] = cacheEntry{
			value:     append([]byte(nil), cl.value...),
			expiresAt: c.clock.Now().Add(ttl),
		}
	}
	c.mu.Unlock()
	close(cl.done)

	if cl.err != nil {
		return nil, cl.err
	}
	return cl.value, nil
}

func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the sweeper.
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
	return nil
}

func (c *MemoryCache) cleanup(ticker *clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *MemoryCache) removeExpired() {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

var _ Cache = (*MemoryCache)(nil)
