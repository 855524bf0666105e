package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Item is a cached value with expiration
type Item[V any] struct {
	Value     V
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired checks if the cache item has expired at the given time
func (item *Item[V]) IsExpired(now time.Time) bool {
	return !now.Before(item.ExpiresAt)
}

// Cache is a thread-safe in-memory cache with TTL support. Expired entries are
// hidden on read and removed by a background sweep until Stop is called.
type Cache[V any] struct {
	items           map[string]*Item[V]
	mu              sync.RWMutex
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once

	now func() time.Time
}

// New creates a new cache with default TTL
func New[V any](defaultTTL time.Duration) *Cache[V] {
	interval := defaultTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	c := &Cache[V]{
		items:           make(map[string]*Item[V]),
		defaultTTL:      defaultTTL,
		cleanupInterval: interval,
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
	}

	go c.cleanup()

	return c
}

// Get retrieves a value from cache
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero V
	item, exists := c.items[key]
	if !exists || item.IsExpired(c.now()) {
		return zero, false
	}

	return item.Value, true
}

// Set stores a value in cache with default TTL
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value in cache with custom TTL
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.items[key] = &Item[V]{
		Value:     value,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// Delete removes a key from cache
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear removes all items from cache
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*Item[V])
}

// Invalidate removes keys with the given prefix, or every expired item when the
// prefix is empty.
func (c *Cache[V]) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.items {
		if prefix == "" {
			if item.IsExpired(now) {
				delete(c.items, key)
			}
			continue
		}
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
}

// GetOrSet retrieves from cache or calls fallback and caches its result.
// Errors are not cached.
func (c *Cache[V]) GetOrSet(ctx context.Context, key string, fallback func(context.Context) (V, error)) (V, error) {
	if value, found := c.Get(key); found {
		return value, nil
	}

	value, err := fallback(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	c.Set(key, value)
	return value, nil
}

// cleanup periodically removes expired items
func (c *Cache[V]) cleanup() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Invalidate("")
		case <-c.stopCleanup:
			return
		}
	}
}

// Stop stops the cleanup goroutine. Safe to call more than once.
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
}

// Size returns the number of items in cache, expired or not
func (c *Cache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
