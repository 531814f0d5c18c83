package cache

import (
	"context"
	"sync"
	"time"
)

type item[V any] struct {
	value      V
	expiration time.Time
}

func (i item[V]) expired(now time.Time) bool {
	return now.After(i.expiration)
}

// Cache is a concurrency-safe map whose entries expire after a per-entry TTL.
type Cache[K comparable, V any] struct {
	items sync.Map
	now   func() time.Time
}

func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{now: time.Now}
}

// Set stores value under key for ttl.
func (c *Cache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.items.Store(key, item[V]{
		value:      value,
		expiration: c.now().Add(ttl),
	})
}

// Get returns the live value for key.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	val, ok := c.items.Load(key)
	if !ok {
		var zero V
		return zero, false
	}

	itm := val.(item[V])
	if itm.expired(c.now()) {
		c.items.Delete(key)
		var zero V
		return zero, false
	}

	return itm.value, true
}

// Pop removes key and returns its value if it was still live. Concurrent
// callers racing on the same key see at most one success.
func (c *Cache[K, V]) Pop(key K) (V, bool) {
	val, ok := c.items.LoadAndDelete(key)
	if !ok {
		var zero V
		return zero, false
	}

	itm := val.(item[V])
	if itm.expired(c.now()) {
		var zero V
		return zero, false
	}
	return itm.value, true
}

// Len counts stored entries, expired ones included until the next cleanup.
func (c *Cache[K, V]) Len() int {
	n := 0
	c.items.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Cleanup removes expired items.
func (c *Cache[K, V]) Cleanup() {
	now := c.now()
	c.items.Range(func(key, value any) bool {
		if value.(item[V]).expired(now) {
			c.items.Delete(key)
		}
		return true
	})
}

// RunJanitor calls Cleanup every interval until ctx is done.
func (c *Cache[K, V]) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Cleanup()
		}
	}
}
