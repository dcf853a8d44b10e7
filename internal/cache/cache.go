package cache

import (
	"sync"
	"time"
)

const defaultTTL = 5 * time.Second

// TTL is an in-process map whose entries expire ttl after they were written.
// Expired entries are dropped when read and by Sweep.
type TTL[V any] struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]item[V]
	now func() time.Time
}

type item[V any] struct {
	val     V
	expires time.Time
}

func NewTTL[V any](ttl time.Duration) *TTL[V] {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &TTL[V]{ttl: ttl, m: make(map[string]item[V]), now: time.Now}
}

func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.m[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(it.expires) {
		delete(c.m, key)
		var zero V
		return zero, false
	}
	return it.val, true
}

func (c *TTL[V]) Set(key string, val V) {
	c.mu.Lock()
	c.m[key] = item[V]{val: val, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	clear(c.m)
	c.mu.Unlock()
}

// Sweep removes expired entries and reports how many were removed.
func (c *TTL[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for k, it := range c.m {
		if !now.Before(it.expires) {
			delete(c.m, k)
			n++
		}
	}
	return n
}

func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}
