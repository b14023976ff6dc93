// Package cache is an in-process TTL cache with stale-while-revalidate and
// negative caching. Concurrent misses for one key share a single load.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type Options struct {
	TTL                  time.Duration
	StaleWhileRevalidate time.Duration
	// NegativeTTL keeps failed loads; zero disables negative caching.
	NegativeTTL time.Duration
	// CacheError decides which load errors are cached for NegativeTTL.
	// Nil caches every error.
	CacheError func(error) bool
	MaxEntries int
}

// MetricsHooks observe lookups. Nil hooks are skipped.
type MetricsHooks struct {
	OnHit   func(key string)
	OnMiss  func(key string)
	OnStale func(key string)
	OnError func(key string, err error)
}

// Loader fetches the value for key on a miss.
type Loader[V any] func(ctx context.Context, key string) (V, error)

type entry[V any] struct {
	value     V
	err       error
	expiresAt time.Time
	staleAt   time.Time
}

func (e *entry[V]) negative() bool { return e.err != nil }

type Cache[V any] struct {
	mu      sync.Mutex
	items   map[string]*entry[V]
	order   []string
	opts    Options
	metrics MetricsHooks
	sf      singleflight.Group
	now     func() time.Time
}

func New[V any](opts Options, hooks MetricsHooks) *Cache[V] {
	return &Cache[V]{
		items:   make(map[string]*entry[V]),
		opts:    opts,
		metrics: hooks,
		now:     time.Now,
	}
}

// Get returns the cached value for key, loading it on a miss. A stale entry
// is served while one background refresh runs.
func (c *Cache[V]) Get(ctx context.Context, key string, loader Loader[V]) (V, error) {
	now := c.now()

	c.mu.Lock()
	e, ok := c.items[key]
	switch {
	case ok && now.Before(e.expiresAt):
		c.mu.Unlock()
		c.hook(c.metrics.OnHit, key)
		return e.value, e.err
	case ok && now.Before(e.staleAt):
		c.mu.Unlock()
		c.hook(c.metrics.OnStale, key)
		refreshCtx := context.WithoutCancel(ctx)
		go func() {
			_, _, _ = c.sf.Do("refresh:"+key, func() (interface{}, error) {
				c.load(refreshCtx, key, loader)
				return nil, nil
			})
		}()
		return e.value, e.err
	case ok:
		c.deleteLocked(key)
	}
	c.mu.Unlock()

	c.hook(c.metrics.OnMiss, key)
	res, _, _ := c.sf.Do(key, func() (interface{}, error) {
		return c.load(ctx, key, loader), nil
	})
	e = res.(*entry[V])
	return e.value, e.err
}

func (c *Cache[V]) load(ctx context.Context, key string, loader Loader[V]) *entry[V] {
	val, err := loader(ctx, key)
	now := c.now()
	e := &entry[V]{value: val, err: err}

	if err != nil {
		if c.metrics.OnError != nil {
			c.metrics.OnError(key, err)
		}
		if c.opts.NegativeTTL <= 0 || (c.opts.CacheError != nil && !c.opts.CacheError(err)) {
			return e
		}
		e.expiresAt = now.Add(c.opts.NegativeTTL)
		e.staleAt = e.expiresAt
	} else {
		e.expiresAt = now.Add(c.opts.TTL)
		e.staleAt = e.expiresAt.Add(c.opts.StaleWhileRevalidate)
	}

	c.mu.Lock()
	c.putLocked(key, e)
	c.mu.Unlock()
	return e
}

// Set stores a value directly, bypassing the loader.
func (c *Cache[V]) Set(key string, val V, ttl time.Duration) {
	now := c.now()
	e := &entry[V]{value: val, expiresAt: now.Add(ttl), staleAt: now.Add(ttl).Add(c.opts.StaleWhileRevalidate)}
	c.mu.Lock()
	c.putLocked(key, e)
	c.mu.Unlock()
}

// Peek returns a cached value without triggering a load. Stale entries are
// allowed; negative entries are not.
func (c *Cache[V]) Peek(key string) (V, bool) {
	var zero V
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok || e.negative() || c.now().After(e.staleAt) {
		return zero, false
	}
	return e.value, true
}

// Delete drops key so the next Get reloads it.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	c.deleteLocked(key)
	c.mu.Unlock()
}

// Len reports the number of stored entries, including expired ones not yet
// dropped.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[V]) putLocked(key string, e *entry[V]) {
	if _, exists := c.items[key]; !exists {
		c.order = append(c.order, key)
	}
	c.items[key] = e
	if c.opts.MaxEntries <= 0 {
		return
	}
	// FIFO eviction by insertion order.
	for len(c.items) > c.opts.MaxEntries && len(c.order) > 0 {
		victim := c.order[0]
		c.order = c.order[1:]
		delete(c.items, victim)
	}
}

func (c *Cache[V]) deleteLocked(key string) {
	if _, ok := c.items[key]; !ok {
		return
	}
	delete(c.items, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *Cache[V]) hook(fn func(string), key string) {
	if fn != nil {
		fn(key)
	}
}
