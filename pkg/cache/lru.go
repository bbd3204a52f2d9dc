// Package cache provides the LRU+TTL caches that sit in front of the store.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Entry is a cached value with its bookkeeping.
type Entry[V any] struct {
	Value        V
	InsertedAt   time.Time
	LastAccessed time.Time
	AccessCount  uint64
}

type node[K comparable, V any] struct {
	key   K
	entry Entry[V]
}

// Option configures an LRU.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// LRU is a fixed-capacity least-recently-used cache whose entries also
// expire after a TTL. The zero TTL disables expiry. Safe for concurrent use.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time

	items map[K]*list.Element
	// front = most recently used
	order *list.List

	hits      uint64
	misses    uint64
	evictions uint64
}

// NewLRU creates a cache holding at most capacity entries (minimum 1).
func NewLRU[K comparable, V any](capacity int, ttl time.Duration, opts ...Option) *LRU[K, V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if capacity < 1 {
		capacity = 1
	}
	return &LRU[K, V]{
		capacity: capacity,
		ttl:      ttl,
		now:      o.now,
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
	}
}

func (c *LRU[K, V]) expired(e *Entry[V], now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.InsertedAt) >= c.ttl
}

// Get returns the value for key and marks it most recently used. Expired
// entries are removed and reported as a miss.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	n := el.Value.(*node[K, V])
	now := c.now()
	if c.expired(&n.entry, now) {
		c.removeElement(el)
		c.misses++
		return zero, false
	}
	n.entry.LastAccessed = now
	n.entry.AccessCount++
	c.order.MoveToFront(el)
	c.hits++
	return n.entry.Value, true
}

// Peek returns the value without touching recency or counters.
func (c *LRU[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	n := el.Value.(*node[K, V])
	if c.expired(&n.entry, c.now()) {
		return zero, false
	}
	return n.entry.Value, true
}

// Entry returns a copy of the bookkeeping for key, if live.
func (c *LRU[K, V]) Entry(key K) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return Entry[V]{}, false
	}
	n := el.Value.(*node[K, V])
	if c.expired(&n.entry, c.now()) {
		return Entry[V]{}, false
	}
	return n.entry, true
}

// Insert stores value under key as the most recently used entry. An existing
// entry for key is replaced. When the cache is full, expired entries are
// dropped first and then the least recently used entry is evicted.
func (c *LRU[K, V]) Insert(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
	if len(c.items) >= c.capacity {
		c.sweepLocked(now)
	}
	if len(c.items) >= c.capacity {
		if back := c.order.Back(); back != nil {
			c.removeElement(back)
			c.evictions++
		}
	}
	n := &node[K, V]{key: key, entry: Entry[V]{Value: value, InsertedAt: now, LastAccessed: now}}
	c.items[key] = c.order.PushFront(n)
}

// Remove deletes key and returns the value it held.
func (c *LRU[K, V]) Remove(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	n := el.Value.(*node[K, V])
	c.removeElement(el)
	return n.entry.Value, true
}

// Clear drops every entry and all recency state.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*list.Element, c.capacity)
	c.order.Init()
}

// CleanupExpired removes every entry whose TTL has elapsed and returns how
// many were removed.
func (c *LRU[K, V]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.now())
}

func (c *LRU[K, V]) sweepLocked(now time.Time) int {
	if c.ttl <= 0 {
		return 0
	}
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if c.expired(&el.Value.(*node[K, V]).entry, now) {
			c.removeElement(el)
			removed++
		}
		el = prev
	}
	return removed
}

func (c *LRU[K, V]) removeElement(el *list.Element) {
	n := c.order.Remove(el).(*node[K, V])
	delete(c.items, n.key)
}

// Len returns the number of stored entries, including expired ones not yet
// swept.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns keys from most to least recently used.
func (c *LRU[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]K, 0, len(c.items))
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*node[K, V]).key)
	}
	return keys
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Len       int    `json:"len"`
	Capacity  int    `json:"capacity"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Len: len(c.items), Capacity: c.capacity, Hits: c.hits, Misses: c.misses, Evictions: c.evictions}
}
