// Package statuscache implements the bounded, TTL-based status
// response cache described in spec.md §4.J: one entry per (backend
// address, client protocol version) pair, single-flight collapsed so
// a thundering herd of pings against a slow backend only dials once.
package statuscache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"golang.org/x/sync/singleflight"
)

// Fetcher dials the backend and returns the status JSON a fresh
// lookup should populate the cache with.
type Fetcher func(ctx context.Context) (string, error)

type entry struct {
	key       string
	response  string
	expiresAt time.Time
}

// Cache is a bounded, TTL-expiring, single-flight status cache.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	maxSize  int
	entries  map[string]*entry
	order    deque.Deque // of *entry in insertion order, oldest at front; a refreshed entry keeps its place
	inflight singleflight.Group
}

// New returns a Cache with the given default TTL and maximum entry
// count (spec.md §6 cache.status_ttl_seconds / max_status_entries).
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]*entry),
	}
}

// Key derives the cache key for a backend address and protocol
// version (spec.md §4.J: "hash(backend_address_0, protocol_version)").
func Key(backendAddress string, protocolVersion int) string {
	return fmt.Sprintf("%s|%d", backendAddress, protocolVersion)
}

// Get returns a cached status response for key if present and not
// expired, calling fetch at most once per key even when many callers
// race for the same miss (spec.md §8 property 6/7).
func (c *Cache) Get(ctx context.Context, key string, ttlOverride time.Duration, fetch Fetcher) (string, error) {
	if cached, ok := c.lookup(key); ok {
		return cached, nil
	}

	result, err, _ := c.inflight.Do(key, func() (interface{}, error) {
		if cached, ok := c.lookup(key); ok {
			return cached, nil
		}
		resp, err := fetch(ctx)
		if err != nil {
			return "", err
		}
		ttl := c.ttl
		if ttlOverride > 0 {
			ttl = ttlOverride
		}
		c.store(key, resp, ttl)
		return resp, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *Cache) lookup(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.response, true
}

func (c *Cache) store(key, response string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpiredLocked()

	if old, exists := c.entries[key]; exists {
		old.response = response
		old.expiresAt = time.Now().Add(ttl)
		return
	}

	e := &entry{key: key, response: response, expiresAt: time.Now().Add(ttl)}
	c.entries[key] = e
	c.order.PushBack(e)

	for c.maxSize > 0 && c.order.Len() > c.maxSize {
		oldest := c.order.PopFront().(*entry)
		if current, ok := c.entries[oldest.key]; ok && current == oldest {
			delete(c.entries, oldest.key)
		}
	}
}

func (c *Cache) evictExpiredLocked() {
	now := time.Now()
	for c.order.Len() > 0 {
		front := c.order.Front().(*entry)
		if now.Before(front.expiresAt) {
			break
		}
		c.order.PopFront()
		if current, ok := c.entries[front.key]; ok && current == front {
			delete(c.entries, front.key)
		}
	}
}

// Len returns the number of live entries, for tests and telemetry.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
