// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache holds search results keyed by request shape. The in-memory
// Cache is the first tier; RedisStore is an optional shared second tier.
package cache

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultTTL is used when a cache is built with a non-positive TTL.
const DefaultTTL = time.Hour

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_fetcher_cache_hits_total",
		Help: "Cache hits by tier (memory, redis)",
	}, []string{"tier"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_fetcher_cache_misses_total",
		Help: "Cache misses by tier (memory, redis)",
	}, []string{"tier"})

	cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_fetcher_cache_errors_total",
		Help: "Cache backend errors by operation",
	}, []string{"operation"})
)

// Key identifies a search by everything that shapes its result.
type Key struct {
	Query      string
	MaxResults int
	Policy     string
	Sorted     bool
	Enriched   bool
}

// String renders the key deterministically. The query is quoted so no
// query text can collide with the separators.
func (k Key) String() string {
	return "search:" + strconv.Quote(k.Query) +
		":max=" + strconv.Itoa(k.MaxResults) +
		":policy=" + k.Policy +
		":sorted=" + strconv.FormatBool(k.Sorted) +
		":enriched=" + strconv.FormatBool(k.Enriched)
}

// Entry is a stored value and its expiry.
type Entry[V any] struct {
	Value     V         `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry is past its expiry at now.
func (e Entry[V]) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Cache is an in-memory TTL cache safe for concurrent use. Expired entries
// are dropped when read or by EvictExpired.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]Entry[V]
	ttl     time.Duration
	enabled bool
	now     func() time.Time
}

// New returns a cache. A disabled cache accepts Set calls but stores
// nothing, so every Get misses.
func New[V any](ttl time.Duration, enabled bool) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{
		entries: make(map[string]Entry[V]),
		ttl:     ttl,
		enabled: enabled,
		now:     time.Now,
	}
}

// TTL returns the cache's entry lifetime.
func (c *Cache[V]) TTL() time.Duration { return c.ttl }

// Enabled reports whether the cache stores values.
func (c *Cache[V]) Enabled() bool { return c.enabled }

// Get returns the value for key if present and unexpired.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if !c.enabled {
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		cacheMisses.WithLabelValues("memory").Inc()
		return zero, false
	}
	if e.Expired(c.now()) {
		delete(c.entries, key)
		cacheMisses.WithLabelValues("memory").Inc()
		return zero, false
	}
	cacheHits.WithLabelValues("memory").Inc()
	return e.Value, true
}

// Set stores value under key for the cache's TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetUntil(key, value, c.now().Add(c.ttl))
}

// SetUntil stores value under key until expiresAt. Used when promoting an
// entry from the shared tier so it keeps its original expiry.
func (c *Cache[V]) SetUntil(key string, value V, expiresAt time.Time) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry[V]{Value: value, ExpiresAt: expiresAt}
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry[V])
}

// EvictExpired removes expired entries and returns how many were removed.
func (c *Cache[V]) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if e.Expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
