// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(ttl time.Duration) (*Cache[[]string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[[]string](ttl, true)
	c.now = clock.now
	return c, clock
}

func TestCache_RoundTrip(t *testing.T) {
	c, _ := newTestCache(time.Hour)
	c.Set("k", []string{"a", "b"})

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, c.Len())
}

func TestCache_ExpiredReadEvicts(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	c.Set("k", []string{"a"})

	clock.advance(59 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clock.advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_EvictExpired(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	c.Set("old", []string{"a"})
	clock.advance(30 * time.Second)
	c.Set("new", []string{"b"})
	clock.advance(45 * time.Second)

	assert.Equal(t, 1, c.EvictExpired())
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("new")
	assert.True(t, ok)
}

func TestCache_Clear(t *testing.T) {
	c, _ := newTestCache(time.Hour)
	c.Set("a", nil)
	c.Set("b", nil)
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCache_Disabled(t *testing.T) {
	c := New[int](time.Hour, false)
	c.Set("k", 1)
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Enabled())
}

func TestCache_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, New[int](0, true).TTL())
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int](time.Hour, true)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", j%10)
				c.Set(key, j)
				c.Get(key)
				if j%25 == 0 {
					c.EvictExpired()
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, c.Len())
}

func TestKey_String(t *testing.T) {
	base := Key{Query: "graph networks", MaxResults: 10, Policy: "standard", Sorted: true, Enriched: true}
	assert.Equal(t, `search:"graph networks":max=10:policy=standard:sorted=true:enriched=true`, base.String())
	assert.Equal(t, base.String(), Key{Query: "graph networks", MaxResults: 10, Policy: "standard", Sorted: true, Enriched: true}.String())

	variants := []Key{
		{Query: "graph networks", MaxResults: 20, Policy: "standard", Sorted: true, Enriched: true},
		{Query: "graph networks", MaxResults: 10, Policy: "thorough", Sorted: true, Enriched: true},
		{Query: "graph networks", MaxResults: 10, Policy: "standard", Sorted: false, Enriched: true},
		{Query: "graph networks", MaxResults: 10, Policy: "standard", Sorted: true, Enriched: false},
		{Query: `graph networks":max=10`, MaxResults: 10, Policy: "standard", Sorted: true, Enriched: true},
	}
	for _, v := range variants {
		assert.NotEqual(t, base.String(), v.String())
	}
}
