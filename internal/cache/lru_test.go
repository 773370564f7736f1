package cache

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestCache[T any](size int, ttl time.Duration) (*LRUCache[T], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[T](size, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUCacheEviction(t *testing.T) {
	c, _ := newTestCache[string](3, time.Hour)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")
	c.Get("key1") // key2 becomes least recently used
	c.Set("key4", "value4")

	if _, found := c.Get("key2"); found {
		t.Error("key2 should have been evicted")
	}
	for _, k := range []string{"key1", "key3", "key4"} {
		if _, found := c.Get(k); !found {
			t.Errorf("%s should still exist", k)
		}
	}
	if c.Size() != 3 {
		t.Errorf("size = %d, want 3", c.Size())
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	c, clock := newTestCache[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	clock.advance(30 * time.Second)
	c.Set("b", 3) // refreshes b's ttl

	clock.advance(31 * time.Second)
	if _, found := c.Get("a"); found {
		t.Error("a should have expired")
	}
	if v, found := c.Get("b"); !found || v != 3 {
		t.Errorf("b = %d, %v; want 3, true", v, found)
	}

	clock.advance(time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("size = %d, want 0", c.Size())
	}
}

func TestSetIfAbsent(t *testing.T) {
	c, clock := newTestCache[bool](10, time.Minute)

	if !c.SetIfAbsent("order-1", true) {
		t.Fatal("first insert must succeed")
	}
	if c.SetIfAbsent("order-1", true) {
		t.Fatal("duplicate insert must be rejected")
	}

	clock.advance(2 * time.Minute)
	if !c.SetIfAbsent("order-1", true) {
		t.Fatal("expired key must be insertable again")
	}
}

func TestPurge(t *testing.T) {
	c, _ := newTestCache[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Purge()
	if c.Size() != 0 {
		t.Errorf("size after purge = %d", c.Size())
	}
	c.Set("c", 3)
	if _, ok := c.Get("c"); !ok {
		t.Error("cache unusable after purge")
	}
}

func TestManagerCleanAll(t *testing.T) {
	a, clock := newTestCache[int](10, time.Minute)
	b := NewLRUCache[int](10, time.Minute)
	b.now = clock.now

	a.Set("x", 1)
	b.Set("y", 2)
	clock.advance(2 * time.Minute)

	m := NewManager(nil)
	m.Register(a)
	m.Register(b)
	if n := m.CleanAll(); n != 2 {
		t.Errorf("CleanAll() = %d, want 2", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
