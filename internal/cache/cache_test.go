package cache

import (
	"context"
	"testing"
	"time"
)

func TestLRUCacheGetSet(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[string](2, time.Minute)

	c.Set(ctx, "a", "1")
	c.Set(ctx, "b", "2")
	if v, ok := c.Get(ctx, "a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}

	// "b" is now least recently used and gets evicted.
	c.Set(ctx, "c", "3")
	if _, ok := c.Get(ctx, "b"); ok {
		t.Error("expected b to be evicted")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}

	c.Delete(ctx, "a")
	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("expected a to be deleted")
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[int](10, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(ctx, "x", 1)
	c.Set(ctx, "y", 2)

	now = now.Add(2 * time.Minute)
	c.Set(ctx, "z", 3)

	if removed := c.CleanExpired(); removed != 2 {
		t.Errorf("CleanExpired() = %d, want 2", removed)
	}
	if _, ok := c.Get(ctx, "z"); !ok {
		t.Error("z should still be cached")
	}
}

func TestKey(t *testing.T) {
	a := Key("insights", "prompt")
	if len(a) != 64 {
		t.Fatalf("key length = %d, want 64", len(a))
	}
	if a != Key("insights", "prompt") {
		t.Error("key is not deterministic")
	}
	if a == Key("insightsp", "rompt") {
		t.Error("part boundaries must affect the key")
	}
}

func TestManagerStop(t *testing.T) {
	m := NewManager()
	m.Register(NewLRUCache[string](1, time.Millisecond))
	m.StartCleanup(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	m.Stop()
}
