package cache_test

import (
	"testing"
	"time"

	"github.com/quietridge/copilot-core/cache"
)

type fakeClock struct{ ms int64 }

func (f *fakeClock) NowMs() int64   { return f.ms }
func (f *fakeClock) Now() time.Time { return time.UnixMilli(f.ms) }

func TestFreshnessExpiresAfterTTL(t *testing.T) {
	fc := &fakeClock{ms: 1_000_000}
	c := cache.NewWithClock[string](10, 1_000, fc)
	c.Put("k", "v")

	if _, ok := c.GetFresh("k"); !ok {
		t.Fatalf("expected fresh hit immediately after put")
	}

	fc.ms += 1_001
	if _, ok := c.GetFresh("k"); ok {
		t.Fatalf("expected stale miss once past TTL")
	}

	// The raw entry is still there — GetFresh just refuses to serve it.
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("expected Get (freshness-agnostic) to still find the entry")
	}
}

func TestPutEvictsOldestByInsertionOrder(t *testing.T) {
	c := cache.New[int](2, 60_000)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3) // evicts "a", the oldest inserted

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected 'a' to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatalf("expected 'b' to still be present")
	}
	if c.Len() != 2 {
		t.Fatalf("expected size 2, got %d", c.Len())
	}
}

func TestGetDoesNotAffectEvictionOrder(t *testing.T) {
	c := cache.New[int](2, 60_000)
	c.Put("a", 1)
	c.Put("b", 2)

	// Repeatedly touching "a" must not save it from FIFO eviction.
	c.Get("a")
	c.Get("a")

	c.Put("c", 3)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected 'a' to be evicted despite recent Get calls (no LRU-by-recency)")
	}
}

func TestOverwriteDoesNotGrowSize(t *testing.T) {
	c := cache.New[int](2, 60_000)
	c.Put("a", 1)
	c.Put("a", 2)
	if c.Len() != 1 {
		t.Fatalf("expected size 1 after overwrite, got %d", c.Len())
	}
	entry, ok := c.Get("a")
	if !ok || entry.Value != 2 {
		t.Fatalf("expected overwritten value 2, got %+v ok=%v", entry, ok)
	}
}

func TestSizeNeverExceedsMaxAcrossManyPuts(t *testing.T) {
	c := cache.New[int](3, 60_000)
	for i := 0; i < 50; i++ {
		c.Put(string(rune('a'+i%26)), i)
		if c.Len() > 3 {
			t.Fatalf("size exceeded maxEntries: %d", c.Len())
		}
	}
}
