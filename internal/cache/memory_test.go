package cache

import (
	"fmt"
	"testing"
	"time"
)

// fakeClock drives expiry deterministically.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(maxSize int, clock *fakeClock) *Memory[string] {
	return New[string](Options[string]{
		MaxSize: maxSize,
		Sizer:   func(v string) int64 { return int64(len(v)) },
		Clock:   clock.Now,
	})
}

func TestMemory_SetGet(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	m := newTestCache(100, clock)

	if _, ok := m.Get("missing"); ok {
		t.Error("should not find missing key")
	}

	m.Set("k1", "v1", time.Minute)
	v, ok := m.Get("k1")
	if !ok {
		t.Fatal("should find k1")
	}
	if v != "v1" {
		t.Errorf("value = %q, want %q", v, "v1")
	}
}

func TestMemory_TTLExpiry(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	m := newTestCache(100, clock)

	m.Set("k", "v", time.Minute)

	clock.Advance(59 * time.Second)
	if _, ok := m.Get("k"); !ok {
		t.Fatal("entry should still be fresh before TTL")
	}

	clock.Advance(2 * time.Second)
	if _, ok := m.Get("k"); ok {
		t.Error("entry should be expired past TTL")
	}

	// Expired read counts one miss and one delete, and removes the entry.
	s := m.Stats()
	if s.Misses != 1 {
		t.Errorf("misses = %d, want 1", s.Misses)
	}
	if s.Deletes != 1 {
		t.Errorf("deletes = %d, want 1", s.Deletes)
	}
	if s.Size != 0 {
		t.Errorf("size = %d, want 0", s.Size)
	}
}

func TestMemory_FIFOEviction(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	m := newTestCache(3, clock)

	m.Set("a", "1", time.Hour)
	m.Set("b", "2", time.Hour)
	m.Set("c", "3", time.Hour)

	// Touch "a" so an LRU policy would evict "b" instead. FIFO must still
	// evict "a", the oldest insertion.
	if _, ok := m.Get("a"); !ok {
		t.Fatal("a should be present")
	}

	m.Set("d", "4", time.Hour)

	if _, ok := m.Get("a"); ok {
		t.Error("oldest-inserted key should have been evicted")
	}
	for _, k := range []string{"b", "c", "d"} {
		if _, ok := m.Get(k); !ok {
			t.Errorf("%s should survive eviction", k)
		}
	}

	s := m.Stats()
	if s.Evictions != 1 {
		t.Errorf("evictions = %d, want 1", s.Evictions)
	}
	if s.Size != 3 {
		t.Errorf("size = %d, want 3", s.Size)
	}
}

func TestMemory_CapacityStaysBounded(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	m := newTestCache(10, clock)

	for i := 0; i < 25; i++ {
		m.Set(fmt.Sprintf("k%02d", i), "v", time.Hour)
	}

	s := m.Stats()
	if s.Size != 10 {
		t.Errorf("size = %d, want 10", s.Size)
	}
	if s.Evictions != 15 {
		t.Errorf("evictions = %d, want 15", s.Evictions)
	}
	// Survivors are the 10 most recent insertions.
	if _, ok := m.Get("k14"); ok {
		t.Error("k14 should be evicted")
	}
	if _, ok := m.Get("k15"); !ok {
		t.Error("k15 should be present")
	}
}

func TestMemory_ReplaceIsSameSlot(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	m := newTestCache(2, clock)

	m.Set("a", "1", time.Hour)
	m.Set("b", "22", time.Hour)

	// Replacing an existing key at capacity must not evict anything.
	m.Set("a", "333", time.Hour)

	s := m.Stats()
	if s.Evictions != 0 {
		t.Errorf("evictions = %d, want 0", s.Evictions)
	}
	if s.Size != 2 {
		t.Errorf("size = %d, want 2", s.Size)
	}
	// Old size retired, new size accounted: len("333") + len("22").
	if s.Memory != 5 {
		t.Errorf("memory = %d, want 5", s.Memory)
	}

	v, _ := m.Get("a")
	if v != "333" {
		t.Errorf("value = %q, want %q", v, "333")
	}
}

func TestMemory_ReplaceKeepsInsertionOrder(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	m := newTestCache(2, clock)

	m.Set("a", "1", time.Hour)
	m.Set("b", "2", time.Hour)
	m.Set("a", "3", time.Hour) // replace; "a" keeps its oldest slot

	m.Set("c", "4", time.Hour) // evicts "a", not "b"

	if _, ok := m.Get("a"); ok {
		t.Error("a should be evicted as oldest insertion")
	}
	if _, ok := m.Get("b"); !ok {
		t.Error("b should survive")
	}
}

func TestMemory_Delete(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	m := newTestCache(100, clock)

	m.Set("k", "v", time.Minute)
	if !m.Delete("k") {
		t.Error("delete of present key should report true")
	}
	if m.Delete("k") {
		t.Error("delete of absent key should report false")
	}
	if s := m.Stats(); s.Deletes != 1 {
		t.Errorf("deletes = %d, want 1", s.Deletes)
	}
}

func TestMemory_ClearKeepsLifetimeCounters(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	m := newTestCache(100, clock)

	m.Set("a", "xx", time.Minute)
	m.Set("b", "yyy", time.Minute)
	m.Get("a")
	m.Get("nope")

	items, bytes := m.Clear()
	if items != 2 {
		t.Errorf("items freed = %d, want 2", items)
	}
	if bytes != 5 {
		t.Errorf("bytes freed = %d, want 5", bytes)
	}

	s := m.Stats()
	if s.Size != 0 || s.Memory != 0 {
		t.Errorf("size/memory = %d/%d, want 0/0", s.Size, s.Memory)
	}
	if s.Hits != 1 || s.Misses != 1 || s.Sets != 2 {
		t.Errorf("lifetime counters reset by Clear: %+v", s)
	}
}

func TestMemory_Cleanup(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	m := newTestCache(100, clock)

	m.Set("short1", "v", time.Minute)
	m.Set("short2", "v", time.Minute)
	m.Set("long", "v", time.Hour)

	clock.Advance(2 * time.Minute)

	removed := m.Cleanup()
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if _, ok := m.Get("long"); !ok {
		t.Error("unexpired entry removed by cleanup")
	}
	if removed := m.Cleanup(); removed != 0 {
		t.Errorf("second cleanup removed = %d, want 0", removed)
	}
}

func TestMemory_LazyReapOnGet(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	m := newTestCache(100, clock)

	m.Set("stale", "v", time.Minute)
	m.Set("fresh", "v", time.Hour)
	clock.Advance(2 * time.Minute)

	// A Get for an unrelated key reaps the expired front entry; the reap
	// counts a delete but not a miss.
	if _, ok := m.Get("fresh"); !ok {
		t.Fatal("fresh should be present")
	}
	s := m.Stats()
	if s.Size != 1 {
		t.Errorf("size = %d, want 1 after lazy reap", s.Size)
	}
	if s.Deletes != 1 {
		t.Errorf("deletes = %d, want 1", s.Deletes)
	}
	if s.Misses != 0 {
		t.Errorf("misses = %d, want 0", s.Misses)
	}
}

func TestMemory_StatsRates(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	m := newTestCache(100, clock)

	// No requests yet: both rates are zero.
	s := m.Stats()
	if s.HitRate != 0 || s.MissRate != 0 {
		t.Errorf("rates = %v/%v, want 0/0", s.HitRate, s.MissRate)
	}

	m.Set("k", "v", time.Hour)
	m.Get("k")
	m.Get("k")
	m.Get("absent")

	s = m.Stats()
	if s.HitRate != 66.67 {
		t.Errorf("hit rate = %v, want 66.67", s.HitRate)
	}
	if s.MissRate != 33.33 {
		t.Errorf("miss rate = %v, want 33.33", s.MissRate)
	}
}

func TestMemory_Info(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	m := newTestCache(100, clock)

	if info := m.Info("nope"); info.Exists {
		t.Error("info for absent key should not exist")
	}

	m.Set("k", "value", 10*time.Minute)
	clock.Advance(3 * time.Minute)

	info := m.Info("k")
	if !info.Exists {
		t.Fatal("info should exist")
	}
	if info.Age != 3*time.Minute {
		t.Errorf("age = %v, want 3m", info.Age)
	}
	if info.TTL != 10*time.Minute {
		t.Errorf("ttl = %v, want 10m", info.TTL)
	}
	if info.Size != 5 {
		t.Errorf("size = %d, want 5", info.Size)
	}

	// Introspection leaves the counters alone.
	if s := m.Stats(); s.Hits != 0 || s.Misses != 0 {
		t.Errorf("Info touched counters: %+v", s)
	}
}

func TestMemory_DefaultSizer(t *testing.T) {
	t.Parallel()
	m := New[map[string]int](Options[map[string]int]{MaxSize: 10})

	m.Set("k", map[string]int{"distance": 42}, time.Minute)

	info := m.Info("k")
	if info.Size != int64(len(`{"distance":42}`)) {
		t.Errorf("size = %d, want JSON length %d", info.Size, len(`{"distance":42}`))
	}
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	m := New[int](Options[int]{MaxSize: 50})

	done := make(chan struct{})
	for g := 0; g < 4; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k%d", i%100)
				m.Set(key, i, time.Minute)
				m.Get(key)
				if i%50 == 0 {
					m.Cleanup()
					m.Stats()
				}
			}
		}(g)
	}
	for g := 0; g < 4; g++ {
		<-done
	}

	if s := m.Stats(); s.Size > 50 {
		t.Errorf("size = %d exceeds capacity", s.Size)
	}
}
