package cache

import (
	"container/list"
	"encoding/json"
	"math"
	"sync"
	"time"
)

// DefaultMaxSize is the entry-count capacity used when Options.MaxSize is zero.
const DefaultMaxSize = 1000

// Options configures a Memory cache.
type Options[V any] struct {
	// MaxSize is the entry-count capacity. 0 means DefaultMaxSize.
	MaxSize int
	// Sizer estimates the stored size of a value in bytes. Any estimator
	// monotone with payload size works. nil means JSON-encoded length.
	Sizer func(V) int64
	// Clock returns the current time. nil means time.Now. Tests inject a
	// fake clock to drive expiry.
	Clock func() time.Time
}

// entry wraps a cached value with its creation instant and TTL.
// elem is the entry's position in the insertion-order list.
type entry[V any] struct {
	value   V
	size    int64
	created time.Time
	ttl     time.Duration
	elem    *list.Element
}

// Memory is a bounded in-process cache with per-entry TTL, insertion-order
// (FIFO) eviction, and hit/miss/set/delete accounting.
//
// Eviction is FIFO, not LRU: a Get never changes an entry's position in the
// order list. Expired entries are reaped lazily (at most one per Get) plus by
// the periodic Cleanup sweep.
//
// A single mutex guards the whole store. There is no per-key locking and no
// single-flight: two concurrent misses for the same key both fetch upstream
// and both write; last writer wins.
type Memory[V any] struct {
	mu      sync.Mutex
	entries map[string]*entry[V]
	order   *list.List // of string keys; front = oldest insertion
	maxSize int
	sizer   func(V) int64
	now     func() time.Time

	hits      uint64
	misses    uint64
	sets      uint64
	deletes   uint64
	evictions uint64
	memory    int64
}

// New creates a Memory cache with the given options.
func New[V any](opts Options[V]) *Memory[V] {
	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	sizer := opts.Sizer
	if sizer == nil {
		sizer = jsonSize[V]
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Memory[V]{
		entries: make(map[string]*entry[V]),
		order:   list.New(),
		maxSize: maxSize,
		sizer:   sizer,
		now:     now,
	}
}

// Set inserts or replaces the entry for key with the given TTL.
//
// Replacing an existing key is a same-slot update: the old entry's size is
// retired first and the key keeps its insertion-order position, so a replace
// never triggers eviction. A new key evicts oldest-first until the store is
// below capacity before inserting.
func (m *Memory[V]) Set(key string, value V, ttl time.Duration) {
	size := m.sizer(value)

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok {
		m.memory -= e.size
		e.value = value
		e.size = size
		e.created = m.now()
		e.ttl = ttl
		m.memory += size
		m.sets++
		return
	}

	for len(m.entries) >= m.maxSize {
		m.evictOldest()
	}

	e := &entry[V]{
		value:   value,
		size:    size,
		created: m.now(),
		ttl:     ttl,
	}
	e.elem = m.order.PushBack(key)
	m.entries[key] = e
	m.memory += size
	m.sets++
}

// Get returns the cached value for key if present and fresh.
//
// An entry found past its TTL is removed on the spot and counts as one miss
// and one delete. Each Get additionally reaps at most one expired entry from
// the front of the insertion order; it never scans the whole table.
func (m *Memory[V]) Get(key string) (V, bool) {
	var zero V

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		m.misses++
		m.reapOldest()
		return zero, false
	}
	if m.expired(e) {
		m.remove(key, e)
		m.misses++
		m.deletes++
		return zero, false
	}
	m.hits++
	m.reapOldest()
	return e.value, true
}

// Delete removes the entry for key, reporting whether a removal happened.
func (m *Memory[V]) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return false
	}
	m.remove(key, e)
	m.deletes++
	return true
}

// Clear removes all entries and returns the item count and estimated bytes
// freed. Size and memory reset to zero; the lifetime hit/miss/set/delete
// counters are not touched.
func (m *Memory[V]) Clear() (items int, bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items = len(m.entries)
	bytes = m.memory
	m.entries = make(map[string]*entry[V])
	m.order.Init()
	m.memory = 0
	return items, bytes
}

// Cleanup sweeps the whole store, removing every entry whose age exceeds its
// TTL regardless of access pattern, and returns the exact count removed.
// Intended to run on a fixed interval independent of traffic.
func (m *Memory[V]) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, e := range m.entries {
		if m.expired(e) {
			m.remove(key, e)
			m.deletes++
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of the cache counters with derived hit/miss rates.
func (m *Memory[V]) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		Hits:      m.hits,
		Misses:    m.misses,
		Sets:      m.sets,
		Deletes:   m.deletes,
		Evictions: m.evictions,
		Size:      len(m.entries),
		Memory:    m.memory,
	}
	if total := m.hits + m.misses; total > 0 {
		s.HitRate = roundRate(float64(m.hits) / float64(total) * 100)
		s.MissRate = roundRate(float64(m.misses) / float64(total) * 100)
	}
	return s
}

// Info returns per-key introspection without touching any counter.
func (m *Memory[V]) Info(key string) Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return Info{}
	}
	return Info{
		Exists: true,
		Age:    m.now().Sub(e.created),
		TTL:    e.ttl,
		Size:   e.size,
	}
}

// --- internals (callers hold m.mu) ---

func (m *Memory[V]) expired(e *entry[V]) bool {
	return m.now().Sub(e.created) > e.ttl
}

func (m *Memory[V]) remove(key string, e *entry[V]) {
	m.order.Remove(e.elem)
	delete(m.entries, key)
	m.memory -= e.size
}

// evictOldest drops the entry at the front of the insertion order.
func (m *Memory[V]) evictOldest() {
	front := m.order.Front()
	if front == nil {
		return
	}
	key := front.Value.(string)
	m.remove(key, m.entries[key])
	m.evictions++
}

// reapOldest removes the front entry if it happens to be expired. One probe
// only; the periodic sweep handles the rest.
func (m *Memory[V]) reapOldest() {
	front := m.order.Front()
	if front == nil {
		return
	}
	key := front.Value.(string)
	if e := m.entries[key]; m.expired(e) {
		m.remove(key, e)
		m.deletes++
	}
}

// jsonSize is the default size heuristic: the length of the JSON encoding.
func jsonSize[V any](v V) int64 {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return int64(len(b))
}

func roundRate(f float64) float64 {
	return math.Round(f*100) / 100
}
