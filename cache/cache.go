// Package cache provides the shared tile cache backing whole-slide reads.
//
// The cache maps (plane, level, column, row) keys to decoded tile buffers
// with explicit reference counting: an entry handed out by Get or Put stays
// alive until every holder calls Release, and only entries with no
// outstanding references count against the byte budget or are eligible for
// eviction. The cache knows nothing about image formats.
package cache

import (
	"sync"
	"sync/atomic"
)

// DefaultCapacity is the default eviction budget in bytes.
const DefaultCapacity = 32 << 20

// planeCounter issues unique plane identifiers so that multiple slides can
// share one cache without key collisions.
var planeCounter atomic.Uint64

// NextPlane returns a process-unique plane identifier for cache keys.
func NextPlane() uint64 {
	return planeCounter.Add(1)
}

// Key identifies one cached tile.
type Key struct {
	// Plane distinguishes slides sharing the cache; see NextPlane.
	Plane uint64

	// Level is the pyramid level of the tile.
	Level int32

	// Col and Row are the tile grid indices.
	Col int64
	Row int64
}

// Entry is a reference-counted decoded tile buffer.
//
// An Entry returned by Get or Put carries one reference owned by the caller,
// who must call Release exactly once when done compositing. The pixel data
// remains valid until then even if the cache slot has been replaced or the
// entry evicted.
type Entry struct {
	pix  []uint32
	size int64

	c   *Cache
	key Key

	// Guarded by c.mu.
	refs    int
	node    *lruNode // non-nil only while evictable and still mapped
	dropped bool     // no longer in the map (replaced); skip LRU bookkeeping
}

// Pix returns the tile's pixel words. The slice must not be retained after
// Release.
func (e *Entry) Pix() []uint32 {
	return e.pix
}

// Size returns the entry's byte size as declared at Put.
func (e *Entry) Size() int64 {
	return e.size
}

// Release drops one reference. When the last reference is gone the entry
// becomes eligible for eviction, and the cache trims itself back under
// budget if needed. Calling Release more times than references were taken
// corrupts the accounting; pair every Get/Put with exactly one Release.
func (e *Entry) Release() {
	c := e.c
	c.mu.Lock()
	e.refs--
	if e.refs == 0 && !e.dropped {
		e.node = c.lru.PushFront(e.key)
		c.evictable += e.size
		c.evict()
	}
	c.mu.Unlock()
}

// Stats contains cache counters for monitoring.
type Stats struct {
	Len            int     // entries currently mapped
	Capacity       int64   // eviction budget in bytes
	EvictableBytes int64   // bytes held by unreferenced entries
	Hits           uint64  // successful Get calls
	Misses         uint64  // failed Get calls
	Evictions      uint64  // entries reclaimed by the budget
	HitRate        float64 // Hits / (Hits + Misses)
}

// Cache is a bounded, thread-safe tile store with reference-counted entries.
//
// Eviction is least-recently-released over unreferenced entries only:
// referenced entries never count against the budget and are never evicted,
// so the cache may transiently exceed capacity while tiles are pinned.
type Cache struct {
	mu        sync.Mutex
	entries   map[Key]*Entry
	lru       lruList
	evictable int64
	capacity  int64

	// Statistics (atomic for zero-allocation reads)
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a cache with the given eviction budget in bytes.
// If capacity <= 0, DefaultCapacity is used.
func New(capacity int64) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		entries:  make(map[Key]*Entry),
		capacity: capacity,
	}
}

// Get returns a live reference to the cached entry for key, or (nil, false).
// On a hit the entry's reference count is incremented and the caller must
// Release it. Get never blocks on I/O.
func (c *Cache) Get(key Key) (*Entry, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}
	if e.refs == 0 {
		// Entry was evictable; pin it again.
		c.lru.Remove(e.node)
		e.node = nil
		c.evictable -= e.size
	}
	e.refs++
	c.mu.Unlock()

	c.hits.Add(1)
	return e, true
}

// Put inserts a newly decoded buffer under key, transferring ownership of
// pix to the cache, and returns a referenced handle the caller must Release.
//
// If an entry already exists for the key — two callers raced on the same
// decode — the slot is last-write-wins, but handles already issued against
// the earlier buffer stay valid until released. The duplicate buffer is a
// missed de-duplication, not a correctness problem.
func (c *Cache) Put(key Key, pix []uint32, size int64) *Entry {
	e := &Entry{
		pix:  pix,
		size: size,
		c:    c,
		key:  key,
		refs: 1,
	}

	c.mu.Lock()
	if old, ok := c.entries[key]; ok {
		old.dropped = true
		if old.refs == 0 {
			c.lru.Remove(old.node)
			old.node = nil
			c.evictable -= old.size
		}
	}
	c.entries[key] = e
	c.mu.Unlock()

	return e
}

// evict reclaims least-recently-released unreferenced entries until the
// evictable byte total fits the budget. Called with c.mu held.
func (c *Cache) evict() {
	for c.evictable > c.capacity {
		key, ok := c.lru.RemoveOldest()
		if !ok {
			// Everything left is pinned; the budget stays exceeded.
			return
		}
		e := c.entries[key]
		delete(c.entries, key)
		c.evictable -= e.size
		e.node = nil
		e.dropped = true
		c.evictions.Add(1)
	}
}

// DropPlane removes every entry belonging to plane, reclaiming a closed
// slide's tiles immediately instead of waiting for byte pressure. Handles
// already issued against dropped entries stay valid until released.
func (c *Cache) DropPlane(plane uint64) {
	c.mu.Lock()
	for k, e := range c.entries {
		if k.Plane != plane {
			continue
		}
		delete(c.entries, k)
		e.dropped = true
		if e.refs == 0 {
			c.lru.Remove(e.node)
			e.node = nil
			c.evictable -= e.size
		}
	}
	c.mu.Unlock()
}

// Capacity returns the eviction budget in bytes.
func (c *Cache) Capacity() int64 {
	return c.capacity
}

// Len returns the number of mapped entries, referenced or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns current cache statistics.
func (c *Cache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	c.mu.Lock()
	length := len(c.entries)
	evictable := c.evictable
	c.mu.Unlock()

	return Stats{
		Len:            length,
		Capacity:       c.capacity,
		EvictableBytes: evictable,
		Hits:           hits,
		Misses:         misses,
		Evictions:      c.evictions.Load(),
		HitRate:        hitRate,
	}
}
