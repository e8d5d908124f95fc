package resourcefactory

import (
	"sync"
	"sync/atomic"
	"time"
)

// Descriptor is the per-resource record: the canonical-path hash (stable
// identity), a reference count, an opaque handle to the live object
// produced by the handler, and a back-pointer to the type that created it.
// Created on first successful Get; mutated only by Get, Release, and
// Reload; destroyed when refcount reaches zero.
//
// GetDescriptor returns a Descriptor by value: a snapshot, not a live
// handle, matching spec §4.4.3.
type Descriptor struct {
	Hash     uint64
	Refcount uint32
	Object   any
	Type     TypeHandle
}

// entry is the cache's internal, mutable counterpart to Descriptor.
type entry struct {
	desc     Descriptor
	filename string // owned copy of the canonical path, set iff HashToFilename is enabled
}

// cache is the dual-indexed resource store described in spec §3/§4.4 and
// re-architected per spec §9 into a single abstraction maintaining both
// index directions atomically behind one mutex, rather than two maps the
// caller must keep in sync.
//
// Primary index: hash -> entry ("Resources").
// Secondary index: live object identity -> hash ("ResourceToHash"), kept in
// lockstep with the primary index so Release(object) and GetType(object)
// run in O(1) without the caller re-supplying the name.
// Filename index: hash -> canonical path ("HashToFilename"), populated only
// when reload support is enabled.
type cache struct {
	mu            sync.RWMutex
	byHash        map[uint64]*entry
	hashByObject  map[any]uint64
	trackFilename bool

	stats *Statistics
}

func newCache(maxResources int, trackFilename bool) *cache {
	// Size both indexes to hold maxResources at a 3/4 load factor (spec
	// §4.7): Go maps grow on demand, but preallocating the expected
	// bucket count avoids rehashing churn during warmup.
	capHint := int(float64(maxResources) / 0.75)
	return &cache{
		byHash:        make(map[uint64]*entry, capHint),
		hashByObject:  make(map[any]uint64, capHint),
		trackFilename: trackFilename,
		stats:         NewStatistics(),
	}
}

// getOrIncref returns a snapshot of the descriptor for a hash, and whether it
// was present. On hit it bumps the refcount under the same lock as the
// lookup, not via a separate call (avoids a hit-then-evicted race).
func (c *cache) getOrIncref(h uint64) (Descriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byHash[h]
	if !ok {
		return Descriptor{}, false
	}
	e.desc.Refcount++
	return e.desc, true
}

// insert records a freshly created resource under both indexes (and the
// filename index, if enabled). Panics if h is already present: per spec
// §3, a duplicate insert means the caller skipped the required prior
// lookup, which is a programming error in this package, not a user error.
func (c *cache) insert(h uint64, desc Descriptor, cpath string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byHash[h]; exists {
		panic("resourcefactory: duplicate insert for already-cached hash")
	}

	e := &entry{desc: desc}
	if c.trackFilename {
		e.filename = cpath
	}
	c.byHash[h] = e
	c.hashByObject[desc.Object] = h
	c.stats.UpdateSize(int64(len(c.byHash)))
}

// release decrements the refcount for the object's entry. Returns the
// descriptor snapshot and whether the entry was destroyed (refcount hit
// zero); found is true on every return. Releasing an object the cache does
// not know, including a second release after its entry was destroyed, is a
// programming error and panics (spec §4.4.2). The caller (Factory)
// invokes the handler's destroy callback outside this method so the cache
// never calls back into user code while holding its own lock.
func (c *cache) release(object any) (desc Descriptor, destroyed bool, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.hashByObject[object]
	if !ok {
		panic("resourcefactory: release of object unknown to the cache")
	}
	e, ok := c.byHash[h]
	if !ok || e.desc.Refcount == 0 {
		panic("resourcefactory: release of object with zero refcount")
	}

	e.desc.Refcount--
	desc = e.desc
	if e.desc.Refcount == 0 {
		delete(c.byHash, h)
		delete(c.hashByObject, object)
		c.stats.UpdateSize(int64(len(c.byHash)))
		return desc, true, true
	}
	return desc, false, true
}

// hashOf returns the hash associated with a live object's identity.
func (c *cache) hashOf(object any) (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.hashByObject[object]
	return h, ok
}

// byHashSnapshot returns the descriptor stored at a given hash, without
// mutating the refcount.
func (c *cache) byHashSnapshot(h uint64) (Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byHash[h]
	if !ok {
		return Descriptor{}, false
	}
	return e.desc, true
}

// updateObject is used by Reload: the handler's recreate call updates the
// live object in place (same Go value if the handler mutates a struct
// behind a pointer) but may also swap the stored any value itself (e.g. a
// handler that hands back a new pointer while keeping the caller-visible
// identity stable via an inner indirection). Reload always passes the
// existing object back in, so in the common case newObject == oldObject
// and this is a no-op beyond the defensive re-index.
func (c *cache) updateObject(h uint64, newObject any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byHash[h]
	if !ok {
		return
	}
	if e.desc.Object != newObject {
		delete(c.hashByObject, e.desc.Object)
		c.hashByObject[newObject] = h
		e.desc.Object = newObject
	}
}

// filenameOf returns the canonical path tracked for a hash, if the filename
// index is enabled and the hash is present.
func (c *cache) filenameOf(h uint64) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byHash[h]
	if !ok || !c.trackFilename {
		return "", false
	}
	return e.filename, true
}

// listFilenames returns a snapshot of (hash, filename, refcount) triples
// for the control server's status page (spec §4.6). Iteration order is the
// map's natural order; no sort is required.
type statusRow struct {
	Hash     uint64
	Filename string
	Refcount uint32
}

func (c *cache) listFilenames() []statusRow {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows := make([]statusRow, 0, len(c.byHash))
	for h, e := range c.byHash {
		rows = append(rows, statusRow{Hash: h, Filename: e.filename, Refcount: e.desc.Refcount})
	}
	return rows
}

func (c *cache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byHash)
}

// Statistics tracks cache performance counters, mirrored optionally into
// Prometheus via the metric package (SPEC_FULL §3/§C8). Counters use
// atomics so Hit/Miss/Load/Reload can be called without taking the cache's
// own mutex.
type Statistics struct {
	hits    int64
	misses  int64
	loads   int64
	reloads int64

	mu          sync.RWMutex
	startTime   time.Time
	currentSize int64
	maxSize     int64
}

// NewStatistics creates a new, zeroed statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{startTime: time.Now()}
}

func (s *Statistics) Hit()    { atomic.AddInt64(&s.hits, 1) }
func (s *Statistics) Miss()   { atomic.AddInt64(&s.misses, 1) }
func (s *Statistics) Load()   { atomic.AddInt64(&s.loads, 1) }
func (s *Statistics) Reload() { atomic.AddInt64(&s.reloads, 1) }

// UpdateSize records the current primary-index size, tracking the
// high-water mark alongside it.
func (s *Statistics) UpdateSize(size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentSize = size
	if size > s.maxSize {
		s.maxSize = size
	}
}

func (s *Statistics) Hits() int64    { return atomic.LoadInt64(&s.hits) }
func (s *Statistics) Misses() int64  { return atomic.LoadInt64(&s.misses) }
func (s *Statistics) Loads() int64   { return atomic.LoadInt64(&s.loads) }
func (s *Statistics) Reloads() int64 { return atomic.LoadInt64(&s.reloads) }

func (s *Statistics) CurrentSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSize
}

func (s *Statistics) MaxSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSize
}

// HitRatio returns hits / (hits + misses), or 0 if there have been no Gets.
func (s *Statistics) HitRatio() float64 {
	hits := s.Hits()
	total := hits + s.Misses()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Uptime returns how long this Statistics tracker has been running.
func (s *Statistics) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startTime)
}

// Summary is a point-in-time snapshot of Statistics, suitable for the
// status page or a JSON health response.
type Summary struct {
	Hits        int64         `json:"hits"`
	Misses      int64         `json:"misses"`
	Loads       int64         `json:"loads"`
	Reloads     int64         `json:"reloads"`
	CurrentSize int64         `json:"current_size"`
	MaxSize     int64         `json:"max_size"`
	HitRatio    float64       `json:"hit_ratio"`
	Uptime      time.Duration `json:"uptime"`
}

// Summary returns a snapshot of all statistics.
func (s *Statistics) Summary() Summary {
	return Summary{
		Hits:        s.Hits(),
		Misses:      s.Misses(),
		Loads:       s.Loads(),
		Reloads:     s.Reloads(),
		CurrentSize: s.CurrentSize(),
		MaxSize:     s.MaxSize(),
		HitRatio:    s.HitRatio(),
		Uptime:      s.Uptime(),
	}
}
