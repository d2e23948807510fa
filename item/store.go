// Package item implements the item storage engine's item layer: the
// data structure, lifecycle, and operational contract of cache items
// (spec §4.2), on top of a hash index (internal/hashindex) and a
// slab-interface contract (internal/slab, consumed through SlabAllocator).
package item

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/skipor/itemcached/internal/clock"
	"github.com/skipor/itemcached/internal/hashindex"
	"github.com/skipor/itemcached/internal/metrics"
	"github.com/skipor/itemcached/internal/slab"
	"github.com/skipor/itemcached/internal/tag"
	"github.com/skipor/itemcached/log"
)

// Config recognises the options spec §6 lists: UseCAS toggles the embedded
// CAS token, HashPower sizes the index to 2^HashPower buckets in New.
type Config struct {
	HashPower uint
	UseCAS    bool
}

// Store is the process-wide item module (spec §3 "Process-wide state"):
// one instance owns the hash index and the monotonic cas_counter for a
// server's lifetime, from New to Teardown.
//
// Concurrency: a single coarse mutex guards every mutation, the strategy
// spec §5 calls out for a multi-threaded embedding, grounded on
// cache.cache's sync.RWMutex in cache/cache.go. A plain Mutex is used
// instead of an RWMutex because Get has a mutating side effect (lazy
// expiry unlinks the item), unlike the teacher's pure-read Cache.Get.
type Store struct {
	mu sync.Mutex

	slab    SlabAllocator
	index   *hashindex.Index
	metrics *metrics.Sink
	clock   clock.Clock
	log     log.Logger

	useCAS     bool
	casCounter uint64
}

// New sets up the item module: allocates the hash index and wires the
// collaborators the item layer consumes. Mirrors item_setup(hash_power,
// metrics) in the original source.
func New(sa SlabAllocator, conf Config, m *metrics.Sink, c clock.Clock, l log.Logger) *Store {
	l.Infof("item store: setup with hash_power=%d use_cas=%v", conf.HashPower, conf.UseCAS)
	return &Store{
		slab:    sa,
		index:   hashindex.New(conf.HashPower),
		metrics: m,
		clock:   c,
		log:     l,
		useCAS:  conf.UseCAS,
	}
}

// Teardown releases the module's process-wide state. Mirrors
// item_teardown; there is nothing to actively free on the Go side since the
// hash index and any live items are reclaimed by the garbage collector once
// unreferenced, but the log line and shape are kept for parity with the
// original lifecycle.
func (s *Store) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Info("item store: teardown")
	s.index = nil
}

func assert(cond bool, msg string) {
	if tag.Debug && !cond {
		panic(errors.New(msg))
	}
}

// nextCAS returns the next cas id for a new item: minimum value is 1,
// maximum is math.MaxUint64. Returns 0 when CAS is disabled.
func (s *Store) nextCAS() uint64 {
	if !s.useCAS {
		return 0
	}
	s.casCounter++
	return s.casCounter
}

// --- refcount discipline -----------------------------------------------

func (s *Store) acquire(it *Item) {
	assert(it.magic == itemMagic, "item: acquire of item with bad magic")
	it.refcount++
	it.ref.Acquire()
}

// release decrements refcount and, once it reaches zero with the item
// unlinked, returns the chunk to the slab (spec §4.2 "Linkage and refcount
// discipline").
func (s *Store) release(it *Item) {
	assert(it.magic == itemMagic, "item: release of item with bad magic")
	assert(!it.inFreeQ, "item: release of already freed item")
	if it.refcount != 0 {
		it.refcount--
		it.ref.Release()
	}
	if it.refcount == 0 && !it.isLinked {
		s.free(it)
	}
}

func (s *Store) free(it *Item) {
	s.slab.PutChunk(it.classID, it.ref)
	it.inFreeQ = true
	s.metrics.IncrRemove()
	if tag.Debug {
		it.magic = 0
		it.chunk = nil
	}
}

// --- linkage -------------------------------------------------------------

func (s *Store) link(it *Item) {
	assert(!it.isLinked, "item: link of already linked item")
	assert(!it.inFreeQ, "item: link of freed item")

	it.isLinked = true
	it.setCAS(s.nextCAS())
	s.index.Put(string(it.Key()), it)

	s.metrics.IncrLink()
	s.metrics.IncrCurr()
	s.metrics.IncrKeyvalByte(int64(it.klen) + int64(it.vlen))
	s.metrics.IncrValByte(int64(it.vlen))
	s.log.Verbf("link it %q at class %d cas %d", it.Key(), it.classID, it.CAS())
}

// unlink clears is_linked and removes the item from the hash index,
// freeing it immediately if nothing else holds a refcount. Metrics move
// unconditionally, matching the original _item_unlink, which is only ever
// called on items already known to be linked.
func (s *Store) unlink(it *Item) {
	s.metrics.IncrUnlink()
	s.metrics.DecrCurr()
	s.metrics.DecrKeyvalByte(int64(it.klen) + int64(it.vlen))
	s.metrics.DecrValByte(int64(it.vlen))

	if it.isLinked {
		it.isLinked = false
		s.index.Delete(string(it.Key()))
		if it.refcount == 0 {
			s.free(it)
		}
	}
	s.log.Verbf("unlink it %q", it.Key())
}

// relink unlinks old and links nit; nit is the reachable item afterward.
// old lingers only if some caller still holds a refcount, freed on final
// release.
func (s *Store) relink(old, nit *Item) {
	s.unlink(old)
	s.link(nit)
}

// reuse severs hash reachability without freeing the chunk: used only when
// the slab layer evicts a linked item to satisfy an allocation (Item.Evict),
// where the very same chunk bytes are about to be handed to the new item.
func (s *Store) reuse(it *Item) {
	assert(!it.inFreeQ, "item: reuse of freed item")
	assert(it.isLinked, "item: reuse of unlinked item")
	assert(it.refcount == 0, "item: reuse of referenced item")

	it.isLinked = false
	s.index.Delete(string(it.Key()))
	s.log.Verbf("reuse it %q at class %d", it.Key(), it.classID)
}

// Evict implements slab.Owner: called by the allocator when a class has no
// free chunk. Only a zero-refcount linked item may give up its chunk.
func (it *Item) Evict() bool {
	if it.refcount != 0 || !it.isLinked {
		return false
	}
	it.store.reuse(it)
	return true
}

// --- allocation ------------------------------------------------------------

// alloc computes the needed chunk size, picks the smallest slab class that
// fits it, and asks the slab interface for a free chunk. The returned item
// carries one refcount owned by the caller.
func (s *Store) alloc(key []byte, exptime uint32, vlen int) (*Item, Status) {
	if len(key) > 255 {
		return nil, Oversized
	}
	hasCAS := s.useCAS
	need := ntotal(len(key), vlen, hasCAS)
	classID := s.slab.ClassFor(need)
	if classID == slab.InvalidClassID {
		return nil, Oversized
	}

	it := &Item{
		store:   s,
		magic:   itemMagic,
		classID: classID,
		klen:    uint8(len(key)),
		vlen:    uint32(vlen),
		exptime: exptime,
		hasCAS:  hasCAS,
	}

	chunk, ref, ok := s.slab.GetChunk(classID, it)
	if !ok {
		s.metrics.IncrReqEx()
		s.log.Warnf("alloc failed for key %q: no free chunk in class %d", key, classID)
		return nil, NoMem
	}
	it.chunk = chunk
	it.ref = ref

	copy(it.chunk[:it.klen], key)
	if hasCAS {
		it.setCAS(0)
	}
	s.acquire(it)

	s.metrics.IncrReq()
	s.log.Verbf("alloc it %q at class %d exptime %d", key, classID, exptime)
	return it, OK
}

// Alloc allocates a new, unlinked item. The caller owns one refcount and
// must Release it.
func (s *Store) Alloc(key []byte, exptime uint32, vlen int) (*Item, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alloc(key, exptime, vlen)
}

// --- read path ---------------------------------------------------------

// get looks up key, lazily expiring the item if past its exptime. On a hit
// it acquires a refcount the caller must release.
func (s *Store) get(key []byte) (*Item, Status) {
	h, ok := s.index.Get(string(key))
	if !ok {
		return nil, NotFound
	}
	it := h.(*Item)
	if it.expired(s.clock.Now()) {
		s.unlink(it)
		s.log.Verbf("get it %q expired and nuked", key)
		return nil, NotFound
	}
	s.acquire(it)
	return it, OK
}

// Get returns the item for key, or NotFound if absent or lazily expired.
// Release is the caller's responsibility.
func (s *Store) Get(key []byte) (*Item, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, st := s.get(key)
	s.checkInvariants(it)
	return it, st
}

// --- write path ----------------------------------------------------------

// Set allocates a new item for val and links it, replacing any prior item
// for key.
func (s *Store) Set(key, val []byte, exptime uint32) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, status := s.alloc(key, exptime, len(val))
	if status != OK {
		return status
	}
	copy(it.Value(), val)
	it.checkType()

	old, st := s.get(key)
	if st == OK {
		s.relink(old, it)
		s.release(old)
	} else {
		s.link(it)
	}
	s.release(it)
	s.checkInvariants(it)
	return OK
}

// Cas performs a compare-and-swap: fails NotFound if key is absent, EOther
// if the current CAS does not match expected. The prior item is untouched
// on either failure.
func (s *Store) Cas(key, val []byte, exptime uint32, expected uint64) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, st := s.get(key)
	if st != OK {
		return NotFound
	}
	if old.CAS() != expected {
		s.log.Debugf("cas mismatch %d != %d on it %q", old.CAS(), expected, key)
		s.release(old)
		return EOther
	}

	it, status := s.alloc(key, exptime, len(val))
	if status != OK {
		s.release(old)
		return status
	}
	// Stamped with the expected CAS; superseded by a fresh one at link time.
	it.setCAS(expected)
	copy(it.Value(), val)
	it.checkType()

	s.relink(old, it)
	s.release(old)
	s.release(it)
	s.checkInvariants(it)
	return OK
}

// Annex appends or prepends val to the existing item for key, mutating in
// place when the combined size still fits the current chunk and the
// existing alignment matches the requested direction, and reallocating
// otherwise.
func (s *Store) Annex(key, val []byte, append bool) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, st := s.get(key)
	if st != OK {
		return NotFound
	}

	total := int(old.vlen) + len(val)
	classID := s.slab.ClassFor(ntotal(int(old.klen), total, old.hasCAS))
	if classID == slab.InvalidClassID {
		s.release(old)
		return Oversized
	}

	if append && classID == old.classID && !old.isRAligned {
		off := old.dataOffset() + int(old.vlen)
		copy(old.chunk[off:off+len(val)], val)
		old.vlen = uint32(total)
		old.setCAS(s.nextCAS())
		old.checkType()
		s.release(old)
		s.checkInvariants(old)
		return OK
	}
	if !append && classID == old.classID && old.isRAligned {
		newStart := len(old.chunk) - total
		copy(old.chunk[newStart:newStart+len(val)], val)
		old.vlen = uint32(total)
		old.setCAS(s.nextCAS())
		old.checkType()
		s.release(old)
		s.checkInvariants(old)
		return OK
	}

	nit, status := s.alloc(key, old.exptime, total)
	if status != OK {
		s.release(old)
		return status
	}
	if append {
		v := nit.Value()
		copy(v, old.Value())
		copy(v[old.vlen:], val)
	} else {
		nit.isRAligned = true
		v := nit.Value()
		copy(v[:len(val)], val)
		copy(v[len(val):], old.Value())
	}
	nit.checkType()

	s.relink(old, nit)
	s.release(old)
	s.release(nit)
	s.checkInvariants(nit)
	return OK
}

// Update overwrites the payload of an already-held item in place. It fails
// OVERSIZED whenever val's size maps to a different slab class than the
// item's current one (a larger or a smaller class alike), and never
// touches the hash index or re-issues a CAS: it is a handle-scoped mutation
// of an item the caller already pinned.
func (s *Store) Update(it *Item, val []byte) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	classID := s.slab.ClassFor(ntotal(int(it.klen), len(val), it.hasCAS))
	if classID != it.classID {
		return Oversized
	}

	if it.isRAligned {
		dst := it.chunk[len(it.chunk)-len(val):]
		copy(dst, val)
	} else {
		off := it.dataOffset()
		copy(it.chunk[off:off+len(val)], val)
	}
	it.vlen = uint32(len(val))
	it.checkType()
	return OK
}

// Delete unlinks and releases the item for key.
func (s *Store) Delete(key []byte) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, st := s.get(key)
	if st != OK {
		return NotFound
	}
	s.unlink(it)
	s.release(it)
	return OK
}

// Release drops the caller's refcount on it, obtained from Get, Alloc, or a
// handle produced by Set/Cas/Annex internally (those already release their
// own handles before returning).
func (s *Store) Release(it *Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release(it)
}

// checkInvariants verifies, in debug builds only, that is_linked agrees
// with hash-index reachability and that in_freeq/is_linked stay mutually
// exclusive (spec §8, invariants 1-2). Modeled on
// cache/check_invariants_debug.go's post-mutation checks, using stdlib
// panics instead of gomega matchers so it costs nothing to compile into
// non-debug, non-gomega-dependent builds.
func (s *Store) checkInvariants(it *Item) {
	if !tag.Debug || it == nil {
		return
	}
	h, ok := s.index.Get(string(it.Key()))
	linkedInIndex := ok && h.(*Item) == it
	if it.isLinked != linkedInIndex {
		panic(errors.New("item: is_linked out of sync with hash index"))
	}
	if it.isLinked && it.inFreeQ {
		panic(errors.New("item: linked item marked in free queue"))
	}
	if it.refcount < 0 {
		panic(errors.New("item: negative refcount"))
	}
}
