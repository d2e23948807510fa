// Package slab implements the slab-interface contract the item layer
// depends on (spec §4.3): size-classed chunk allocation, free-list return,
// and per-chunk refcount mirroring.
//
// The size-class layout is grounded on recycle.Pool's sync.Pool-backed
// chunk pools (recycle/pool.go in the teacher repo): chunk sizes are fixed
// per class and chosen by the smallest class that fits a request. Unlike
// recycle.Pool, classes here cannot use sync.Pool as the free-list
// container: the GC may reclaim a sync.Pool entry at any time, which would
// silently break the "evict a linked item to free a chunk" contract this
// package also has to provide. Free chunks are therefore tracked explicitly,
// and in-use chunks are kept on a doubly linked list so the oldest can be
// offered up for eviction, the same sentinel-list-with-callback shape as
// cache.lru in cache/lru.go.
package slab

import (
	"fmt"
	"sync"
)

// InvalidClassID is returned by ClassFor when no class fits a request.
const InvalidClassID = 0xFF

// Owner is implemented by whatever the item layer stores in a chunk. When a
// class has no free chunk, the allocator walks its in-use list from oldest
// to newest offering each Owner a chance to give its chunk up.
type Owner interface {
	// Evict is called with the allocator's class lock held. It must return
	// true and leave itself unlinked/unreachable if it can give up its
	// chunk, or false if it is not eligible (e.g. still referenced).
	Evict() bool
}

// Ref is the slab-side handle for a chunk handed out by GetChunk: it
// mirrors the acquire_refcount/release_refcount contract (so the slab
// containing any pinned item is never recycled) and is the token PutChunk
// needs to pull the chunk back off its class's in-use list. Modeled on the
// atomic reference counting in recycle.Data (recycle/data.go), simplified
// to a plain int since the item layer already serializes access with its
// own lock (spec §5).
type Ref struct {
	count int32
	prev  *Ref
	next  *Ref
	chunk []byte
	owner Owner
}

func (r *Ref) Acquire()     { r.count++ }
func (r *Ref) Release()     {
	if r.count > 0 {
		r.count--
	}
}
func (r *Ref) Count() int32 { return r.count }

// Allocator partitions memory into fixed-size class regions.
type Allocator struct {
	mu      sync.Mutex
	classes []*class
}

// New creates an Allocator whose class chunk sizes are classSizes, which
// must be sorted strictly ascending. maxChunksPerClass caps how many chunks
// a class will ever hand out before it must evict to satisfy a GetChunk; 0
// means unbounded growth (a class never evicts, only running out of
// process memory).
func New(classSizes []int, maxChunksPerClass int) *Allocator {
	if len(classSizes) == 0 {
		panic("slab: no class sizes")
	}
	if len(classSizes) > InvalidClassID {
		panic("slab: too many classes")
	}
	for i, sz := range classSizes {
		if sz <= 0 {
			panic("slab: non positive class size")
		}
		if i != 0 && classSizes[i-1] >= sz {
			panic("slab: class sizes unsorted or duplicated")
		}
	}
	a := &Allocator{}
	for _, sz := range classSizes {
		a.classes = append(a.classes, newClass(sz, maxChunksPerClass))
	}
	return a
}

// DefaultClassSizes mirrors recycle.DefaultChunkSizes's geometric growth,
// generalized to the slab item layer's size range.
func DefaultClassSizes(min, max int) (sizes []int) {
	for sz := min; sz <= max; sz *= 2 {
		sizes = append(sizes, sz)
	}
	return
}

// ClassFor returns the smallest class whose chunk size is >= n, or
// InvalidClassID if n exceeds every class.
func (a *Allocator) ClassFor(n int) uint8 {
	// O(n) but len(classes) is small, same tradeoff recycle.Pool.chunk makes.
	for i, c := range a.classes {
		if n <= c.size {
			return uint8(i)
		}
	}
	return InvalidClassID
}

// ClassSize returns the chunk size of a class.
func (a *Allocator) ClassSize(id uint8) int {
	return a.classes[id].size
}

// GetChunk returns a free chunk for class id and tracks it as owned by
// owner, either taken from the class free list or reclaimed by evicting the
// oldest evictable owner on that class. ok is false only when the free list
// is empty and no owner could be evicted (NOMEM).
func (a *Allocator) GetChunk(id uint8, owner Owner) (chunk []byte, ref *Ref, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.classes[id].getChunk(owner)
}

// PutChunk returns a chunk to its class's free list. ref must be the Ref
// returned for this chunk by GetChunk; it is untracked from the in-use list
// as part of the call.
func (a *Allocator) PutChunk(id uint8, ref *Ref) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.classes[id].putChunk(ref)
}

type class struct {
	size      int
	maxChunks int
	allocated int

	free [][]byte

	// Doubly linked sentinel list of in-use chunks, oldest first, the same
	// shape as cache.lru's fakeHead/fakeTail list in cache/lru.go.
	head *Ref
	tail *Ref
}

func newClass(size int, maxChunks int) *class {
	c := &class{size: size, maxChunks: maxChunks}
	c.head, c.tail = &Ref{}, &Ref{}
	link(c.head, c.tail)
	return c
}

func link(a, b *Ref) { a.next, b.prev = b, a }

func (c *class) getChunk(owner Owner) ([]byte, *Ref, bool) {
	if n := len(c.free); n != 0 {
		chunk := c.free[n-1]
		c.free = c.free[:n-1]
		return chunk, c.track(chunk, owner), true
	}
	if c.maxChunks == 0 || c.allocated < c.maxChunks {
		chunk := make([]byte, c.size)
		c.allocated++
		return chunk, c.track(chunk, owner), true
	}
	for e := c.head.next; e != c.tail; e = e.next {
		if e.owner.Evict() {
			chunk := e.chunk
			e.detach()
			return chunk, c.track(chunk, owner), true
		}
	}
	return nil, nil, false
}

func (c *class) putChunk(ref *Ref) {
	if cap(ref.chunk) != c.size {
		panic(fmt.Sprintf("slab: chunk size %d does not match class size %d", cap(ref.chunk), c.size))
	}
	ref.detach()
	c.free = append(c.free, ref.chunk[:c.size])
}

func (c *class) track(chunk []byte, owner Owner) *Ref {
	r := &Ref{chunk: chunk, owner: owner}
	link(c.tail.prev, r)
	link(r, c.tail)
	return r
}

func (r *Ref) detach() {
	if r.prev == nil && r.next == nil {
		return
	}
	link(r.prev, r.next)
	r.prev, r.next = nil, nil
}
