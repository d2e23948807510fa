package item

import "github.com/skipor/itemcached/internal/slab"

// SlabAllocator is the slab-interface contract the item layer consumes
// (spec §4.3). *slab.Allocator satisfies it; tests substitute a
// stretchr/testify mock to force a NOMEM response without exhausting a real
// allocator.
type SlabAllocator interface {
	ClassFor(size int) uint8
	ClassSize(id uint8) int
	GetChunk(id uint8, owner slab.Owner) (chunk []byte, ref *slab.Ref, ok bool)
	PutChunk(id uint8, ref *slab.Ref)
}
