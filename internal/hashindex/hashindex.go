// Package hashindex implements the open key-bytes -> item handle map the
// item layer resolves keys through (spec §4.1), grounded on the
// assoc_create/assoc_put/assoc_get/assoc_delete contract the item layer's
// original C source (storage/slab/bb_item.c) calls into.
//
// Collision strategy is chaining, the simplicity the spec recommends;
// the table is sized once at construction and does not resize at runtime,
// matching "Init allocates the hash table sized 2^hash_power" in spec §3.
package hashindex

import "hash/fnv"

// Handle is whatever the item layer stores per key; the index itself is
// agnostic to it.
type Handle interface{}

type entry struct {
	key  string
	val  Handle
	next *entry
}

// Index is a chained hash table, sized to 2^hashPower buckets at
// construction.
type Index struct {
	buckets []*entry
	mask    uint64
	count   int
}

// New builds an Index with 2^hashPower buckets; a hashPower of 0 is treated
// as 1 (two buckets).
func New(hashPower uint) *Index {
	if hashPower == 0 {
		hashPower = 1
	}
	n := uint64(1) << hashPower
	return &Index{
		buckets: make([]*entry, n),
		mask:    n - 1,
	}
}

func hashKey(key string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return h.Sum64()
}

func (idx *Index) bucket(key string) int {
	return int(hashKey(key) & idx.mask)
}

// Get returns the handle linked under key, or ok=false if absent.
func (idx *Index) Get(key string) (h Handle, ok bool) {
	for e := idx.buckets[idx.bucket(key)]; e != nil; e = e.next {
		if e.key == key {
			return e.val, true
		}
	}
	return nil, false
}

// Put inserts handle under key. The caller guarantees key is not already
// present (the item layer enforces this by unlinking any prior item for the
// key before calling Put).
func (idx *Index) Put(key string, h Handle) {
	b := idx.bucket(key)
	idx.buckets[b] = &entry{key: key, val: h, next: idx.buckets[b]}
	idx.count++
}

// Delete removes key if present, reporting whether it was.
func (idx *Index) Delete(key string) bool {
	b := idx.bucket(key)
	var prev *entry
	for e := idx.buckets[b]; e != nil; e = e.next {
		if e.key == key {
			if prev == nil {
				idx.buckets[b] = e.next
			} else {
				prev.next = e.next
			}
			idx.count--
			return true
		}
		prev = e
	}
	return false
}

// Len returns the number of linked keys.
func (idx *Index) Len() int { return idx.count }
