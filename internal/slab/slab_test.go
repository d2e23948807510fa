package slab

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ClassFor", func() {
	a := New([]int{64, 128, 256}, 0)

	It("picks the smallest class that fits", func() {
		Expect(a.ClassFor(1)).To(BeEquivalentTo(0))
		Expect(a.ClassFor(64)).To(BeEquivalentTo(0))
		Expect(a.ClassFor(65)).To(BeEquivalentTo(1))
		Expect(a.ClassFor(256)).To(BeEquivalentTo(2))
	})

	It("reports InvalidClassID when nothing fits", func() {
		Expect(a.ClassFor(257)).To(BeEquivalentTo(InvalidClassID))
	})
})

var _ = Describe("New", func() {
	It("panics on unsorted class sizes", func() {
		Expect(func() { New([]int{128, 64}, 0) }).To(Panic())
	})
	It("panics on duplicate class sizes", func() {
		Expect(func() { New([]int{64, 64}, 0) }).To(Panic())
	})
})

var _ = Describe("DefaultClassSizes", func() {
	It("doubles from min up to max", func() {
		Expect(DefaultClassSizes(64, 256)).To(Equal([]int{64, 128, 256}))
	})
})

var _ = Describe("ClassSize", func() {
	It("reports the chunk size backing each class id", func() {
		sizes := DefaultClassSizes(64, 256)
		a := New(sizes, 0)
		for id, sz := range sizes {
			Expect(a.ClassSize(uint8(id))).To(Equal(sz))
		}
	})
})

var _ = Describe("Ref.Count", func() {
	It("mirrors acquire/release calls on the chunk's slab-level refcount", func() {
		a := New([]int{64}, 0)
		_, ref, ok := a.GetChunk(0, &fakeOwner{})
		Expect(ok).To(BeTrue())
		Expect(ref.Count()).To(BeEquivalentTo(0))

		ref.Acquire()
		ref.Acquire()
		Expect(ref.Count()).To(BeEquivalentTo(2))

		ref.Release()
		Expect(ref.Count()).To(BeEquivalentTo(1))

		ref.Release()
		Expect(ref.Count()).To(BeEquivalentTo(0))

		// Releasing below zero is a no-op, matching release_refcount's guard.
		ref.Release()
		Expect(ref.Count()).To(BeEquivalentTo(0))
	})
})

var _ = Describe("GetChunk", func() {
	var a *Allocator

	Context("class has room under its cap", func() {
		BeforeEach(func() {
			a = New([]int{64}, 2)
		})
		It("hands out fresh chunks without evicting", func() {
			_, _, ok := a.GetChunk(0, &fakeOwner{})
			Expect(ok).To(BeTrue())
			_, _, ok = a.GetChunk(0, &fakeOwner{})
			Expect(ok).To(BeTrue())
		})
	})

	Context("class is at cap and an owner is evictable", func() {
		BeforeEach(func() {
			a = New([]int{64}, 1)
		})
		It("evicts the existing owner and reuses its chunk", func() {
			victim := &fakeOwner{evictable: true}
			_, _, ok := a.GetChunk(0, victim)
			Expect(ok).To(BeTrue())

			chunk, _, ok := a.GetChunk(0, &fakeOwner{})
			Expect(ok).To(BeTrue())
			Expect(victim.evicted).To(BeTrue())
			Expect(chunk).To(HaveLen(64))
		})
	})

	Context("class is at cap and nothing is evictable", func() {
		BeforeEach(func() {
			a = New([]int{64}, 1)
		})
		It("returns NOMEM", func() {
			_, _, ok := a.GetChunk(0, &fakeOwner{evictable: false})
			Expect(ok).To(BeTrue())

			_, _, ok = a.GetChunk(0, &fakeOwner{})
			Expect(ok).To(BeFalse())
		})
	})
})

var _ = Describe("PutChunk", func() {
	It("returns the chunk to the free list without triggering eviction", func() {
		a := New([]int{64}, 1)
		owner := &fakeOwner{}
		_, ref, ok := a.GetChunk(0, owner)
		Expect(ok).To(BeTrue())

		a.PutChunk(0, ref)

		other := &fakeOwner{}
		_, _, ok = a.GetChunk(0, other)
		Expect(ok).To(BeTrue())
		Expect(other.evicted).To(BeFalse())
	})

	It("panics if the chunk does not match the class size", func() {
		a := New([]int{64, 128}, 0)
		_, ref, _ := a.GetChunk(1, &fakeOwner{})
		Expect(func() { a.PutChunk(0, ref) }).To(Panic())
	})
})
