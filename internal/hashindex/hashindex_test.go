package hashindex

import (
	"fmt"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Index", func() {
	var idx *Index
	BeforeEach(func() {
		idx = New(4)
	})

	It("reports a miss for an absent key", func() {
		_, ok := idx.Get("nope")
		Expect(ok).To(BeFalse())
	})

	It("round-trips a put", func() {
		idx.Put("k", "v")
		h, ok := idx.Get("k")
		Expect(ok).To(BeTrue())
		Expect(h).To(Equal("v"))
	})

	It("overwrites nothing on delete of a missing key", func() {
		Expect(idx.Delete("nope")).To(BeFalse())
	})

	It("deletes a present key", func() {
		idx.Put("k", "v")
		Expect(idx.Delete("k")).To(BeTrue())
		_, ok := idx.Get("k")
		Expect(ok).To(BeFalse())
	})

	It("tracks Len across inserts and deletes", func() {
		idx.Put("a", 1)
		idx.Put("b", 2)
		Expect(idx.Len()).To(Equal(2))
		idx.Delete("a")
		Expect(idx.Len()).To(Equal(1))
	})

	It("keeps many keys addressable through bucket chaining", func() {
		for i := 0; i < 500; i++ {
			idx.Put(fmt.Sprintf("key-%d", i), i)
		}
		for i := 0; i < 500; i++ {
			h, ok := idx.Get(fmt.Sprintf("key-%d", i))
			Expect(ok).To(BeTrue())
			Expect(h).To(Equal(i))
		}
	})
})

var _ = Describe("New", func() {
	It("rounds hashPower 0 up to at least one bucket", func() {
		idx := New(0)
		idx.Put("k", "v")
		h, ok := idx.Get("k")
		Expect(ok).To(BeTrue())
		Expect(h).To(Equal("v"))
	})
})
