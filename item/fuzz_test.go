package item

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	. "github.com/skipor/itemcached/testutil"
)

// Invariant 6 (round-trip), exercised over randomized keys and values the
// way testutil.Fuzz generates randomized input for the rest of the corpus.
var _ = Describe("Set/Get round trip", func() {
	It("returns exactly what was set, for many random key/value pairs", func() {
		s, _ := newTestStore(true)
		for i := 0; i < 200; i++ {
			var key, val string
			Fuzz(&key)
			Fuzz(&val)
			if len(key) == 0 || len(key) > 32 || len(val) > 512 {
				continue
			}
			status := s.Set([]byte(key), []byte(val), 0)
			if status == Oversized {
				continue
			}
			Expect(status).To(Equal(OK))

			it, getStatus := s.Get([]byte(key))
			Expect(getStatus).To(Equal(OK))
			ExpectBytesEqual(it.Value(), []byte(val))
			s.Release(it)
		}
	})
})
