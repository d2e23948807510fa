package config

import (
	. "github.com/onsi/ginkgo"
	gomega "github.com/onsi/gomega"
)

var _ = Describe("Parse", func() {
	var in InputConfig
	BeforeEach(func() {
		in = *Default()
	})

	It("parses the defaults cleanly", func() {
		c, err := Parse(in)
		gomega.Expect(err).To(gomega.BeNil())
		gomega.Expect(c.Store.HashPower).To(gomega.BeEquivalentTo(16))
		gomega.Expect(c.Store.UseCAS).To(gomega.BeTrue())
		gomega.Expect(c.LogLevel.String()).To(gomega.Equal("INFO"))
	})

	It("builds ascending class sizes between min-chunk and slab-size", func() {
		in.MinChunk = "64b"
		in.SlabSize = "256b"
		c, err := Parse(in)
		gomega.Expect(err).To(gomega.BeNil())
		gomega.Expect(c.ClassSizes).To(gomega.Equal([]int{64, 128, 256}))
	})

	It("rejects a hash-power out of range", func() {
		in.HashPower = 0
		_, err := Parse(in)
		gomega.Expect(err).NotTo(gomega.BeNil())
	})

	It("rejects a slab-size smaller than min-chunk", func() {
		in.MinChunk = "1k"
		in.SlabSize = "64b"
		_, err := Parse(in)
		gomega.Expect(err).NotTo(gomega.BeNil())
	})

	It("rejects a malformed size suffix", func() {
		in.MinChunk = "64x"
		_, err := Parse(in)
		gomega.Expect(err).NotTo(gomega.BeNil())
	})

	It("rejects an unknown log level", func() {
		in.LogLevel = "chatty"
		_, err := Parse(in)
		gomega.Expect(err).NotTo(gomega.BeNil())
	})
})

var _ = Describe("Merge", func() {
	It("keeps defaults for zero-valued override fields", func() {
		def := Default()
		override := &InputConfig{HashPower: 20}
		Merge(def, override)
		gomega.Expect(def.HashPower).To(gomega.Equal(20))
		gomega.Expect(def.UseCAS).To(gomega.BeTrue())
		gomega.Expect(def.MinChunk).To(gomega.Equal("64b"))
	})
})
