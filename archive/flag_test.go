// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package archive

import (
	. "github.com/onsi/ginkgo"
	table "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("PolicyFlag", func() {
	table.DescribeTable("parses each policy name",
		func(name string, want Policy) {
			var pf PolicyFlag
			Expect(pf.Set(name)).To(Succeed())
			Expect(pf.Value()).To(Equal(want))
			Expect(pf.String()).To(Equal(name))
		},

		table.Entry("adaptive", "adaptive", PolicyAdaptive),
		table.Entry("store", "store", PolicyStore),
		table.Entry("huffman", "huffman", PolicyHuffman),
		table.Entry("zlib", "zlib", PolicyZlib),
	)

	It("rejects an unknown name", func() {
		var pf PolicyFlag
		Expect(pf.Set("brotli")).ToNot(Succeed())
	})

	It("lists every value", func() {
		Expect(PolicyFlagValues()).To(Equal("adaptive, store, huffman, zlib"))
	})
})
