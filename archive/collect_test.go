// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package archive

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Collect", func() {
	var tmpDir string

	mustWrite := func(rel, content string) {
		path := filepath.Join(tmpDir, filepath.FromSlash(rel))
		Expect(os.MkdirAll(filepath.Dir(path), 0755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "collect_test")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(tmpDir)).To(Succeed())
	})

	It("loads a file input under its base name", func() {
		mustWrite("standalone.txt", "solo")

		entries, err := Collect([]string{filepath.Join(tmpDir, "standalone.txt")}, nil)
		Expect(err).ToNot(HaveOccurred())

		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Path).To(Equal("standalone.txt"))
		Expect(entries[0].Kind).To(Equal(KindFile))
		Expect(entries[0].Data).To(Equal([]byte("solo")))
	})

	It("flattens a directory into relative entries", func() {
		mustWrite("tree/a.txt", "a")
		mustWrite("tree/sub/b.txt", "b")

		entries, err := Collect([]string{filepath.Join(tmpDir, "tree")}, nil)
		Expect(err).ToNot(HaveOccurred())

		paths := make([]string, len(entries))
		for i, e := range entries {
			paths[i] = e.Path
		}
		Expect(paths).To(ConsistOf("a.txt", "sub/b.txt"))
	})

	It("keeps the first of two entries with the same path", func() {
		mustWrite("one/dup.txt", "first")
		mustWrite("two/dup.txt", "second")

		entries, err := Collect([]string{
			filepath.Join(tmpDir, "one"),
			filepath.Join(tmpDir, "two"),
		}, nil)
		Expect(err).ToNot(HaveOccurred())

		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Data).To(Equal([]byte("first")))
	})

	It("skips inputs that do not exist", func() {
		mustWrite("present.txt", "here")

		entries, err := Collect([]string{
			filepath.Join(tmpDir, "missing.txt"),
			filepath.Join(tmpDir, "present.txt"),
		}, nil)
		Expect(err).ToNot(HaveOccurred())

		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Path).To(Equal("present.txt"))
	})

	It("rejects paths nested too deeply", func() {
		mustWrite("deep/a/b/c/d/e.txt", "too far down")

		_, err := Collect([]string{filepath.Join(tmpDir, "deep")}, nil)
		Expect(err).To(HaveOccurred())
	})
})
