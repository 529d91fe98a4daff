// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package stagingfile

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("F", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "stagingfile_test")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(tmpDir)).To(Succeed())
	})

	It("commits written data to the destination", func() {
		sf, err := New(tmpDir, "out-")
		Expect(err).ToNot(HaveOccurred())

		_, err = sf.Write([]byte("staged "))
		Expect(err).ToNot(HaveOccurred())
		_, err = sf.Write([]byte("content"))
		Expect(err).ToNot(HaveOccurred())

		dest := filepath.Join(tmpDir, "sub", "out.bin")
		Expect(sf.Commit(dest)).To(Succeed())

		data, err := os.ReadFile(dest)
		Expect(err).ToNot(HaveOccurred())
		Expect(data).To(Equal([]byte("staged content")))
	})

	It("leaves no staging file behind after commit", func() {
		sf, err := New(tmpDir, "out-")
		Expect(err).ToNot(HaveOccurred())
		Expect(sf.Commit(filepath.Join(tmpDir, "out.bin"))).To(Succeed())

		entries, err := os.ReadDir(tmpDir)
		Expect(err).ToNot(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Name()).To(Equal("out.bin"))
	})

	It("removes the staged file on destroy", func() {
		sf, err := New(tmpDir, "out-")
		Expect(err).ToNot(HaveOccurred())

		_, err = sf.Write([]byte("doomed"))
		Expect(err).ToNot(HaveOccurred())
		Expect(sf.Destroy()).To(Succeed())

		entries, err := os.ReadDir(tmpDir)
		Expect(err).ToNot(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})

	It("cannot commit after destroy", func() {
		sf, err := New(tmpDir, "out-")
		Expect(err).ToNot(HaveOccurred())
		Expect(sf.Destroy()).To(Succeed())

		Expect(sf.Commit(filepath.Join(tmpDir, "out.bin"))).ToNot(Succeed())
	})

	It("tolerates a double destroy", func() {
		sf, err := New(tmpDir, "out-")
		Expect(err).ToNot(HaveOccurred())
		Expect(sf.Destroy()).To(Succeed())
		Expect(sf.Destroy()).To(Succeed())
	})
})

func TestStagingFile(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "StagingFile Tests")
}
