// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package archive

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo"
	table "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("End-to-End", func() {
	var (
		tmpDir  string
		entries []Entry
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "archive_test")
		Expect(err).ToNot(HaveOccurred())

		entries = []Entry{
			{Kind: KindFile, Path: "docs/readme.txt", Data: []byte("an archive holds more than one file, and each file round-trips")},
			{Kind: KindFile, Path: "empty.bin", Data: nil},
			{Kind: KindFile, Path: "data/blob.bin", Data: bytes.Repeat([]byte{0xAA, 0xBB, 0xCC}, 512)},
		}
	})

	AfterEach(func() {
		Expect(os.RemoveAll(tmpDir)).To(Succeed())
	})

	archivePath := func() string { return filepath.Join(tmpDir, "out.l3a") }
	outDir := func() string { return filepath.Join(tmpDir, "restored") }

	write := func(cfg WriterConfig) *Report {
		report, err := cfg.WriteArchive(archivePath(), entries)
		Expect(err).ToNot(HaveOccurred())
		Expect(report.Entries).To(HaveLen(len(entries)))
		return report
	}

	decode := func() *Report {
		opts := DecodeOptions{}
		report, err := opts.DecodeArchive(archivePath(), outDir())
		Expect(err).ToNot(HaveOccurred())
		return report
	}

	expectRestored := func() {
		for _, e := range entries {
			data, err := os.ReadFile(filepath.Join(outDir(), filepath.FromSlash(e.Path)))
			Expect(err).ToNot(HaveOccurred())
			if len(e.Data) == 0 {
				Expect(data).To(BeEmpty())
			} else {
				Expect(data).To(Equal(e.Data))
			}
		}
	}

	table.DescribeTable("round-trips across schema versions and policies",
		func(cfg WriterConfig) {
			wrote := write(cfg)

			read := decode()
			Expect(read.Version).To(Equal(wrote.Version))
			Expect(read.IntegrityFailures()).To(BeEmpty())
			Expect(read.Entries).To(HaveLen(len(entries)))
			expectRestored()
		},

		table.Entry("v1 store", WriterConfig{Version: 1, Policy: PolicyStore}),
		table.Entry("v1 store, protected", WriterConfig{Version: 1, Policy: PolicyStore, Protect: true}),
		table.Entry("v1 zlib", WriterConfig{Version: 1, Policy: PolicyZlib}),
		table.Entry("v1 zlib, protected", WriterConfig{Version: 1, Policy: PolicyZlib, Protect: true}),
		table.Entry("v2 store", WriterConfig{Version: 2, Policy: PolicyStore}),
		table.Entry("v2 huffman", WriterConfig{Version: 2, Policy: PolicyHuffman}),
		table.Entry("v2 huffman, protected", WriterConfig{Version: 2, Policy: PolicyHuffman, Protect: true}),
		table.Entry("v3 store", WriterConfig{Version: 3, Policy: PolicyStore}),
		table.Entry("v3 huffman", WriterConfig{Version: 3, Policy: PolicyHuffman}),
		table.Entry("v3 adaptive", WriterConfig{Version: 3, Policy: PolicyAdaptive}),
		table.Entry("v3 adaptive, protected", WriterConfig{Version: 3, Policy: PolicyAdaptive, Protect: true}),
		table.Entry("default version", WriterConfig{}),
	)

	table.DescribeTable("rejects inexpressible version/policy combinations",
		func(cfg WriterConfig) {
			_, err := cfg.WriteArchive(archivePath(), entries)
			Expect(err).To(HaveOccurred())

			_, statErr := os.Stat(archivePath())
			Expect(os.IsNotExist(statErr)).To(BeTrue())
		},

		table.Entry("v1 huffman", WriterConfig{Version: 1, Policy: PolicyHuffman}),
		table.Entry("v1 adaptive", WriterConfig{Version: 1, Policy: PolicyAdaptive}),
		table.Entry("v2 zlib", WriterConfig{Version: 2, Policy: PolicyZlib}),
		table.Entry("v2 adaptive", WriterConfig{Version: 2, Policy: PolicyAdaptive}),
		table.Entry("v3 zlib", WriterConfig{Version: 3, Policy: PolicyZlib}),
		table.Entry("version 4", WriterConfig{Version: 4, Policy: PolicyStore}),
	)

	Context("adaptive codec selection", func() {
		It("stores incompressible data raw", func() {
			data := make([]byte, 256)
			for i := range data {
				data[i] = byte(i)
			}
			entries = []Entry{{Kind: KindFile, Path: "noise.bin", Data: data}}

			report := write(WriterConfig{Policy: PolicyAdaptive})
			Expect(report.Entries[0].Codec).To(Equal(CodecStore))
			Expect(report.Entries[0].StoredSize).To(Equal(uint64(256)))

			decode()
			expectRestored()
		})

		It("compresses skewed data", func() {
			data := append(bytes.Repeat([]byte("A"), 4096), 'B', 'C')
			entries = []Entry{{Kind: KindFile, Path: "skewed.bin", Data: data}}

			report := write(WriterConfig{Policy: PolicyAdaptive})
			Expect(report.Entries[0].Codec).To(Equal(CodecHuffman))
			Expect(report.Entries[0].StoredSize).To(BeNumerically("<", len(data)))

			decode()
			expectRestored()
		})
	})

	Context("integrity protection", func() {
		It("detects a corrupted payload and still restores the bytes", func() {
			entries = []Entry{{Kind: KindFile, Path: "a.txt", Data: []byte("hello world")}}
			write(WriterConfig{Version: 1, Policy: PolicyStore, Protect: true})

			// Flip the final payload byte in place.
			raw, err := os.ReadFile(archivePath())
			Expect(err).ToNot(HaveOccurred())
			raw[len(raw)-1] ^= 0xFF
			Expect(os.WriteFile(archivePath(), raw, 0644)).To(Succeed())

			report := decode()
			Expect(report.IntegrityFailures()).To(HaveLen(1))
			Expect(report.IntegrityFailures()[0].Path).To(Equal("a.txt"))

			data, err := os.ReadFile(filepath.Join(outDir(), "a.txt"))
			Expect(err).ToNot(HaveOccurred())
			Expect(data).To(HaveLen(len("hello world")))
		})
	})

	Context("with a malformed archive", func() {
		decodeErr := func() error {
			opts := DecodeOptions{}
			_, err := opts.DecodeArchive(archivePath(), outDir())
			return err
		}

		patch := func(mutate func(raw []byte) []byte) {
			raw, err := os.ReadFile(archivePath())
			Expect(err).ToNot(HaveOccurred())
			Expect(os.WriteFile(archivePath(), mutate(raw), 0644)).To(Succeed())
		}

		BeforeEach(func() {
			write(WriterConfig{})
		})

		It("fails fatally on an unknown version and writes nothing", func() {
			patch(func(raw []byte) []byte {
				binary.LittleEndian.PutUint16(raw[8:], 99)
				return raw
			})

			err := decodeErr()
			Expect(err).To(HaveOccurred())
			Expect(IsFormatError(err)).To(BeTrue())

			_, statErr := os.Stat(outDir())
			Expect(os.IsNotExist(statErr)).To(BeTrue())
		})

		It("fails fatally on a bad signature", func() {
			patch(func(raw []byte) []byte {
				raw[0] = 'X'
				return raw
			})

			err := decodeErr()
			Expect(err).To(HaveOccurred())
			Expect(IsFormatError(err)).To(BeTrue())
		})

		It("fails fatally on a truncated payload section", func() {
			patch(func(raw []byte) []byte {
				return raw[:len(raw)-2]
			})

			err := decodeErr()
			Expect(err).To(HaveOccurred())
			Expect(IsFormatError(err)).To(BeTrue())
		})

		It("rejects an entry count that cannot fit in the declared header", func() {
			head := append([]byte(nil), []byte("L3ARCH04")...)
			head = binary.LittleEndian.AppendUint16(head, 1) // version
			head = append(head, 0, 0, 0, 0)                  // algCtx, codec, protection, reserved
			head = binary.LittleEndian.AppendUint64(head, fixedHeaderLen)
			head = binary.LittleEndian.AppendUint32(head, 0xFFFFFFFF)
			Expect(os.WriteFile(archivePath(), head, 0644)).To(Succeed())

			err := decodeErr()
			Expect(err).To(HaveOccurred())
			Expect(IsFormatError(err)).To(BeTrue())
		})

		It("rejects a header size larger than the file", func() {
			patch(func(raw []byte) []byte {
				binary.LittleEndian.PutUint64(raw[14:22], uint64(len(raw))+1)
				return raw
			})

			err := decodeErr()
			Expect(err).To(HaveOccurred())
			Expect(IsFormatError(err)).To(BeTrue())
		})

		It("rejects a service length that overruns the TOC", func() {
			entries = []Entry{{Kind: KindFile, Path: "a.bin", Data: []byte("xyz")}}
			write(WriterConfig{Policy: PolicyStore})

			patch(func(raw []byte) []byte {
				// The service length field of the only TOC entry.
				off := fixedHeaderLen + 1 + 2 + len("a.bin") + 8 + 8
				binary.LittleEndian.PutUint32(raw[off:], 0xFFFFFF)
				return raw
			})

			err := decodeErr()
			Expect(err).To(HaveOccurred())
			Expect(IsFormatError(err)).To(BeTrue())
		})

		It("rejects an entry path that escapes the output directory", func() {
			entries = []Entry{{Kind: KindFile, Path: "../evil.txt", Data: []byte("nope")}}
			write(WriterConfig{})

			err := decodeErr()
			Expect(err).To(HaveOccurred())
			Expect(IsFormatError(err)).To(BeTrue())

			_, statErr := os.Stat(filepath.Join(tmpDir, "evil.txt"))
			Expect(os.IsNotExist(statErr)).To(BeTrue())
		})
	})

	Context("v0 archives", func() {
		It("round-trips the bare single-payload layout", func() {
			data := []byte("one payload, no table of contents")
			Expect(WriteV0(archivePath(), data)).To(Succeed())

			report := decode()
			Expect(report.Version).To(Equal(uint16(0)))
			Expect(report.Entries).To(HaveLen(1))
			Expect(report.Entries[0].Path).To(Equal(v0EntryName))

			restored, err := os.ReadFile(filepath.Join(outDir(), v0EntryName))
			Expect(err).ToNot(HaveOccurred())
			Expect(restored).To(Equal(data))
		})
	})

	Context("on-disk layout", func() {
		It("declares a header size that spans the signature, header and TOC", func() {
			entries = []Entry{{Kind: KindFile, Path: "a.bin", Data: []byte("xyz")}}
			write(WriterConfig{Policy: PolicyStore})

			raw, err := os.ReadFile(archivePath())
			Expect(err).ToNot(HaveOccurred())

			Expect(raw[:8]).To(Equal([]byte("L3ARCH04")))
			Expect(binary.LittleEndian.Uint16(raw[8:10])).To(Equal(uint16(3)))

			// TOC: fixed part, "a.bin", one codec byte of service.
			wantHeader := uint64(fixedHeaderLen + tocEntryFixedLen + 5 + 1)
			Expect(binary.LittleEndian.Uint64(raw[14:22])).To(Equal(wantHeader))
			Expect(binary.LittleEndian.Uint32(raw[22:26])).To(Equal(uint32(1)))

			Expect(raw).To(HaveLen(int(wantHeader) + 3))
			Expect(raw[wantHeader:]).To(Equal([]byte("xyz")))
		})
	})
})

func TestArchive(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Archive Tests")
}
