// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package archive reads and writes the L3ARCH container format.
//
// An archive is a fixed header, a table of contents (TOC), and the entries'
// payload blocks concatenated in TOC order. All integers are little-endian.
// Four schema versions exist on disk:
//
//	v0: bare single-payload format; the version lives inside the 8-byte
//	    signature field, followed by a uint64 length and the raw bytes.
//	v1: full header+TOC; the codec is archive-global (store or zlib), and a
//	    CRC32, when enabled, occupies the first 4 bytes of an entry's
//	    service blob.
//	v2: v1 plus an archive-global Huffman codec; for Huffman entries the
//	    CRC32 trails the service blob, after the frequency table.
//	v3: the codec is chosen per entry and stored as the first byte of each
//	    entry's service blob.
//
// Writers emit v3 unless configured otherwise; the decoder recognizes all
// four.
package archive

import (
	"fmt"

	"github.com/pkg/errors"
)

// Signature is the 8-byte signature field emitted by current writers. Only
// the first 6 bytes are validated on read.
var Signature = []byte("L3ARCH04")

// signaturePrefix is the mandatory 6-byte prefix of the signature field.
var signaturePrefix = []byte("L3ARCH")

const (
	// signatureLen is the size of the on-disk signature field.
	signatureLen = 8

	// fixedHeaderLen is the byte length of the signature field plus the
	// fixed v1+ header that follows it.
	fixedHeaderLen = signatureLen + 2 + 1 + 1 + 1 + 1 + 8 + 4

	// tocEntryFixedLen is the byte length of a TOC entry minus its
	// variable-length path and service sections.
	tocEntryFixedLen = 1 + 2 + 8 + 8 + 4

	// VersionCurrent is the schema version emitted by default.
	VersionCurrent = 3

	// maxPathDepth bounds the directory depth of entry paths.
	maxPathDepth = 4
)

// Codec identifies a per-entry compression algorithm.
type Codec uint8

// Codec values, fixed by the on-disk format.
const (
	CodecStore   Codec = 0
	CodecZlib    Codec = 2
	CodecHuffman Codec = 3
)

func (c Codec) String() string {
	switch c {
	case CodecStore:
		return "store"
	case CodecZlib:
		return "zlib"
	case CodecHuffman:
		return "huffman"
	default:
		return "unknown"
	}
}

// Protection identifies the integrity scheme applied to entries.
type Protection uint8

// Protection values, fixed by the on-disk format.
const (
	ProtectionNone  Protection = 0
	ProtectionCRC32 Protection = 11
)

// EntryKind identifies the type of a TOC entry.
type EntryKind uint8

// EntryKind values.
const (
	KindDir  EntryKind = 0
	KindFile EntryKind = 1
)

// Entry is one input to the archive writer: a forward-slash-relative path
// and the raw bytes stored under it.
type Entry struct {
	Kind EntryKind
	Path string
	Data []byte
}

// fileHeader is the fixed v1+ header that immediately follows the signature
// field.
type fileHeader struct {
	Version    uint16 `struc:",little"`
	AlgCtx     uint8
	Codec      uint8
	Protection uint8
	Reserved   uint8
	HeaderSize uint64 `struc:",little"`
	EntryCount uint32 `struc:",little"`
}

// tocEntry is one table-of-contents record. PathLen and ServiceLen are
// populated from their variable sections on pack.
type tocEntry struct {
	Kind       uint8
	PathLen    uint16 `struc:",little,sizeof=Path"`
	Path       string
	OrigSize   uint64 `struc:",little"`
	StoredSize uint64 `struc:",little"`
	ServiceLen uint32 `struc:",little,sizeof=Service"`
	Service    []byte
}

// encodedLen returns the serialized byte length of te.
func (te *tocEntry) encodedLen() int {
	return tocEntryFixedLen + len(te.Path) + len(te.Service)
}

// ErrFormat is the cause of every fatal format error: bad signature,
// unknown version, truncated header/TOC/service blob, or an unsupported
// codec id. Callers can test for it with IsFormatError.
var ErrFormat = errors.New("invalid archive format")

// IsFormatError reports whether err is a fatal archive format error.
func IsFormatError(err error) bool { return errors.Cause(err) == ErrFormat }

// IntegrityError reports a per-entry checksum mismatch. It is non-fatal:
// the decoder still materializes the recovered bytes and continues with the
// remaining entries.
type IntegrityError struct {
	Path string
	Want uint32
	Got  uint32
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("checksum mismatch for %q: want %08X, got %08X", e.Path, e.Want, e.Got)
}
