// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package archive

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/dariprim/otik/huffman"
	"github.com/dariprim/otik/support/logging"
	"github.com/dariprim/otik/support/sliceio"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

// v0EntryName is the path that the TOC-less v0 layout materializes under,
// since v0 archives carry no path of their own.
const v0EntryName = "restored_v0.bin"

// DecodeOptions is a configuration for archive extraction.
type DecodeOptions struct {
	// Logger, if not nil, receives per-entry progress and integrity logs.
	Logger logging.L
}

// schemaVariant decodes one on-disk schema version. The set of variants is
// closed: the dispatcher selects one per archive from the version field and
// never switches afterwards.
type schemaVariant interface {
	decode(ds *decodeState) error
}

// schemaVariants routes a declared version to its decoder.
var schemaVariants = map[uint16]schemaVariant{
	0: v0Variant{},
	1: v1Variant{},
	2: v2Variant{},
	3: v3Variant{},
}

// decodeState is the shared cursor for one decode pass. Payload blocks are
// read back-to-back from r; entry offsets exist only as the running sum of
// preceding stored sizes, so entries decode strictly in TOC order.
type decodeState struct {
	r      *bufio.Reader
	size   int64 // total archive file size
	outDir string
	logger logging.L

	hdr    fileHeader // valid for v1+
	report *Report
}

// DecodeArchive extracts the archive at path into outDir.
//
// The archive's declared version routes it to one of the known schema
// variants; an unknown version or a malformed header/TOC is fatal and
// nothing is written. A per-entry checksum mismatch is not fatal: it is
// logged, recorded in the report, and the recovered bytes are still
// materialized.
func (o *DecodeOptions) DecodeArchive(path, outDir string) (*Report, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = fd.Close()
	}()

	st, err := fd.Stat()
	if err != nil {
		return nil, err
	}

	ds := decodeState{
		r:      bufio.NewReader(fd),
		size:   st.Size(),
		outDir: outDir,
		logger: logging.Must(o.Logger),
		report: &Report{},
	}

	var head [signatureLen]byte
	if _, err := io.ReadFull(ds.r, head[:]); err != nil {
		return nil, errors.Wrap(ErrFormat, "reading signature")
	}
	if !bytes.Equal(head[:len(signaturePrefix)], signaturePrefix) {
		return nil, errors.Wrapf(ErrFormat, "bad signature %q", head[:len(signaturePrefix)])
	}

	// v0 stores its version inside the signature field; later layouts keep
	// ASCII digits there and declare the real version in the header that
	// follows.
	version := binary.LittleEndian.Uint16(head[len(signaturePrefix):])
	if version != 0 {
		if err := struc.Unpack(ds.r, &ds.hdr); err != nil {
			return nil, errors.Wrapf(ErrFormat, "reading header: %v", err)
		}
		version = ds.hdr.Version
	}
	ds.report.Version = version
	ds.report.Protection = Protection(ds.hdr.Protection)

	variant, ok := schemaVariants[version]
	if !ok {
		return nil, errors.Wrapf(ErrFormat, "unknown schema version %d", version)
	}

	ds.logger.Debugf("decoding %q: schema version %d", path, version)
	if err := variant.decode(&ds); err != nil {
		return nil, err
	}

	archiveReads.Inc()
	return ds.report, nil
}

// readTOC reads and validates the table of contents for v1+ archives.
//
// The declared sizes are hostile input: the entry count, path and service
// lengths must all fit inside the declared header size, and the header size
// inside the file, before anything is allocated from them. The declared
// header size must equal the fixed header plus the TOC byte-for-byte, and
// the payload section implied by the stored sizes must fit in the file.
func (ds *decodeState) readTOC() ([]tocEntry, error) {
	if ds.hdr.HeaderSize > uint64(ds.size) {
		return nil, errors.Wrapf(ErrFormat, "declared header size %d exceeds file size %d", ds.hdr.HeaderSize, ds.size)
	}
	if ds.hdr.HeaderSize < fixedHeaderLen ||
		ds.hdr.HeaderSize-fixedHeaderLen < uint64(ds.hdr.EntryCount)*tocEntryFixedLen {
		return nil, errors.Wrapf(ErrFormat, "header size %d cannot hold %d TOC entries", ds.hdr.HeaderSize, ds.hdr.EntryCount)
	}

	region := make([]byte, ds.hdr.HeaderSize-fixedHeaderLen)
	if _, err := io.ReadFull(ds.r, region); err != nil {
		return nil, errors.Wrapf(ErrFormat, "reading TOC: %v", err)
	}

	r := sliceio.R{Buffer: region}
	entries := make([]tocEntry, ds.hdr.EntryCount)
	var payloadLen uint64
	for i := range entries {
		if err := parseTOCEntry(&r, &entries[i]); err != nil {
			return nil, errors.Wrapf(ErrFormat, "reading TOC entry #%d: %v", i, err)
		}
		if entries[i].StoredSize > uint64(ds.size) {
			return nil, errors.Wrapf(ErrFormat, "entry %q declares %d stored bytes, file has %d",
				entries[i].Path, entries[i].StoredSize, ds.size)
		}
		payloadLen += entries[i].StoredSize
		if payloadLen > uint64(ds.size) {
			return nil, errors.Wrapf(ErrFormat, "payload section truncated: need %d bytes, file has %d",
				payloadLen, ds.size)
		}
	}

	if r.Remaining() > 0 {
		return nil, errors.Wrapf(ErrFormat, "header size mismatch: %d trailing TOC bytes", r.Remaining())
	}
	if ds.hdr.HeaderSize > uint64(ds.size)-payloadLen {
		return nil, errors.Wrapf(ErrFormat, "payload section truncated: need %d bytes, file has %d",
			ds.hdr.HeaderSize+payloadLen, ds.size)
	}
	return entries, nil
}

// parseTOCEntry decodes one TOC record from the bounds-checked TOC region.
// Every variable-length section is validated against the region before it is
// taken, so forged lengths fail instead of allocating.
func parseTOCEntry(r *sliceio.R, te *tocEntry) error {
	var err error
	if te.Kind, err = r.ReadByte(); err != nil {
		return errors.Wrap(io.ErrUnexpectedEOF, "reading kind")
	}
	if te.PathLen, err = r.Uint16(); err != nil {
		return errors.Wrap(err, "reading path length")
	}
	path, err := r.Next(int(te.PathLen))
	if err != nil {
		return errors.Wrap(err, "reading path")
	}
	te.Path = string(path)

	if te.OrigSize, err = r.Uint64(); err != nil {
		return errors.Wrap(err, "reading original size")
	}
	if te.StoredSize, err = r.Uint64(); err != nil {
		return errors.Wrap(err, "reading stored size")
	}

	if te.ServiceLen, err = r.Uint32(); err != nil {
		return errors.Wrap(err, "reading service length")
	}
	service, err := r.Next(int(te.ServiceLen))
	if err != nil {
		return errors.Wrap(err, "reading service blob")
	}
	te.Service = service
	return nil
}

// entryCodec is one entry's schema-resolved decode parameters: the codec,
// its codec-specific metadata, and the expected checksum, if any. Variants
// produce it so the codec and integrity layers stay schema-agnostic.
type entryCodec struct {
	codec    Codec
	meta     []byte
	checksum *uint32
}

// decodeEntries drives the shared per-entry pipeline for v1+ archives:
// resolve codec, read the payload block, decode, verify, materialize.
func (ds *decodeState) decodeEntries(entries []tocEntry, resolve func(*tocEntry) (entryCodec, error)) error {
	for i := range entries {
		te := &entries[i]

		ec, err := resolve(te)
		if err != nil {
			return errors.Wrapf(err, "entry %q", te.Path)
		}

		stored := make([]byte, te.StoredSize)
		if _, err := io.ReadFull(ds.r, stored); err != nil {
			return errors.Wrapf(ErrFormat, "reading payload for %q: %v", te.Path, err)
		}

		er := EntryReport{
			Path:       te.Path,
			Kind:       EntryKind(te.Kind),
			Codec:      ec.codec,
			OrigSize:   te.OrigSize,
			StoredSize: te.StoredSize,
		}

		if EntryKind(te.Kind) != KindFile {
			// Directories are flattened into their contained files on write;
			// a bare directory record carries no payload to restore.
			ds.report.Entries = append(ds.report.Entries, er)
			continue
		}

		raw, err := decodePayload(ec, stored, te.OrigSize)
		if err != nil {
			return errors.Wrapf(err, "entry %q", te.Path)
		}

		if ec.checksum != nil {
			if got := crc32.ChecksumIEEE(raw); got != *ec.checksum {
				ierr := &IntegrityError{Path: te.Path, Want: *ec.checksum, Got: got}
				er.IntegrityErr = ierr
				integrityFailures.Inc()
				ds.logger.Warnf("%s; keeping recovered bytes", ierr)
			}
		}

		if err := ds.materialize(te.Path, raw); err != nil {
			return err
		}
		entriesDecoded.WithLabelValues(ec.codec.String()).Inc()
		ds.logger.Debugf("restored %q (%d bytes, %s)", te.Path, len(raw), ec.codec)
		ds.report.Entries = append(ds.report.Entries, er)
	}
	return nil
}

// decodePayload reverses the entry's codec.
func decodePayload(ec entryCodec, stored []byte, origSize uint64) ([]byte, error) {
	switch ec.codec {
	case CodecStore:
		if uint64(len(stored)) != origSize {
			return nil, errors.Wrapf(ErrFormat, "stored entry is %d bytes, want %d", len(stored), origSize)
		}
		return stored, nil

	case CodecZlib:
		zr, err := zlib.NewReader(bytes.NewReader(stored))
		if err != nil {
			return nil, errors.Wrapf(ErrFormat, "opening zlib stream: %v", err)
		}
		raw, err := io.ReadAll(zr)
		if err != nil {
			return nil, errors.Wrapf(ErrFormat, "zlib decompression: %v", err)
		}
		return raw, nil

	case CodecHuffman:
		raw, err := huffman.Decode(stored, ec.meta, origSize)
		if err != nil {
			return nil, errors.Wrapf(ErrFormat, "huffman decoding: %v", err)
		}
		return raw, nil

	default:
		return nil, errors.Wrapf(ErrFormat, "unsupported codec %d", ec.codec)
	}
}

// materialize writes raw under the output root, rejecting any entry path
// that would escape it.
func (ds *decodeState) materialize(relPath string, raw []byte) error {
	if relPath == "" || !filepath.IsLocal(filepath.FromSlash(relPath)) {
		return errors.Wrapf(ErrFormat, "entry path %q escapes the output directory", relPath)
	}

	target := filepath.Join(ds.outDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Wrapf(err, "creating directory for %q", relPath)
	}
	if err := os.WriteFile(target, raw, 0644); err != nil {
		return errors.Wrapf(err, "writing %q", relPath)
	}
	return nil
}

// v0Variant decodes the bare single-payload layout: a uint64 length after
// the signature field, then the raw bytes. No TOC, no codec, no checksum.
type v0Variant struct{}

func (v0Variant) decode(ds *decodeState) error {
	length, err := readUint64(ds.r)
	if err != nil {
		return errors.Wrap(ErrFormat, "reading v0 length")
	}
	if uint64(ds.size) < uint64(signatureLen)+8+length {
		return errors.Wrapf(ErrFormat, "v0 payload truncated: need %d bytes, file has %d", length, ds.size)
	}

	raw := make([]byte, length)
	if _, err := io.ReadFull(ds.r, raw); err != nil {
		return errors.Wrap(ErrFormat, "reading v0 payload")
	}
	if err := ds.materialize(v0EntryName, raw); err != nil {
		return err
	}

	entriesDecoded.WithLabelValues(CodecStore.String()).Inc()
	ds.report.Entries = append(ds.report.Entries, EntryReport{
		Path:       v0EntryName,
		Kind:       KindFile,
		Codec:      CodecStore,
		OrigSize:   length,
		StoredSize: length,
	})
	return nil
}

// v1Variant: archive-global codec (store or zlib); a CRC32, when enabled,
// occupies the first 4 bytes of each entry's service blob.
type v1Variant struct{}

func (v1Variant) decode(ds *decodeState) error {
	entries, err := ds.readTOC()
	if err != nil {
		return err
	}

	codec := Codec(ds.hdr.Codec)
	if codec != CodecStore && codec != CodecZlib {
		return errors.Wrapf(ErrFormat, "unsupported v1 codec %d", codec)
	}

	return ds.decodeEntries(entries, func(te *tocEntry) (entryCodec, error) {
		ec := entryCodec{codec: codec}
		if Protection(ds.hdr.Protection) == ProtectionCRC32 && len(te.Service) >= 4 {
			sum := binary.LittleEndian.Uint32(te.Service[:4])
			ec.checksum = &sum
		}
		return ec, nil
	})
}

// v2Variant: archive-global codec that may be Huffman; for Huffman entries
// the CRC32, when enabled, trails the service blob and must be stripped
// before the remainder is parsed as a frequency table.
type v2Variant struct{}

func (v2Variant) decode(ds *decodeState) error {
	entries, err := ds.readTOC()
	if err != nil {
		return err
	}

	codec := Codec(ds.hdr.Codec)
	switch codec {
	case CodecStore, CodecZlib, CodecHuffman:
	default:
		return errors.Wrapf(ErrFormat, "unsupported v2 codec %d", codec)
	}

	return ds.decodeEntries(entries, func(te *tocEntry) (entryCodec, error) {
		ec := entryCodec{codec: codec, meta: te.Service}
		if Protection(ds.hdr.Protection) == ProtectionCRC32 && len(te.Service) >= 4 {
			sum := binary.LittleEndian.Uint32(te.Service[len(te.Service)-4:])
			ec.checksum = &sum
			ec.meta = te.Service[:len(te.Service)-4]
		}
		return ec, nil
	})
}

// v3Variant: the codec is per-entry, stored as the first byte of each
// entry's service blob; the rest is codec-specific metadata.
type v3Variant struct{}

func (v3Variant) decode(ds *decodeState) error {
	entries, err := ds.readTOC()
	if err != nil {
		return err
	}

	return ds.decodeEntries(entries, func(te *tocEntry) (entryCodec, error) {
		ec := entryCodec{codec: CodecStore}
		if len(te.Service) > 0 {
			ec.codec = Codec(te.Service[0])
			ec.meta = te.Service[1:]
		}
		switch ec.codec {
		case CodecStore, CodecHuffman:
		default:
			return ec, errors.Wrapf(ErrFormat, "unsupported v3 codec %d", ec.codec)
		}

		if Protection(ds.hdr.Protection) == ProtectionCRC32 && len(ec.meta) >= 4 {
			sum := binary.LittleEndian.Uint32(ec.meta[len(ec.meta)-4:])
			ec.checksum = &sum
			ec.meta = ec.meta[:len(ec.meta)-4]
		}
		return ec, nil
	})
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
