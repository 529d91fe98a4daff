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
	"os"
	"path/filepath"

	"github.com/dariprim/otik/huffman"
	"github.com/dariprim/otik/support/logging"
	"github.com/dariprim/otik/support/stagingfile"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

// Policy selects how the writer chooses each entry's codec.
type Policy int

// Policy values.
const (
	// PolicyAdaptive compares the full Huffman cost (payload plus service
	// metadata plus checksum, if enabled) against the raw size per entry,
	// and stores raw whenever compression does not strictly win. v3 only.
	PolicyAdaptive Policy = iota
	// PolicyStore forces raw storage for every entry.
	PolicyStore
	// PolicyHuffman forces Huffman coding for every entry. v2 and v3.
	PolicyHuffman
	// PolicyZlib forces zlib compression for every entry. v1 only.
	PolicyZlib
)

func (p Policy) String() string {
	switch p {
	case PolicyAdaptive:
		return "adaptive"
	case PolicyStore:
		return "store"
	case PolicyHuffman:
		return "huffman"
	case PolicyZlib:
		return "zlib"
	default:
		return "unknown"
	}
}

// WriterConfig is a configuration for archive creation.
type WriterConfig struct {
	// Version is the schema version to emit: 1, 2 or 3. Zero means
	// VersionCurrent.
	Version uint16

	// Policy selects the codec. Not every policy is expressible in every
	// schema version; WriteArchive rejects invalid combinations.
	Policy Policy

	// Protect, if true, records a CRC32 over each entry's original bytes.
	Protect bool

	// TempDir is the directory used to stage the output file. If empty, the
	// destination's directory is used so the final rename is atomic.
	TempDir string

	// Logger, if not nil, receives per-entry progress logs.
	Logger logging.L
}

func (cfg *WriterConfig) version() uint16 {
	if cfg.Version == 0 {
		return VersionCurrent
	}
	return cfg.Version
}

// headerCodec returns the archive-global codec tag for the configured
// version, validating the version/policy combination.
func (cfg *WriterConfig) headerCodec() (Codec, error) {
	switch v := cfg.version(); v {
	case 1:
		switch cfg.Policy {
		case PolicyStore:
			return CodecStore, nil
		case PolicyZlib:
			return CodecZlib, nil
		}
	case 2:
		switch cfg.Policy {
		case PolicyStore:
			return CodecStore, nil
		case PolicyHuffman:
			return CodecHuffman, nil
		}
	case 3:
		// v3 resolves codecs per entry; the header tag stays 0.
		switch cfg.Policy {
		case PolicyAdaptive, PolicyStore, PolicyHuffman:
			return CodecStore, nil
		}
	default:
		return 0, errors.Errorf("cannot write schema version %d", v)
	}
	return 0, errors.Errorf("policy %s is not expressible in schema version %d", cfg.Policy, cfg.version())
}

// encodedEntry is one entry after codec resolution, ready for assembly.
type encodedEntry struct {
	toc     tocEntry
	payload []byte
}

// WriteArchive encodes entries into a single archive at path.
//
// The file is staged and atomically renamed into place, so a failed write
// never leaves a corrupted file at path. The returned report carries the
// resolved codec and sizes for each entry.
func (cfg *WriterConfig) WriteArchive(path string, entries []Entry) (*Report, error) {
	logger := logging.Must(cfg.Logger)

	globalCodec, err := cfg.headerCodec()
	if err != nil {
		return nil, err
	}

	protection := ProtectionNone
	if cfg.Protect {
		protection = ProtectionCRC32
	}

	report := Report{
		Version:    cfg.version(),
		Protection: protection,
	}

	encoded := make([]encodedEntry, 0, len(entries))
	tocLen := 0
	for i := range entries {
		ee, err := cfg.encodeEntry(&entries[i], globalCodec)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding entry %q", entries[i].Path)
		}

		logger.Debugf("encoded %q: %d => %d bytes", entries[i].Path, len(entries[i].Data), len(ee.payload))
		tocLen += ee.toc.encodedLen()
		encoded = append(encoded, ee)
		report.Entries = append(report.Entries, EntryReport{
			Path:       entries[i].Path,
			Kind:       entries[i].Kind,
			Codec:      entryCodecTag(&ee, cfg.version(), globalCodec),
			OrigSize:   ee.toc.OrigSize,
			StoredSize: ee.toc.StoredSize,
		})
	}

	hdr := fileHeader{
		Version:    cfg.version(),
		Codec:      uint8(globalCodec),
		Protection: uint8(protection),
		HeaderSize: uint64(fixedHeaderLen + tocLen),
		EntryCount: uint32(len(encoded)),
	}

	if err := cfg.commitArchive(path, &hdr, encoded); err != nil {
		return nil, err
	}

	archiveWrites.Inc()
	logger.Infof("wrote archive %q: %d entries, header %d bytes", path, len(encoded), hdr.HeaderSize)
	return &report, nil
}

// entryCodecTag recovers the per-entry codec for reporting. In v3 it is the
// leading service byte; earlier versions use the archive-global tag.
func entryCodecTag(ee *encodedEntry, version uint16, globalCodec Codec) Codec {
	if version == 3 && len(ee.toc.Service) > 0 {
		return Codec(ee.toc.Service[0])
	}
	return globalCodec
}

// encodeEntry resolves the entry's codec per the configured policy and
// builds its TOC record and payload block.
func (cfg *WriterConfig) encodeEntry(e *Entry, globalCodec Codec) (encodedEntry, error) {
	ee := encodedEntry{
		toc: tocEntry{
			Kind:     uint8(e.Kind),
			Path:     e.Path,
			OrigSize: uint64(len(e.Data)),
		},
	}

	codec := globalCodec
	var payload, service []byte
	preEncoded := false

	if cfg.version() == 3 {
		switch cfg.Policy {
		case PolicyStore:
			codec = CodecStore
		case PolicyHuffman:
			codec = CodecHuffman
		case PolicyAdaptive:
			// Encode up front and keep the result only if the stored total
			// (payload plus service metadata plus checksum, when enabled)
			// strictly beats the raw size; ties go to raw storage.
			hp, hs, err := huffman.Encode(e.Data)
			if err != nil {
				return ee, err
			}
			total := uint64(len(hp)) + uint64(len(hs))
			if cfg.Protect {
				total += 4
			}
			if total >= uint64(len(e.Data)) {
				codec = CodecStore
			} else {
				codec = CodecHuffman
				payload, service = hp, hs
				preEncoded = true
			}
		default:
			return ee, errors.Errorf("policy %s is not valid for per-entry selection", cfg.Policy)
		}
	}

	if !preEncoded {
		var err error
		if payload, service, err = encodePayload(codec, e.Data); err != nil {
			return ee, err
		}
	}

	// Attach the checksum per the schema's service blob layout. v1 places
	// it first; v2 trails it; v3 trails it only for compressed entries.
	if cfg.Protect {
		sum := crc32.ChecksumIEEE(e.Data)
		switch cfg.version() {
		case 1:
			service = append(binary.LittleEndian.AppendUint32(nil, sum), service...)
		case 2:
			service = binary.LittleEndian.AppendUint32(service, sum)
		case 3:
			if codec != CodecStore {
				service = binary.LittleEndian.AppendUint32(service, sum)
			}
		}
	}

	if cfg.version() == 3 {
		service = append([]byte{byte(codec)}, service...)
	}

	ee.payload = payload
	ee.toc.StoredSize = uint64(len(payload))
	ee.toc.Service = service
	entriesEncoded.WithLabelValues(codec.String()).Inc()
	return ee, nil
}

// encodePayload applies codec to data, returning the stored payload and the
// codec-specific service metadata.
func encodePayload(codec Codec, data []byte) (payload, service []byte, err error) {
	switch codec {
	case CodecStore:
		return data, nil, nil

	case CodecZlib:
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, nil, errors.Wrap(err, "zlib compression")
		}
		if err := zw.Close(); err != nil {
			return nil, nil, errors.Wrap(err, "closing zlib writer")
		}
		return buf.Bytes(), nil, nil

	case CodecHuffman:
		return huffman.Encode(data)

	default:
		return nil, nil, errors.Errorf("cannot encode with codec %d", codec)
	}
}

// commitArchive assembles and stages the final file, renaming it into place
// only after every section has been written.
func (cfg *WriterConfig) commitArchive(path string, hdr *fileHeader, encoded []encodedEntry) (err error) {
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = filepath.Dir(path)
	}
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return errors.Wrap(err, "creating staging directory")
	}

	sf, err := stagingfile.New(tempDir, filepath.Base(path)+".stage-")
	if err != nil {
		return errors.Wrap(err, "creating staging file")
	}
	defer func() {
		// Cleanup if we failed to commit.
		if sf != nil {
			_ = sf.Destroy()
		}
	}()

	bw := bufio.NewWriter(sf)
	if _, err := bw.Write(Signature); err != nil {
		return err
	}
	if err := struc.Pack(bw, hdr); err != nil {
		return errors.Wrap(err, "packing header")
	}
	for i := range encoded {
		if err := struc.Pack(bw, &encoded[i].toc); err != nil {
			return errors.Wrapf(err, "packing TOC entry %q", encoded[i].toc.Path)
		}
	}
	for i := range encoded {
		if _, err := bw.Write(encoded[i].payload); err != nil {
			return errors.Wrapf(err, "writing payload for %q", encoded[i].toc.Path)
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	if err := sf.Commit(path); err != nil {
		return errors.Wrap(err, "committing staging file")
	}
	sf = nil // Committed, owned by the destination now.
	return nil
}

// WriteV0 writes the bare v0 single-payload layout: the 6-byte signature
// prefix, a zero version, a uint64 length, and the raw bytes.
func WriteV0(path string, data []byte) error {
	head := signaturePrefix
	head = binary.LittleEndian.AppendUint16(append([]byte(nil), head...), 0)
	head = binary.LittleEndian.AppendUint64(head, uint64(len(data)))

	sf, err := stagingfile.New(filepath.Dir(path), filepath.Base(path)+".stage-")
	if err != nil {
		return errors.Wrap(err, "creating staging file")
	}
	if _, err := sf.Write(head); err != nil {
		_ = sf.Destroy()
		return err
	}
	if _, err := sf.Write(data); err != nil {
		_ = sf.Destroy()
		return err
	}
	return sf.Commit(path)
}
