// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package huffman

import (
	"encoding/binary"
	"io"

	"github.com/dariprim/otik/support/bitstream"
	"github.com/dariprim/otik/support/sliceio"

	"github.com/pkg/errors"
)

const (
	// serviceHeaderLen is the fixed service prefix: padding (uint16) plus
	// symbol count (uint16).
	serviceHeaderLen = 4
	// serviceSymbolLen is one (symbol uint8, count uint32) pair.
	serviceSymbolLen = 5
)

// Encode compresses data, returning the packed bitstream and the service
// metadata needed to reverse it.
//
// The service metadata holds, little-endian: the pad bit count (uint16,
// 0-7), the number of distinct symbols (uint16), and one (symbol uint8,
// count uint32) pair per symbol in ascending symbol order.
//
// Empty input yields an empty payload and a zero-symbol table.
func Encode(data []byte) (payload, service []byte, err error) {
	ft, err := CountFrequencies(data)
	if err != nil {
		return nil, nil, err
	}

	ct, err := buildCodes(buildTree(ft))
	if err != nil {
		return nil, nil, err
	}

	var bw bitstream.Writer
	for _, b := range data {
		c := ct[b]
		bw.WriteBits(c.Bits, c.Len)
	}

	return bw.Bytes(), appendService(nil, bw.Padding(), ft), nil
}

// Decode reverses Encode, reproducing exactly origSize original bytes.
//
// origSize bounds the walk so trailing pad bits are never misread as further
// symbols. Truncated or inconsistent service metadata, or a payload too
// short to yield origSize bytes, fail with an error.
func Decode(payload, service []byte, origSize uint64) ([]byte, error) {
	padding, ft, err := parseService(service)
	if err != nil {
		return nil, err
	}
	if total := ft.Total(); total != origSize {
		return nil, errors.Errorf("frequency table covers %d bytes, want %d", total, origSize)
	}
	if origSize == 0 {
		return nil, nil
	}

	root := buildTree(ft)
	br, err := bitstream.NewReader(payload, padding)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, origSize)
	n := root
	for uint64(len(out)) < origSize {
		bit, err := br.ReadBit()
		if err == io.EOF {
			return nil, errors.Errorf("bitstream exhausted after %d of %d bytes", len(out), origSize)
		}
		if bit == 0 {
			n = n.left
		} else {
			n = n.right
		}
		if n == nil {
			return nil, errors.New("bit sequence matches no code")
		}
		if n.leaf {
			out = append(out, n.symbol)
			n = root
		}
	}
	return out, nil
}

// appendService serializes the service metadata for ft onto dst.
func appendService(dst []byte, padding int, ft *FrequencyTable) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, uint16(padding))
	dst = binary.LittleEndian.AppendUint16(dst, uint16(ft.Symbols()))
	for sym := 0; sym < 256; sym++ {
		if ft[sym] == 0 {
			continue
		}
		dst = append(dst, byte(sym))
		dst = binary.LittleEndian.AppendUint32(dst, ft[sym])
	}
	return dst
}

// parseService deserializes service metadata produced by appendService.
func parseService(service []byte) (int, *FrequencyTable, error) {
	r := sliceio.R{Buffer: service}

	padding, err := r.Uint16()
	if err != nil {
		return 0, nil, errors.Wrap(err, "reading padding")
	}
	if padding > 7 {
		return 0, nil, errors.Errorf("invalid bit padding %d", padding)
	}

	numSyms, err := r.Uint16()
	if err != nil {
		return 0, nil, errors.Wrap(err, "reading symbol count")
	}
	if numSyms > 256 {
		return 0, nil, errors.Errorf("invalid symbol count %d", numSyms)
	}

	var ft FrequencyTable
	for i := 0; i < int(numSyms); i++ {
		sym, err := r.ReadByte()
		if err != nil {
			return 0, nil, errors.Wrapf(io.ErrUnexpectedEOF, "reading symbol #%d", i)
		}
		count, err := r.Uint32()
		if err != nil {
			return 0, nil, errors.Wrapf(err, "reading count for symbol 0x%02X", sym)
		}
		if count == 0 {
			return 0, nil, errors.Errorf("zero count for symbol 0x%02X", sym)
		}
		if ft[sym] != 0 {
			return 0, nil, errors.Errorf("duplicate symbol 0x%02X", sym)
		}
		ft[sym] = count
	}

	if r.Remaining() > 0 {
		return 0, nil, errors.Errorf("%d trailing bytes after frequency table", r.Remaining())
	}

	return int(padding), &ft, nil
}

// ServiceLen returns the serialized service metadata size for a table with
// the given number of distinct symbols.
func ServiceLen(symbols int) int { return serviceHeaderLen + symbols*serviceSymbolLen }
