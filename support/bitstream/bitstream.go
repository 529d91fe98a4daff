// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package bitstream packs and unpacks sequences of individual bits into
// bytes, most significant bit first.
//
// A stream of k bits occupies ceil(k/8) bytes; the final byte is right-padded
// with zero bits. The pad width (0-7) is not part of the stream and must be
// carried out of band by the caller.
package bitstream

import (
	"io"

	"github.com/pkg/errors"
)

// Writer accumulates bits into a byte buffer, MSB first.
//
// The zero value is an empty writer, ready for use.
type Writer struct {
	buf  []byte
	used uint // bits used in the final byte of buf, 0..8
}

// WriteBit appends a single bit. Any nonzero value is written as 1.
func (w *Writer) WriteBit(bit byte) {
	if w.used == 0 || w.used == 8 {
		w.buf = append(w.buf, 0)
		w.used = 0
	}
	if bit != 0 {
		w.buf[len(w.buf)-1] |= 1 << (7 - w.used)
	}
	w.used++
}

// WriteBits appends the n low bits of v, most significant first.
func (w *Writer) WriteBits(v uint64, n uint8) {
	for i := int(n) - 1; i >= 0; i-- {
		w.WriteBit(byte((v >> uint(i)) & 1))
	}
}

// Len returns the total number of bits written.
func (w *Writer) Len() int {
	if len(w.buf) == 0 {
		return 0
	}
	return (len(w.buf)-1)*8 + int(w.used)
}

// Padding returns the number of zero pad bits in the final byte (0-7).
func (w *Writer) Padding() int {
	if w.used == 0 || w.used == 8 {
		return 0
	}
	return int(8 - w.used)
}

// Bytes returns the packed stream. The final byte is zero-padded.
func (w *Writer) Bytes() []byte { return w.buf }

// Reader consumes a packed stream bit by bit, MSB first.
type Reader struct {
	data []byte
	pos  int // bit cursor
	n    int // total significant bits
}

// NewReader returns a Reader over data whose final byte carries padding zero
// pad bits.
func NewReader(data []byte, padding int) (*Reader, error) {
	if padding < 0 || padding > 7 {
		return nil, errors.Errorf("invalid bit padding %d", padding)
	}
	n := len(data) * 8
	if padding > 0 {
		if len(data) == 0 {
			return nil, errors.New("padding declared on an empty stream")
		}
		n -= padding
	}
	return &Reader{data: data, n: n}, nil
}

// Remaining returns the number of unread significant bits.
func (r *Reader) Remaining() int { return r.n - r.pos }

// ReadBit returns the next bit, or io.EOF once all significant bits have
// been consumed.
func (r *Reader) ReadBit() (byte, error) {
	if r.pos >= r.n {
		return 0, io.EOF
	}

	b := (r.data[r.pos/8] >> (7 - uint(r.pos)%8)) & 1
	r.pos++
	return b, nil
}
