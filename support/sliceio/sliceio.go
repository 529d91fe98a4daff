// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package sliceio offers R, a bounds-checked reader over an in-memory byte
// slice with little-endian integer accessors.
//
// R is the parsing base for structured binary blobs whose layout is a
// sequence of fixed-width fields and length-prefixed variable sections. All
// accessors fail with io.ErrUnexpectedEOF instead of reading out of bounds,
// so a truncated blob surfaces as an error rather than a panic.
package sliceio

import (
	"encoding/binary"
	"io"
)

// R reads typed values from a backing byte slice.
//
// The zero value of R is an empty reader. R can be copied, creating a
// snapshot of its current position.
type R struct {
	// Buffer is the backing buffer for this reader.
	Buffer []byte

	pos int
}

var _ interface {
	io.Reader
	io.ByteReader
} = (*R)(nil)

func (r *R) remainingSlice() []byte {
	if r.pos >= len(r.Buffer) {
		return nil
	}
	return r.Buffer[r.pos:]
}

// Remaining returns the number of unread bytes.
func (r *R) Remaining() int { return len(r.remainingSlice()) }

// Read implements io.Reader.
func (r *R) Read(b []byte) (amt int, err error) {
	amt = copy(b, r.remainingSlice())
	r.pos += amt
	if r.pos >= len(r.Buffer) {
		err = io.EOF
	}
	return
}

// ReadByte implements io.ByteReader.
//
// Unlike the bulk accessors, ReadByte returns io.EOF at the end of the
// buffer so that it can terminate scanning loops naturally.
func (r *R) ReadByte() (byte, error) {
	if r.pos >= len(r.Buffer) {
		return 0, io.EOF
	}

	b := r.Buffer[r.pos]
	r.pos++
	return b, nil
}

// Next returns the next n bytes, advancing r.
//
// The returned slice references the backing buffer; it is valid as long as
// the buffer is. If fewer than n bytes remain, Next returns
// io.ErrUnexpectedEOF and does not advance.
func (r *R) Next(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, io.ErrUnexpectedEOF
	}

	v := r.Buffer[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

// Uint16 reads a little-endian uint16.
func (r *R) Uint16() (uint16, error) {
	v, err := r.Next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(v), nil
}

// Uint32 reads a little-endian uint32.
func (r *R) Uint32() (uint32, error) {
	v, err := r.Next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(v), nil
}

// Uint64 reads a little-endian uint64.
func (r *R) Uint64() (uint64, error) {
	v, err := r.Next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(v), nil
}
