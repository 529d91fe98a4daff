// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package entropy measures zeroth-order (memoryless) information content of
// byte streams and Unicode text, and renders the measurements as plain-text
// reports.
//
// The measurements are archive-independent: they estimate how small a
// context-free coder could make the data, which is the yardstick the
// archive's Huffman codec is judged against.
package entropy

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/pkg/errors"
)

// ByteReport holds per-byte frequency statistics for one input.
type ByteReport struct {
	// N is the input length in bytes.
	N uint64
	// Counts holds the occurrence count for each byte value.
	Counts [256]uint64
}

// AnalyzeBytes consumes r and tallies byte frequencies.
func AnalyzeBytes(r io.Reader) (*ByteReport, error) {
	var br ByteReport
	buf := make([]byte, 8192)
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			br.Counts[b]++
		}
		br.N += uint64(n)
		if err == io.EOF {
			return &br, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading input")
		}
	}
}

// Probability returns p(j) = count(j)/n, or 0 for absent bytes.
func (br *ByteReport) Probability(j byte) float64 {
	if br.N == 0 || br.Counts[j] == 0 {
		return 0
	}
	return float64(br.Counts[j]) / float64(br.N)
}

// Information returns I(j) = -log2 p(j) in bits, or 0 for absent bytes.
func (br *ByteReport) Information(j byte) float64 {
	p := br.Probability(j)
	if p == 0 {
		return 0
	}
	return -math.Log2(p)
}

// TotalInformationBits returns I(Q) = sum over j of count(j) * I(j).
func (br *ByteReport) TotalInformationBits() float64 {
	var total float64
	for j := 0; j < 256; j++ {
		total += float64(br.Counts[j]) * br.Information(byte(j))
	}
	return total
}

// Entropy returns the empirical entropy H in bits per byte.
func (br *ByteReport) Entropy() float64 {
	if br.N == 0 {
		return 0
	}
	return br.TotalInformationBits() / float64(br.N)
}

// LowerBoundOctets returns E = ceil(I(Q)/8), the floor on the compressed
// data size without its model.
func (br *ByteReport) LowerBoundOctets() uint64 {
	return uint64(math.Ceil(br.TotalInformationBits() / 8))
}

// ModelBounds returns G64 and G8: the lower bound plus the cost of storing
// a full 256-entry frequency table with 8-byte and 1-byte counts
// respectively.
func (br *ByteReport) ModelBounds() (g64, g8 uint64) {
	e := br.LowerBoundOctets()
	return e + 256*8, e + 256*1
}

// WriteReport renders the full analysis: aggregate figures followed by the
// 256-row symbol table, sorted by byte value and again by descending count.
func (br *ByteReport) WriteReport(w io.Writer, name string) error {
	g64, g8 := br.ModelBounds()
	iBits := br.TotalInformationBits()

	if _, err := fmt.Fprintf(w,
		"Byte entropy report: %s\n\n"+
			"n                = %d bytes\n"+
			"L(Q)             = %d bits\n"+
			"I(Q)             = %.2f bits (%.2f octets)\n"+
			"H                = %.4f bits/byte\n"+
			"E  (lower bound) = %d octets\n"+
			"G64 (E + 256*8)  = %d octets\n"+
			"G8  (E + 256*1)  = %d octets\n\n",
		name, br.N, br.N*8, iBits, iBits/8, br.Entropy(), br.LowerBoundOctets(), g64, g8); err != nil {
		return err
	}

	writeTable := func(title string, order []int) error {
		if _, err := fmt.Fprintf(w, "%s\nhex\tcount\tp(j)\tI(j) bits\tcount*I(j)\n", title); err != nil {
			return err
		}
		for _, j := range order {
			b := byte(j)
			_, err := fmt.Fprintf(w, "%02X\t%d\t%.6f\t%.6f\t%.6f\n",
				j, br.Counts[j], br.Probability(b), br.Information(b),
				float64(br.Counts[j])*br.Information(b))
			if err != nil {
				return err
			}
		}
		_, err := fmt.Fprintln(w)
		return err
	}

	byValue := make([]int, 256)
	for i := range byValue {
		byValue[i] = i
	}
	if err := writeTable("Table by byte value (00..FF):", byValue); err != nil {
		return err
	}

	byCount := append([]int(nil), byValue...)
	sort.SliceStable(byCount, func(i, j int) bool {
		return br.Counts[byCount[i]] > br.Counts[byCount[j]]
	})
	return writeTable("Table by descending count:", byCount)
}
