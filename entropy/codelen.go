// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package entropy

import (
	"fmt"
	"io"
	"math"

	"github.com/dariprim/otik/huffman"
)

// CodeWidths are the frequency-table storage widths compared by
// AnalyzeCodeLengths, in display order.
var CodeWidths = []int{64, 32, 8, 4}

// WidthResult prices one frequency-table storage width.
type WidthResult struct {
	// Bits is the per-count storage width.
	Bits int
	// E is the coded data length in octets, using the code lengths implied
	// by the width-quantized frequency table.
	E uint64
	// G adds the cost of the 256-entry frequency table at Bits per count.
	G uint64
}

// CodeLengthReport compares Huffman code lengths across frequency-table
// storage widths. Narrow counts shrink the stored table but distort the
// code lengths; the report prices both effects together.
type CodeLengthReport struct {
	Results []WidthResult
}

// Best returns the result with the smallest combined size G.
func (clr *CodeLengthReport) Best() WidthResult {
	best := clr.Results[0]
	for _, r := range clr.Results[1:] {
		if r.G < best.G {
			best = r
		}
	}
	return best
}

// AnalyzeCodeLengths measures how the stored frequency-table width changes
// the coded size. For each width the counts are scaled into the width's
// range, the prefix code is rebuilt from the scaled table, and the original
// counts are priced against the new code lengths.
func (br *ByteReport) AnalyzeCodeLengths() (*CodeLengthReport, error) {
	var clr CodeLengthReport
	for _, bits := range CodeWidths {
		lengths, err := huffman.CodeLengths(br.quantize(bits))
		if err != nil {
			return nil, err
		}

		var totalBits uint64
		for j := 0; j < 256; j++ {
			totalBits += br.Counts[j] * uint64(lengths[j])
		}
		e := (totalBits + 7) / 8
		clr.Results = append(clr.Results, WidthResult{
			Bits: bits,
			E:    e,
			G:    e + 32*uint64(bits),
		})
	}
	return &clr, nil
}

// quantize scales counts into bits-wide integers. Counts that already fit
// pass through unchanged; otherwise they are scaled against the largest
// count, and a present symbol never quantizes to zero.
func (br *ByteReport) quantize(bits int) *huffman.FrequencyTable {
	var maxVal uint64 = math.MaxUint32
	if bits < 32 {
		maxVal = 1<<uint(bits) - 1
	}

	var maxFreq uint64
	for _, c := range br.Counts {
		if c > maxFreq {
			maxFreq = c
		}
	}

	var ft huffman.FrequencyTable
	for j, c := range br.Counts {
		switch {
		case c == 0:
		case maxFreq <= maxVal:
			ft[j] = uint32(c)
		default:
			v := math.Round(float64(c) * float64(maxVal) / float64(maxFreq))
			if v < 1 {
				v = 1
			}
			ft[j] = uint32(v)
		}
	}
	return &ft
}

// WriteReport renders one line per width plus the optimum.
func (clr *CodeLengthReport) WriteReport(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "Code lengths by frequency-table width:"); err != nil {
		return err
	}
	for _, r := range clr.Results {
		if _, err := fmt.Fprintf(w, "B=%-2d: E_B=%d octets, G_B=%d octets\n", r.Bits, r.E, r.G); err != nil {
			return err
		}
	}
	best := clr.Best()
	_, err := fmt.Fprintf(w, "optimal width: B*=%d, G_B*=%d octets\n", best.Bits, best.G)
	return err
}
