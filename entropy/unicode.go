// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package entropy

import (
	"fmt"
	"io"
	"math"
	"sort"
	"unicode/utf8"
)

// Encoding selects how a Unicode frequency model's symbols would be stored,
// which changes the model-size estimate.
type Encoding int

// Encoding values.
const (
	UTF32 Encoding = iota
	UTF16
	UTF8
)

func (e Encoding) String() string {
	switch e {
	case UTF8:
		return "UTF-8"
	case UTF16:
		return "UTF-16"
	default:
		return "UTF-32"
	}
}

// fullUnicodeTableBytes is the cost of storing an 8-byte count for every
// assignable code point, the naive alternative to a per-text model.
const fullUnicodeTableBytes = 1114112 * 8

// TextReport holds per-rune frequency statistics for one text.
type TextReport struct {
	// N is the text length in runes.
	N int
	// Freqs holds the occurrence count of each rune.
	Freqs map[rune]int
}

// AnalyzeText tallies rune frequencies over text.
func AnalyzeText(text string) *TextReport {
	tr := TextReport{Freqs: map[rune]int{}}
	for _, r := range text {
		tr.Freqs[r]++
		tr.N++
	}
	return &tr
}

// AlphabetSize returns the number of distinct runes.
func (tr *TextReport) AlphabetSize() int { return len(tr.Freqs) }

// Entropy returns the empirical entropy H in bits per rune.
func (tr *TextReport) Entropy() float64 {
	if tr.N == 0 {
		return 0
	}
	var h float64
	for _, c := range tr.Freqs {
		p := float64(c) / float64(tr.N)
		h -= p * math.Log2(p)
	}
	return h
}

// TotalInformationBits returns n * H.
func (tr *TextReport) TotalInformationBits() float64 {
	return float64(tr.N) * tr.Entropy()
}

// ModelBytes estimates the frequency-model size: an 8-byte text length plus
// one (symbol, 8-byte count) record per distinct rune, with the symbol
// stored in the chosen encoding.
func (tr *TextReport) ModelBytes(enc Encoding) int {
	size := 8
	switch enc {
	case UTF8:
		for r := range tr.Freqs {
			size += utf8.RuneLen(r) + 8
		}
	case UTF16:
		size += tr.AlphabetSize() * (2 + 8)
	default:
		size += tr.AlphabetSize() * (4 + 8)
	}
	return size
}

// ArchiveLowerBoundBytes returns the floor on a context-free archive of the
// text: the total information plus the model, rounded up to whole bytes.
func (tr *TextReport) ArchiveLowerBoundBytes(enc Encoding) int {
	bits := tr.TotalInformationBits() + float64(tr.ModelBytes(enc))*8
	return int(math.Ceil(bits / 8))
}

// WriteReport renders the analysis with symbol tables sorted by code point
// and by descending count.
func (tr *TextReport) WriteReport(w io.Writer, enc Encoding) error {
	if _, err := fmt.Fprintf(w,
		"Unicode entropy report\n\n"+
			"n (runes)            = %d\n"+
			"alphabet size        = %d\n"+
			"H                    = %.4f bits/rune\n"+
			"I(Q)                 = %.2f bits\n"+
			"model (%s)        = %d bytes\n"+
			"archive lower bound  = %d bytes\n"+
			"full Unicode table   = %.2f MiB\n\n",
		tr.N, tr.AlphabetSize(), tr.Entropy(), tr.TotalInformationBits(),
		enc, tr.ModelBytes(enc), tr.ArchiveLowerBoundBytes(enc),
		float64(fullUnicodeTableBytes)/1024/1024); err != nil {
		return err
	}

	runes := make([]rune, 0, len(tr.Freqs))
	for r := range tr.Freqs {
		runes = append(runes, r)
	}

	writeTable := func(title string) error {
		if _, err := fmt.Fprintf(w, "%s\nsymbol\tcode\tcount\tp(j)\tI(j) bits\n", title); err != nil {
			return err
		}
		for _, r := range runes {
			p := float64(tr.Freqs[r]) / float64(tr.N)
			_, err := fmt.Fprintf(w, "%s\tU+%04X\t%d\t%.6f\t%.4f\n",
				printable(r), r, tr.Freqs[r], p, -math.Log2(p))
			if err != nil {
				return err
			}
		}
		_, err := fmt.Fprintln(w)
		return err
	}

	sort.Slice(runes, func(i, j int) bool { return runes[i] < runes[j] })
	if err := writeTable("Table by code point:"); err != nil {
		return err
	}

	sort.SliceStable(runes, func(i, j int) bool { return tr.Freqs[runes[i]] > tr.Freqs[runes[j]] })
	return writeTable("Table by descending count:")
}

func printable(r rune) string {
	if r > 0x20 && r != 0x7F {
		return string(r)
	}
	return fmt.Sprintf("U+%04X", r)
}
