// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package huffman implements a canonical-order Huffman coder over byte
// alphabets.
//
// The coder never persists tree shape. Both sides rebuild the prefix-code
// tree from the frequency table alone, so the construction order is a
// wire-compatibility contract: leaves are seeded in ascending symbol order,
// and nodes are merged lowest weight first with a strictly monotonic
// insertion-sequence tie-break. Two builds from the same table always
// produce the same tree.
package huffman

import (
	"container/heap"

	"github.com/pkg/errors"
)

// FrequencyTable maps each byte value to its occurrence count.
//
// The sum of all counts equals the length of the data the table was built
// from. Counts are 32-bit on the wire.
type FrequencyTable [256]uint32

// CountFrequencies builds a FrequencyTable over data.
//
// An error is returned if any single byte value occurs more than 2^32-1
// times, since such a count is not representable in the serialized table.
func CountFrequencies(data []byte) (*FrequencyTable, error) {
	var ft FrequencyTable
	for _, b := range data {
		ft[b]++
		if ft[b] == 0 {
			return nil, errors.Errorf("count overflow for byte 0x%02X", b)
		}
	}
	return &ft, nil
}

// Total returns the sum of all counts.
func (ft *FrequencyTable) Total() uint64 {
	var total uint64
	for _, c := range ft {
		total += uint64(c)
	}
	return total
}

// Symbols returns the number of distinct byte values with nonzero counts.
func (ft *FrequencyTable) Symbols() int {
	n := 0
	for _, c := range ft {
		if c > 0 {
			n++
		}
	}
	return n
}

// node is a Huffman tree node. Leaves carry a symbol; internal nodes carry
// combined weight only. Every internal node has a left child; only the
// synthetic single-symbol root lacks a right child.
type node struct {
	weight uint64
	seq    int

	leaf   bool
	symbol byte

	left  *node
	right *node
}

type nodeHeap []*node

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	if h[i].weight != h[j].weight {
		return h[i].weight < h[j].weight
	}
	return h[i].seq < h[j].seq
}

func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(*node)) }

func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// buildTree constructs the Huffman tree for ft.
//
// It returns nil for an empty table. A single-symbol table produces a
// synthetic root whose only (left) child is the leaf, assigning that symbol
// the one-bit code "0".
func buildTree(ft *FrequencyTable) *node {
	h := make(nodeHeap, 0, 256)
	seq := 0
	for sym := 0; sym < 256; sym++ {
		if ft[sym] == 0 {
			continue
		}
		h = append(h, &node{
			weight: uint64(ft[sym]),
			seq:    seq,
			leaf:   true,
			symbol: byte(sym),
		})
		seq++
	}

	switch len(h) {
	case 0:
		return nil
	case 1:
		only := h[0]
		return &node{weight: only.weight, seq: seq, left: only}
	}

	heap.Init(&h)
	for len(h) > 1 {
		a := heap.Pop(&h).(*node)
		b := heap.Pop(&h).(*node)
		heap.Push(&h, &node{
			weight: a.weight + b.weight,
			seq:    seq,
			left:   a,
			right:  b,
		})
		seq++
	}
	return h[0]
}

// Code is one symbol's bit string: the Len low bits of Bits, emitted most
// significant first.
type Code struct {
	Bits uint64
	Len  uint8
}

// codeTable maps byte values to codes. A zero Len marks a symbol that does
// not occur in the alphabet.
type codeTable [256]Code

// buildCodes derives the code table by root-to-leaf traversal, left edge 0
// and right edge 1.
//
// With 32-bit counts the tree depth stays well below 64, so every code fits
// in a uint64; assignCodes errors if that invariant is ever violated.
func buildCodes(root *node) (*codeTable, error) {
	var ct codeTable
	if root == nil {
		return &ct, nil
	}
	if err := assignCodes(&ct, root, 0, 0); err != nil {
		return nil, err
	}
	return &ct, nil
}

// CodeLengths returns each symbol's prefix-code bit length under the tree
// built from ft. Symbols absent from ft get length 0.
func CodeLengths(ft *FrequencyTable) (*[256]uint8, error) {
	ct, err := buildCodes(buildTree(ft))
	if err != nil {
		return nil, err
	}

	var lengths [256]uint8
	for sym, c := range ct {
		lengths[sym] = c.Len
	}
	return &lengths, nil
}

func assignCodes(ct *codeTable, n *node, bits uint64, depth uint8) error {
	if n.leaf {
		ct[n.symbol] = Code{Bits: bits, Len: depth}
		return nil
	}
	if depth >= 64 {
		return errors.New("huffman code exceeds 64 bits")
	}
	if n.left != nil {
		if err := assignCodes(ct, n.left, bits<<1, depth+1); err != nil {
			return err
		}
	}
	if n.right != nil {
		if err := assignCodes(ct, n.right, bits<<1|1, depth+1); err != nil {
			return err
		}
	}
	return nil
}
