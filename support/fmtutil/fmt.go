// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package fmtutil contains formatting helpers.
package fmtutil

import (
	"encoding/hex"
	"fmt"
)

// Hex is a byte slice that renders as a hex-dumped string.
//
// It can be used for easy lazy hex dumping.
type Hex []byte

func (h Hex) String() string { return hex.Dump([]byte(h)) }

// Size renders a byte count in a compact human-readable form.
type Size uint64

func (s Size) String() string {
	const unit = 1024
	if s < unit {
		return fmt.Sprintf("%d B", uint64(s))
	}
	div, exp := uint64(unit), 0
	for n := uint64(s) / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(s)/float64(div), "KMGT"[exp])
}

// Efficiency renders the space saved by storing orig bytes as stored bytes,
// as a signed percentage. Negative values mean the stored form is larger.
func Efficiency(orig, stored uint64) string {
	if orig == 0 {
		return "+0.0%"
	}
	return fmt.Sprintf("%+.1f%%", (float64(orig)-float64(stored))/float64(orig)*100)
}
