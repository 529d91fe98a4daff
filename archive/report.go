// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package archive

// EntryReport records the sizes and codec resolved for one entry during a
// write or a decode.
type EntryReport struct {
	Path       string
	Kind       EntryKind
	Codec      Codec
	OrigSize   uint64
	StoredSize uint64

	// IntegrityErr is the entry's *IntegrityError, if its checksum did not
	// match on decode. The entry was still materialized.
	IntegrityErr error
}

// Ratio returns stored size over original size, or 1 for empty entries.
func (er *EntryReport) Ratio() float64 {
	if er.OrigSize == 0 {
		return 1
	}
	return float64(er.StoredSize) / float64(er.OrigSize)
}

// Report summarizes one archive operation for display layers. Display code
// only reads it; it never feeds back into archive bytes.
type Report struct {
	Version    uint16
	Protection Protection
	Entries    []EntryReport
}

// IntegrityFailures returns the entries whose checksums did not match.
func (r *Report) IntegrityFailures() []*EntryReport {
	var failed []*EntryReport
	for i := range r.Entries {
		if r.Entries[i].IntegrityErr != nil {
			failed = append(failed, &r.Entries[i])
		}
	}
	return failed
}
