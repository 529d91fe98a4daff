// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package archive

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	archiveWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "otik_archive_writes",
		Help: "Count of archives written.",
	})

	archiveReads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "otik_archive_reads",
		Help: "Count of archives decoded.",
	})

	entriesEncoded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "otik_entries_encoded",
		Help: "Count of entries encoded, by resolved codec.",
	}, []string{"codec"})

	entriesDecoded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "otik_entries_decoded",
		Help: "Count of entries decoded, by codec.",
	}, []string{"codec"})

	integrityFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "otik_integrity_failures",
		Help: "Count of per-entry checksum mismatches observed during decode.",
	})
)

// RegisterMonitoring registers all of this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		archiveWrites,
		archiveReads,
		entriesEncoded,
		entriesDecoded,
		integrityFailures,
	)
}
