// Package xic implements the XIC Builder (spec §4.3): tracing a target mass
// through adjacent MS1 scans, tolerating a bounded run of missed scans.
package xic

import (
	"sort"

	"github.com/quantcore/lfq-engine/internal/peakindex"
	"github.com/quantcore/lfq-engine/pkg/models"
)

// PeakFind walks scans outward from the one whose retention time is last <=
// rtCenter, in both directions, tolerating missedScansAllowed consecutive
// absences per direction. A miss at the seed scan itself does not consume
// the missed-scan budget (spec §4.3). The result is sorted ascending by
// retention time.
func PeakFind(idx *peakindex.PeakIndex, rtCenter, mass float64, charge int, tolPpm float64, missedScansAllowed int) []models.IndexedPeak {
	seedIdx, haveSeed := idx.ScanIndexAtOrBefore(rtCenter)

	var points []models.IndexedPeak

	if haveSeed {
		if peak, ok := idx.Get(mass, seedIdx, tolPpm, charge); ok {
			points = append(points, peak)
		}
	}

	var seed int64 = -1
	if haveSeed {
		seed = int64(seedIdx)
	}

	// Walk left (toward earlier scans).
	left := walk(idx, mass, charge, tolPpm, seed-1, -1, missedScansAllowed)
	// Walk right (toward later scans).
	right := walk(idx, mass, charge, tolPpm, seed+1, 1, missedScansAllowed)

	// left is produced nearest-to-seed first; reverse so the final result
	// is in ascending scan/RT order once concatenated.
	for i, j := 0, len(left)-1; i < j; i, j = i+1, j-1 {
		left[i], left[j] = left[j], left[i]
	}

	combined := make([]models.IndexedPeak, 0, len(left)+len(points)+len(right))
	combined = append(combined, left...)
	combined = append(combined, points...)
	combined = append(combined, right...)

	sort.Slice(combined, func(i, j int) bool {
		return combined[i].RetentionTime < combined[j].RetentionTime
	})
	return combined
}

// walk steps scan indices by step (+1 or -1) from start, stopping once
// missedScansAllowed+1 consecutive scans miss or the run's scan range is
// exhausted.
func walk(idx *peakindex.PeakIndex, mass float64, charge int, tolPpm float64, start int64, step int64, missedScansAllowed int) []models.IndexedPeak {
	var points []models.IndexedPeak
	missed := 0

	for i := start; i >= 0 && i < int64(idx.NumScans()); i += step {
		peak, ok := idx.Get(mass, uint32(i), tolPpm, charge)
		if ok {
			points = append(points, peak)
			missed = 0
			continue
		}
		missed++
		if missed > missedScansAllowed {
			break
		}
	}
	return points
}
