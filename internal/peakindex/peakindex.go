// Package peakindex implements the per-run Peak Index (spec §4.1): a
// bucketed lookup from (m/z, scan) to the most intense matching centroid,
// immutable once built, consumed by the XIC Builder and Envelope Validator.
package peakindex

import (
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/quantcore/lfq-engine/internal/reader"
	"github.com/quantcore/lfq-engine/pkg/models"
)

// protonMass is the mass of a proton in Da, used to convert between m/z and
// neutral mass: neutralMass = mz*z - z*protonMass.
const protonMass = 1.00727646688

// PeakIndex is the per-run, bucketed lookup described in spec §4.1. Once
// Build returns, a PeakIndex is read-only; concurrent readers are safe.
type PeakIndex struct {
	RunID string

	// Scans is ordered ascending by ZeroBasedMs1Index.
	Scans []models.Ms1ScanInfo

	// buckets groups peaks by floor(m/z); within a bucket, peaks are sorted
	// by ZeroBasedMs1Index, ties broken by descending intensity so the
	// first match at a given scan is already the most intense one.
	buckets map[int][]models.IndexedPeak
}

// Build streams every MS1 scan of filePath via r and constructs the bucketed
// index. An unreadable/empty file surfaces as an error; callers are expected
// to skip the run with a warning per spec §7.
func Build(runID, filePath string, r reader.MS1Reader) (*PeakIndex, error) {
	idx := &PeakIndex{
		RunID:   runID,
		buckets: make(map[int][]models.IndexedPeak),
	}

	err := r.ReadRun(filePath, func(scan models.Ms1ScanInfo, peaks []reader.CentroidPeak) error {
		idx.Scans = append(idx.Scans, scan)
		for _, p := range peaks {
			if p.Mz <= 0 || p.Intensity <= 0 {
				continue
			}
			bucket := bucketOf(p.Mz)
			idx.buckets[bucket] = append(idx.buckets[bucket], models.IndexedPeak{
				Mz:                p.Mz,
				Intensity:         p.Intensity,
				ZeroBasedMs1Index: scan.ZeroBasedMs1Index,
				RetentionTime:     scan.RetentionTime,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("peakindex: reading run %s: %w", runID, err)
	}
	if len(idx.Scans) == 0 {
		return nil, fmt.Errorf("peakindex: run %s produced no MS1 scans", runID)
	}

	sort.Slice(idx.Scans, func(i, j int) bool {
		return idx.Scans[i].ZeroBasedMs1Index < idx.Scans[j].ZeroBasedMs1Index
	})

	for bucket, peaks := range idx.buckets {
		sort.Slice(peaks, func(i, j int) bool {
			if peaks[i].ZeroBasedMs1Index != peaks[j].ZeroBasedMs1Index {
				return peaks[i].ZeroBasedMs1Index < peaks[j].ZeroBasedMs1Index
			}
			return peaks[i].Intensity > peaks[j].Intensity
		})
		idx.buckets[bucket] = peaks
	}

	log.Printf("[PeakIndex] run %s: %d scans, %d buckets", runID, len(idx.Scans), len(idx.buckets))
	return idx, nil
}

// bucketOf grids m/z by its integer floor, so a ppm-window query only ever
// inspects O(1) adjacent buckets (spec §4.1).
func bucketOf(mz float64) int {
	return int(math.Floor(mz))
}

// NeutralMassToMz converts a neutral mass to an m/z at the given charge.
func NeutralMassToMz(neutralMass float64, charge int) float64 {
	z := float64(charge)
	return (neutralMass + z*protonMass) / z
}

// MzToNeutralMass converts an observed m/z at the given charge to neutral
// mass: neutralMass = mz*z - z*protonMass.
func MzToNeutralMass(mz float64, charge int) float64 {
	z := float64(charge)
	return mz*z - z*protonMass
}

// Get returns the most intense centroid at scanIndex whose neutral mass
// (computed from its m/z and charge) is within tol ppm of targetNeutralMass.
// Ties are broken by higher intensity (spec §4.1).
func (idx *PeakIndex) Get(targetNeutralMass float64, scanIndex uint32, tolPpm float64, charge int) (models.IndexedPeak, bool) {
	targetMz := NeutralMassToMz(targetNeutralMass, charge)
	tolFrac := tolPpm * 1e-6
	lowMz := targetMz * (1 - tolFrac)
	highMz := targetMz * (1 + tolFrac)

	var best models.IndexedPeak
	found := false

	for b := bucketOf(lowMz); b <= bucketOf(highMz); b++ {
		peaks, ok := idx.buckets[b]
		if !ok {
			continue
		}
		// Peaks are sorted by scan index; binary search the scan range,
		// then scan linearly since each bucket is small by construction.
		start := sort.Search(len(peaks), func(i int) bool {
			return peaks[i].ZeroBasedMs1Index >= scanIndex
		})
		for i := start; i < len(peaks) && peaks[i].ZeroBasedMs1Index == scanIndex; i++ {
			p := peaks[i]
			neutralMass := MzToNeutralMass(p.Mz, charge)
			ppmErr := math.Abs(neutralMass-targetNeutralMass) / targetNeutralMass * 1e6
			if ppmErr > tolPpm {
				continue
			}
			if !found || p.Intensity > best.Intensity {
				best = p
				found = true
			}
		}
	}

	return best, found
}

// ScanIndexAtOrBefore returns the zero-based index of the last scan whose
// retention time is <= rt, and true if one exists.
func (idx *PeakIndex) ScanIndexAtOrBefore(rt float64) (uint32, bool) {
	// Scans is ascending by RT (since RT increases monotonically with
	// ZeroBasedMs1Index in every real acquisition).
	i := sort.Search(len(idx.Scans), func(i int) bool {
		return idx.Scans[i].RetentionTime > rt
	})
	if i == 0 {
		return 0, false
	}
	return idx.Scans[i-1].ZeroBasedMs1Index, true
}

// ScanAt returns the Ms1ScanInfo for the scan at the given zero-based index,
// assuming indices are contiguous from 0 (true for every real acquisition).
func (idx *PeakIndex) ScanAt(i uint32) (models.Ms1ScanInfo, bool) {
	if int(i) < 0 || int(i) >= len(idx.Scans) {
		return models.Ms1ScanInfo{}, false
	}
	return idx.Scans[i], true
}

// NumScans returns the number of MS1 scans indexed.
func (idx *PeakIndex) NumScans() int {
	return len(idx.Scans)
}
