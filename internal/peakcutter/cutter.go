// Package peakcutter implements the Peak Cutter (spec §4.5): recursive
// valley-based trimming of a chromatographic peak around its identification
// retention time.
package peakcutter

import (
	"sort"

	"github.com/quantcore/lfq-engine/pkg/models"
)

// minPointsToCut is the smallest envelope count the cutter will operate on;
// below this, a valley can't be distinguished from noise (spec §4.5).
const minPointsToCut = 5

// Cut recursively trims peak's envelopes around identificationRT using
// discriminationFactor as the valley-depth threshold (default 0.6, spec
// §4.5), then recalculates the apex and a provisional apex-intensity value.
// Callers that need integrated-area intensity (config Integrate=true)
// recompute Intensity themselves afterward.
func Cut(peak *models.ChromatographicPeak, identificationRT, discriminationFactor float64) {
	for {
		valleyRT, keepLeft, found := findCut(peak, identificationRT, discriminationFactor)
		if !found {
			break
		}
		peak.Envelopes = filterBySide(peak.Envelopes, valleyRT, keepLeft)
		peak.RecalculateApex()
	}
	if apex, ok := peak.Apex(); ok {
		peak.Intensity = apex.SummedIntensity
	}
}

// findCut locates the apex-charge subset, searches for a valley in each
// direction from the apex, and reports the retention time to cut at and
// which side (left/right of the valley) contains identificationRT.
func findCut(peak *models.ChromatographicPeak, identificationRT, discriminationFactor float64) (valleyRT float64, keepLeft bool, found bool) {
	apex, ok := peak.Apex()
	if !ok {
		return 0, false, false
	}
	apexCharge := apex.Charge

	subset := make([]models.IsotopicEnvelope, 0, len(peak.Envelopes))
	for _, e := range peak.Envelopes {
		if e.Charge == apexCharge {
			subset = append(subset, e)
		}
	}
	if len(subset) < minPointsToCut {
		return 0, false, false
	}
	sort.Slice(subset, func(i, j int) bool {
		return subset[i].Peak.ZeroBasedMs1Index < subset[j].Peak.ZeroBasedMs1Index
	})

	apexIdx := 0
	for i, e := range subset {
		if e.SummedIntensity > subset[apexIdx].SummedIntensity {
			apexIdx = i
		}
	}

	if idx, ok := scanValley(subset, apexIdx, 1, discriminationFactor); ok {
		valleyRT = subset[idx].Peak.RetentionTime
		return valleyRT, identificationRT <= valleyRT, true
	}
	if idx, ok := scanValley(subset, apexIdx, -1, discriminationFactor); ok {
		valleyRT = subset[idx].Peak.RetentionTime
		return valleyRT, identificationRT <= valleyRT, true
	}
	return 0, false, false
}

// scanValley walks subset from apexIdx in direction dir, tracking the
// running-minimum-intensity valley. It reports the valley index the first
// time a later point clears discriminationFactor against both the valley
// itself and the point one scan past the valley (or that point is absent).
func scanValley(subset []models.IsotopicEnvelope, apexIdx, dir int, discriminationFactor float64) (int, bool) {
	valleyIdx := apexIdx
	valleyIntensity := subset[apexIdx].SummedIntensity

	for i := apexIdx + dir; i >= 0 && i < len(subset); i += dir {
		intensity := subset[i].SummedIntensity
		if intensity < valleyIntensity {
			valleyIntensity = intensity
			valleyIdx = i
			continue
		}
		if intensity <= 0 {
			continue
		}
		ratio := (intensity - valleyIntensity) / intensity
		if ratio <= discriminationFactor {
			continue
		}

		pastIdx := valleyIdx + dir
		passesPast := true
		if pastIdx >= 0 && pastIdx < len(subset) && pastIdx != valleyIdx {
			pastRatio := (intensity - subset[pastIdx].SummedIntensity) / intensity
			passesPast = pastRatio > discriminationFactor
		}
		if passesPast {
			return valleyIdx, true
		}
	}
	return 0, false
}

// filterBySide keeps envelopes strictly on the identification's side of the
// valley retention time, discarding the valley scan and everything on the
// other side.
func filterBySide(envelopes []models.IsotopicEnvelope, valleyRT float64, keepLeft bool) []models.IsotopicEnvelope {
	kept := make([]models.IsotopicEnvelope, 0, len(envelopes))
	for _, e := range envelopes {
		if keepLeft && e.Peak.RetentionTime < valleyRT {
			kept = append(kept, e)
		} else if !keepLeft && e.Peak.RetentionTime > valleyRT {
			kept = append(kept, e)
		}
	}
	return kept
}
