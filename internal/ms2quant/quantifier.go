// Package ms2quant implements the MS2 Quantifier (spec §4.6): builds one
// chromatographic peak per MS2 identification in a run.
package ms2quant

import (
	"log"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/quantcore/lfq-engine/internal/envelope"
	"github.com/quantcore/lfq-engine/internal/isotope"
	"github.com/quantcore/lfq-engine/internal/peakcutter"
	"github.com/quantcore/lfq-engine/internal/peakindex"
	"github.com/quantcore/lfq-engine/internal/xic"
	"github.com/quantcore/lfq-engine/pkg/models"
)

// QuantifyRun builds one ChromatographicPeak per identification in ids
// against idx, mutating each identification's PeakfindingMass exactly once
// (spec §3). Identifications that never show an envelope at their own
// precursor charge are dropped (spec §4.6).
func QuantifyRun(idx *peakindex.PeakIndex, ids []models.Identification, cfg models.EngineConfig) []*models.ChromatographicPeak {
	chargeLo, chargeHi := chargeRange(ids)

	peaks := make([]*models.ChromatographicPeak, 0, len(ids))
	for i := range ids {
		id := &ids[i]
		if !cfg.IsWhitelisted(id.ModifiedSequence) {
			continue
		}
		if len(id.ProteinGroupIndices) > 1 && !cfg.QuantifyAmbiguousPeptides {
			log.Printf("[MS2Quantifier] %s: ambiguous (%d protein groups), skipped", id.ModifiedSequence, len(id.ProteinGroupIndices))
			continue
		}
		profile := isotope.Compute(*id, cfg.NumIsotopesRequired)
		id.PeakfindingMass = profile.PeakfindingMass

		var charges []int
		if cfg.IDSpecificChargeState {
			charges = []int{id.PrecursorCharge}
		} else {
			charges = makeChargeList(chargeLo, chargeHi)
		}

		peak := quantifyOne(idx, *id, profile, charges, cfg)
		if peak == nil {
			log.Printf("[MS2Quantifier] %s: no envelopes at own charge %d, dropped", id.ModifiedSequence, id.PrecursorCharge)
			continue
		}
		peaks = append(peaks, peak)
	}
	return peaks
}

func makeChargeList(lo, hi int) []int {
	if hi < lo {
		lo, hi = hi, lo
	}
	charges := make([]int, 0, hi-lo+1)
	for c := lo; c <= hi; c++ {
		charges = append(charges, c)
	}
	return charges
}

func chargeRange(ids []models.Identification) (lo, hi int) {
	if len(ids) == 0 {
		return 1, 1
	}
	lo, hi = ids[0].PrecursorCharge, ids[0].PrecursorCharge
	for _, id := range ids[1:] {
		if id.PrecursorCharge < lo {
			lo = id.PrecursorCharge
		}
		if id.PrecursorCharge > hi {
			hi = id.PrecursorCharge
		}
	}
	return lo, hi
}

func quantifyOne(idx *peakindex.PeakIndex, id models.Identification, profile isotope.Profile, charges []int, cfg models.EngineConfig) *models.ChromatographicPeak {
	peak := &models.ChromatographicPeak{Identifications: []models.Identification{id}, DecoyPeptide: id.DecoyPeptide}

	for _, charge := range charges {
		candidates := xic.PeakFind(idx, id.Ms2RetentionTime, profile.PeakfindingMass, charge, cfg.PeakfindingPpmTolerance, cfg.MissedScansAllowed)
		for _, c := range candidates {
			observedMass := peakindex.MzToNeutralMass(c.Mz, charge)
			ppmErr := ppmError(observedMass, profile.PeakfindingMass)
			if ppmErr > cfg.PpmTolerance {
				continue
			}
			env, ok := envelope.Validate(idx, profile, c.ZeroBasedMs1Index, charge, cfg.IsotopePpmTolerance, cfg.NumIsotopesRequired)
			if !ok {
				continue
			}
			peak.Envelopes = append(peak.Envelopes, env)
			peak.ChargeList = appendUniqueCharge(peak.ChargeList, charge)
		}
	}

	ownChargeMin, ownChargeMax, haveOwnCharge := scanRangeAtCharge(peak.Envelopes, id.PrecursorCharge)
	if !haveOwnCharge {
		return nil
	}

	kept := peak.Envelopes[:0:0]
	for _, e := range peak.Envelopes {
		if e.Peak.ZeroBasedMs1Index >= ownChargeMin && e.Peak.ZeroBasedMs1Index <= ownChargeMax {
			kept = append(kept, e)
		}
	}
	peak.Envelopes = kept
	peak.RecalculateApex()

	peakcutter.Cut(peak, id.Ms2RetentionTime, cfg.DiscriminationFactorToCutPeak)

	if cfg.Integrate {
		peak.Intensity = integratedArea(peak.Envelopes)
	}

	return peak
}

func ppmError(observed, target float64) float64 {
	if target == 0 {
		return 0
	}
	d := observed - target
	if d < 0 {
		d = -d
	}
	return d / target * 1e6
}

func appendUniqueCharge(charges []int, charge int) []int {
	for _, c := range charges {
		if c == charge {
			return charges
		}
	}
	return append(charges, charge)
}

func scanRangeAtCharge(envelopes []models.IsotopicEnvelope, charge int) (min, max uint32, found bool) {
	for _, e := range envelopes {
		if e.Charge != charge {
			continue
		}
		if !found || e.Peak.ZeroBasedMs1Index < min {
			min = e.Peak.ZeroBasedMs1Index
		}
		if !found || e.Peak.ZeroBasedMs1Index > max {
			max = e.Peak.ZeroBasedMs1Index
		}
		found = true
	}
	return min, max, found
}

// integratedArea computes the trapezoidal area under the apex-charge
// envelopes ordered by retention time (spec §4.6 "integrated area if
// integrate is set"). stat.Mean guards against a degenerate (all-zero)
// series before spending the integration pass.
func integratedArea(envelopes []models.IsotopicEnvelope) float64 {
	if len(envelopes) == 0 {
		return 0
	}

	apexCharge := envelopes[0].Charge
	best := envelopes[0].SummedIntensity
	for _, e := range envelopes[1:] {
		if e.SummedIntensity > best {
			best = e.SummedIntensity
			apexCharge = e.Charge
		}
	}

	subset := make([]models.IsotopicEnvelope, 0, len(envelopes))
	for _, e := range envelopes {
		if e.Charge == apexCharge {
			subset = append(subset, e)
		}
	}
	sort.Slice(subset, func(i, j int) bool {
		return subset[i].Peak.RetentionTime < subset[j].Peak.RetentionTime
	})

	if len(subset) == 1 {
		return subset[0].SummedIntensity
	}

	intensities := make([]float64, len(subset))
	for i, e := range subset {
		intensities[i] = e.SummedIntensity
	}
	if stat.Mean(intensities, nil) <= 0 {
		return 0
	}

	area := 0.0
	for i := 1; i < len(subset); i++ {
		dt := subset[i].Peak.RetentionTime - subset[i-1].Peak.RetentionTime
		area += dt * (subset[i].SummedIntensity + subset[i-1].SummedIntensity) / 2
	}
	return area
}
