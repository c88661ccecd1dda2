// Package envelope implements the Envelope Validator (spec §4.4): per-scan
// isotope-pattern correlation and off-by-one (mono-isotope mis-assignment)
// checking.
package envelope

import (
	"gonum.org/v1/gonum/stat"

	"github.com/quantcore/lfq-engine/internal/isotope"
	"github.com/quantcore/lfq-engine/internal/peakindex"
	"github.com/quantcore/lfq-engine/pkg/models"
)

// isotopeSpacing is the nominal 13C-12C mass difference used to test the
// Δ=-1/+1 mono-isotope mis-assignment hypotheses (spec §4.4 step 2).
const isotopeSpacing = 1.0033548

// ratioLow and ratioHigh bound the experimental/theoretical intensity ratio
// tolerated while walking the envelope outward from the peakfinding index.
const (
	ratioLow  = 0.25
	ratioHigh = 4.0
)

// pearsonGate is the minimum Δ=0 correlation required to accept an envelope.
const pearsonGate = 0.7

// monoAssignmentMargin bounds how much a Δ=-1/+1 correlation may beat Δ=0
// before the mono-isotope assignment is considered mis-called.
const monoAssignmentMargin = 0.1

// Validate evaluates the XIC candidate at scanIndex against profile and
// returns an accepted envelope, or false if the candidate fails the
// isotope-pattern checks (spec §4.4).
func Validate(idx *peakindex.PeakIndex, profile isotope.Profile, scanIndex uint32, charge int, tolPpm float64, numIsotopesRequired int) (models.IsotopicEnvelope, bool) {
	anchor, ok := idx.Get(profile.PeakfindingMass, scanIndex, tolPpm, charge)
	if !ok {
		return models.IsotopicEnvelope{}, false
	}

	zeroExp, zeroTheor, zeroFound, zeroMinShift := walk(idx, profile, anchor.Intensity, scanIndex, charge, tolPpm, 0)
	if zeroFound < numIsotopesRequired {
		return models.IsotopicEnvelope{}, false
	}

	zeroCorr := correlationWithProbe(idx, profile, zeroExp, zeroTheor, zeroMinShift, scanIndex, charge, tolPpm, 0)
	if zeroCorr < pearsonGate {
		return models.IsotopicEnvelope{}, false
	}

	for _, delta := range []int{-1, 1} {
		exp, theor, found, minShift := walk(idx, profile, anchor.Intensity, scanIndex, charge, tolPpm, delta)
		if found == 0 {
			continue
		}
		corr := correlationWithProbe(idx, profile, exp, theor, minShift, scanIndex, charge, tolPpm, delta)
		if corr > zeroCorr+monoAssignmentMargin {
			return models.IsotopicEnvelope{}, false
		}
	}

	summed := 0.0
	for _, v := range zeroExp {
		summed += v
	}

	return models.IsotopicEnvelope{
		Peak:               anchor,
		Charge:             charge,
		SummedIntensity:    summed,
		PearsonCorrelation: zeroCorr,
	}, true
}

// walk collects experimental/theoretical intensity pairs outward from the
// peakfinding index under the Δ offset hypothesis, stopping a direction as
// soon as an expected isotope is missing or its intensity ratio to theory
// falls outside [ratioLow, ratioHigh] (spec §4.4 step 2). Missing isotopes
// within the accepted contiguous span are imputed from the theoretical
// abundance scaled by the anchor intensity (spec §4.4 step 4); isotopes
// beyond the point the walk stopped are simply not included.
func walk(idx *peakindex.PeakIndex, profile isotope.Profile, anchorIntensity float64, scanIndex uint32, charge int, tolPpm float64, delta int) (experimental, theoretical []float64, found int, minShift float64) {
	n := len(profile.Isotopes)
	pk := profile.PeakfindingIndex
	anchorMass := profile.PeakfindingMass + float64(delta)*isotopeSpacing
	anchorShift := profile.Isotopes[pk].MassShift

	experimental = make([]float64, n)
	theoretical = make([]float64, n)
	present := make([]bool, n)

	experimental[pk] = anchorIntensity
	theoretical[pk] = profile.Isotopes[pk].Abundance
	present[pk] = true
	found = 1
	minShift = profile.Isotopes[pk].MassShift

	for k := pk - 1; k >= 0; k-- {
		expectedMass := anchorMass + (profile.Isotopes[k].MassShift - anchorShift)
		peak, ok := idx.Get(expectedMass, scanIndex, tolPpm, charge)
		if !ok {
			break
		}
		theor := profile.Isotopes[k].Abundance * anchorIntensity
		if theor <= 0 {
			break
		}
		ratio := peak.Intensity / theor
		if ratio < ratioLow || ratio > ratioHigh {
			break
		}
		experimental[k] = peak.Intensity
		theoretical[k] = profile.Isotopes[k].Abundance
		present[k] = true
		found++
		minShift = profile.Isotopes[k].MassShift
	}

	for k := pk + 1; k < n; k++ {
		expectedMass := anchorMass + (profile.Isotopes[k].MassShift - anchorShift)
		peak, ok := idx.Get(expectedMass, scanIndex, tolPpm, charge)
		if !ok {
			break
		}
		theor := profile.Isotopes[k].Abundance * anchorIntensity
		if theor <= 0 {
			break
		}
		ratio := peak.Intensity / theor
		if ratio < ratioLow || ratio > ratioHigh {
			break
		}
		experimental[k] = peak.Intensity
		theoretical[k] = profile.Isotopes[k].Abundance
		present[k] = true
		found++
	}

	exp := make([]float64, 0, found)
	theo := make([]float64, 0, found)
	for k := 0; k < n; k++ {
		if !present[k] {
			continue
		}
		if experimental[k] == 0 {
			experimental[k] = theoretical[k] * anchorIntensity
		}
		exp = append(exp, experimental[k])
		theo = append(theo, theoretical[k])
	}
	return exp, theo, found, minShift
}

// correlationWithProbe computes the Pearson correlation between exp/theor,
// augmented with an extra unexpected-peak probe one 13C spacing below the
// minimum theoretical mass actually observed (minShift): if a real peak
// sits there, its experimental intensity is compared against a theoretical
// abundance of 0, penalizing mono-isotope mis-assignment (spec §4.4 step 3).
func correlationWithProbe(idx *peakindex.PeakIndex, profile isotope.Profile, exp, theor []float64, minShift float64, scanIndex uint32, charge int, tolPpm float64, delta int) float64 {
	if len(exp) < 2 {
		if len(exp) == 1 {
			return 1.0
		}
		return 0.0
	}

	expWithProbe := append([]float64{}, exp...)
	theorWithProbe := append([]float64{}, theor...)

	anchorMass := profile.PeakfindingMass + float64(delta)*isotopeSpacing
	anchorShift := profile.Isotopes[profile.PeakfindingIndex].MassShift
	probeMass := anchorMass + (minShift - anchorShift) - isotopeSpacing

	if probePeak, ok := idx.Get(probeMass, scanIndex, tolPpm, charge); ok {
		expWithProbe = append(expWithProbe, probePeak.Intensity)
		theorWithProbe = append(theorWithProbe, 0)
	}

	return stat.Correlation(expWithProbe, theorWithProbe, nil)
}
