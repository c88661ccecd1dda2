package fdr

import (
	"math"
	"sort"

	"github.com/quantcore/lfq-engine/internal/peakindex"
	"github.com/quantcore/lfq-engine/pkg/models"
)

// minPeaksForPEP and minRandomRTForPEP gate PEP classifier training (spec
// §4.10: "if >= 100 MBR peaks and >= 20 random-RT decoys exist").
const (
	minPeaksForPEP     = 100
	minRandomRTForPEP  = 20
)

// ConditionDelta supplies the donor-vs-acceptor condition feature (spec
// §4.10's "donor condition delta") per donor identification; callers that
// don't track experimental conditions may pass a func returning 0.
type ConditionDelta func(peak *models.ChromatographicPeak) float64

// Estimate runs the full FDR/PEP pass over one acceptor run's peaks (spec
// §4.10): q-value walk, then (if feasible) PEP classifier training and
// per-peak PEP assignment, then "keep only the lowest-PEP peak per donor
// identification" before the caller applies mbr_detection_q_value_threshold
// filtering. classifier may be nil to force a fresh LogisticClassifier.
func Estimate(peaks []*models.ChromatographicPeak, cfg models.EngineConfig, conditionDelta ConditionDelta, classifier Classifier) []*models.ChromatographicPeak {
	EstimateQValues(peaks)

	randomRTCount := 0
	mbrCount := 0
	for _, p := range peaks {
		if !p.IsMBR {
			continue
		}
		mbrCount++
		if p.RandomRT {
			randomRTCount++
		}
	}
	if mbrCount < minPeaksForPEP || randomRTCount < minRandomRTForPEP {
		return peaks
	}

	if classifier == nil {
		classifier = NewLogisticClassifier()
	}
	trainPEP(peaks, cfg, conditionDelta, classifier)

	return keepLowestPEPPerDonor(peaks)
}

func trainPEP(peaks []*models.ChromatographicPeak, cfg models.EngineConfig, conditionDelta ConditionDelta, classifier Classifier) {
	var features [][]float64
	var labels []float64
	var order []*models.ChromatographicPeak
	for _, p := range peaks {
		if !p.IsMBR {
			continue
		}
		features = append(features, buildFeatures(p, conditionDelta))
		labels = append(labels, targetLabel(p))
		order = append(order, p)
	}

	n := len(features)
	trainN := int(float64(n) * cfg.PepTrainingFraction)
	if trainN < 1 {
		trainN = n
	}
	if trainN > n {
		trainN = n
	}

	if err := classifier.Train(features[:trainN], labels[:trainN]); err != nil {
		return
	}
	for i, p := range order {
		pep := 1 - classifier.Predict(features[i])
		p.MBRPEP = &pep
	}
}

// targetLabel is 1 for a true target (neither decoy flag set), 0 otherwise.
func targetLabel(p *models.ChromatographicPeak) float64 {
	if p.DecoyPeptide || p.RandomRT {
		return 0
	}
	return 1
}

func buildFeatures(p *models.ChromatographicPeak, conditionDelta ConditionDelta) []float64 {
	apex, _ := p.Apex()
	var ppmErr, charge float64
	if len(p.Identifications) > 0 {
		id := p.Identifications[0]
		if id.PeakfindingMass != 0 {
			observedMass := peakindex.MzToNeutralMass(apex.Peak.Mz, apex.Charge)
			ppmErr = (observedMass - id.PeakfindingMass) / id.PeakfindingMass * 1e6
		}
	}
	charge = float64(apex.Charge)

	var rtErr float64
	if len(p.Identifications) > 0 {
		rtErr = apex.Peak.RetentionTime - p.Identifications[0].Ms2RetentionTime
	}

	var delta float64
	if conditionDelta != nil {
		delta = conditionDelta(p)
	}

	return []float64{
		mbrScore(p),
		ppmErr,
		rtErr,
		math.Log2(p.Intensity + 1),
		apex.PearsonCorrelation,
		charge,
		delta,
	}
}

// keepLowestPEPPerDonor groups MBR peaks by their donor identification's
// (BaseSequence, FileRef) and retains only the lowest-PEP peak per group,
// passing through every non-MBR peak unchanged (spec §4.10).
func keepLowestPEPPerDonor(peaks []*models.ChromatographicPeak) []*models.ChromatographicPeak {
	groups := map[string][]*models.ChromatographicPeak{}
	var result []*models.ChromatographicPeak

	for _, p := range peaks {
		if !p.IsMBR || len(p.Identifications) == 0 {
			result = append(result, p)
			continue
		}
		id := p.Identifications[0]
		key := id.BaseSequence + "|" + id.FileRef
		groups[key] = append(groups[key], p)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		group := groups[key]
		best := group[0]
		for _, p := range group[1:] {
			if pep(p) < pep(best) {
				best = p
			}
		}
		result = append(result, best)
	}
	return result
}

func pep(p *models.ChromatographicPeak) float64 {
	if p.MBRPEP == nil {
		return 1.0
	}
	return *p.MBRPEP
}
