// Package rtalign implements the RT Aligner (spec §4.7): anchor-peptide
// selection between a donor and acceptor run, and RT prediction for a
// donor peak being transferred into the acceptor.
package rtalign

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/quantcore/lfq-engine/pkg/models"
)

// maxAnchorSeedDistance bounds how far (in donor RT) an anchor may sit from
// the peak being transferred before it stops being a useful local anchor
// (spec §4.7 step 3).
const maxAnchorSeedDistance = 0.5

// fallbackWidth is used when too few anchors surround a donor peak to fit
// a spread (spec §4.7 step 3).
const fallbackWidth = 0.25

// AnchorPair ties one modified sequence's donor and acceptor apex RTs.
type AnchorPair struct {
	Sequence   string
	DonorRT    float64
	AcceptorRT float64
}

// SelectAnchors picks the best non-MBR peak per modified sequence in each
// run (per cfg.DonorCriterion), then intersects the two sequence sets and
// returns pairs sorted ascending by donor apex RT (spec §4.7 steps 1-2).
func SelectAnchors(donorPeaks, acceptorPeaks []*models.ChromatographicPeak, cfg models.EngineConfig) []AnchorPair {
	donorQualifying := qualifying(donorPeaks, cfg.DonorQValueThreshold)
	acceptorQualifying := qualifying(acceptorPeaks, cfg.DonorQValueThreshold)

	donorBest := bestPerSequence(donorQualifying, cfg.DonorCriterion, cfg.MBRAlignmentWindow)
	acceptorBest := bestPerSequence(acceptorQualifying, cfg.DonorCriterion, cfg.MBRAlignmentWindow)

	var pairs []AnchorPair
	for seq, donorPeak := range donorBest {
		acceptorPeak, ok := acceptorBest[seq]
		if !ok {
			continue
		}
		donorApex, ok1 := donorPeak.Apex()
		acceptorApex, ok2 := acceptorPeak.Apex()
		if !ok1 || !ok2 {
			continue
		}
		pairs = append(pairs, AnchorPair{
			Sequence:   seq,
			DonorRT:    donorApex.Peak.RetentionTime,
			AcceptorRT: acceptorApex.Peak.RetentionTime,
		})
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].DonorRT < pairs[j].DonorRT })
	return pairs
}

// qualifying returns non-MBR peaks with exactly one distinct modified
// sequence among their identifications (not chimeric), below the donor
// q-value threshold, with at least one accepted envelope (spec §4.7 step 1).
func qualifying(peaks []*models.ChromatographicPeak, qThreshold float64) []*models.ChromatographicPeak {
	var out []*models.ChromatographicPeak
	for _, p := range peaks {
		if p.IsMBR || len(p.Envelopes) == 0 || len(p.Identifications) == 0 {
			continue
		}
		if distinctSequenceCount(p.Identifications) != 1 {
			continue
		}
		if p.Identifications[0].QValue >= qThreshold {
			continue
		}
		out = append(out, p)
	}
	return out
}

func distinctSequenceCount(ids []models.Identification) int {
	seen := map[string]struct{}{}
	for _, id := range ids {
		seen[id.ModifiedSequence] = struct{}{}
	}
	return len(seen)
}

// bestPerSequence groups qualifying peaks by modified sequence and selects
// one per group per cfg's donor_criterion (spec §4.7 step 1).
func bestPerSequence(qualifyingPeaks []*models.ChromatographicPeak, criterion models.DonorCriterion, alignmentWindow float64) map[string]*models.ChromatographicPeak {
	groups := map[string][]*models.ChromatographicPeak{}
	for _, p := range qualifyingPeaks {
		seq := p.ModifiedSequence()
		groups[seq] = append(groups[seq], p)
	}

	best := make(map[string]*models.ChromatographicPeak, len(groups))
	for seq, group := range groups {
		best[seq] = selectBest(group, qualifyingPeaks, criterion, alignmentWindow)
	}
	return best
}

func selectBest(group, allQualifying []*models.ChromatographicPeak, criterion models.DonorCriterion, alignmentWindow float64) *models.ChromatographicPeak {
	switch criterion {
	case models.DonorCriterionNeighbors:
		return argmax(group, func(p *models.ChromatographicPeak) float64 {
			return float64(neighborCount(p, allQualifying, alignmentWindow))
		})
	case models.DonorCriterionIntensity:
		return argmax(group, func(p *models.ChromatographicPeak) float64 { return p.Intensity })
	default: // Score, and the zero value
		byScore := argmax(group, func(p *models.ChromatographicPeak) float64 { return p.Identifications[0].PsmScore })
		if byScore.Identifications[0].PsmScore == 0 {
			return argmax(group, func(p *models.ChromatographicPeak) float64 { return p.Intensity })
		}
		return byScore
	}
}

func argmax(peaks []*models.ChromatographicPeak, key func(*models.ChromatographicPeak) float64) *models.ChromatographicPeak {
	best := peaks[0]
	bestVal := key(best)
	for _, p := range peaks[1:] {
		if v := key(p); v > bestVal {
			best, bestVal = p, v
		}
	}
	return best
}

// neighborCount counts distinct modified sequences, other than candidate's
// own, whose apex RT falls within window of candidate's apex RT.
func neighborCount(candidate *models.ChromatographicPeak, all []*models.ChromatographicPeak, window float64) int {
	apex, ok := candidate.Apex()
	if !ok {
		return 0
	}
	seen := map[string]struct{}{}
	for _, p := range all {
		if p == candidate {
			continue
		}
		peerApex, ok := p.Apex()
		if !ok {
			continue
		}
		if math.Abs(peerApex.Peak.RetentionTime-apex.Peak.RetentionTime) <= window {
			seen[p.ModifiedSequence()] = struct{}{}
		}
	}
	return len(seen)
}

// Prediction is the predicted acceptor RT window for a transferred donor
// peak (spec §4.7 step 3).
type Prediction struct {
	RT    float64
	Width float64
}

// Predict computes the acceptor RT window for a donor peak at donorRT,
// using up to numAnchors anchors on each side within maxAnchorSeedDistance
// of donorRT (spec §4.7 step 3). anchors must be sorted ascending by
// DonorRT (as SelectAnchors returns them).
func Predict(anchors []AnchorPair, donorRT float64, numAnchors int, rtWindow float64) Prediction {
	if len(anchors) == 0 {
		return Prediction{RT: donorRT, Width: fallbackWidth}
	}

	pos := sort.Search(len(anchors), func(i int) bool { return anchors[i].DonorRT >= donorRT })

	var deltas []float64
	// Left side: anchors immediately before pos, nearest first.
	count := 0
	for i := pos - 1; i >= 0 && count < numAnchors; i-- {
		if donorRT-anchors[i].DonorRT > maxAnchorSeedDistance {
			break
		}
		deltas = append(deltas, anchors[i].DonorRT-anchors[i].AcceptorRT)
		count++
	}
	// Right side.
	count = 0
	for i := pos; i < len(anchors) && count < numAnchors; i++ {
		if anchors[i].DonorRT-donorRT > maxAnchorSeedDistance {
			break
		}
		deltas = append(deltas, anchors[i].DonorRT-anchors[i].AcceptorRT)
		count++
	}

	switch len(deltas) {
	case 0:
		return Prediction{RT: donorRT, Width: fallbackWidth}
	case 1:
		return Prediction{RT: donorRT - deltas[0], Width: fallbackWidth}
	default:
		sorted := append([]float64{}, deltas...)
		sort.Float64s(sorted)
		median := stat.Quantile(0.5, stat.Empirical, sorted, nil)
		sd := stat.StdDev(deltas, nil)
		width := math.Min(6*sd, rtWindow)
		return Prediction{RT: donorRT - median, Width: width}
	}
}
