// Package decoy implements decoy generation for match-between-runs (spec
// §4.9): picking a random-mass donor peak to seed a random-RT decoy search,
// using deterministic, seed-derived pseudo-randomness so a re-run with the
// same inputs reproduces bit-identical decoys.
package decoy

import (
	"math/rand/v2"

	"github.com/quantcore/lfq-engine/pkg/models"
)

// hydrogenMass is the "H" unit the spec's mass-gap bounds are expressed in.
const hydrogenMass = 1.00782503207

// minMassGapH and maxMassGapH bound how far (in hydrogen-mass units) a
// candidate decoy donor's peakfinding mass must sit from the real donor's,
// widened up to maxMassGapDaltons if nothing qualifies (spec §4.9).
const (
	minMassGapH      = 5.0
	maxMassGapH       = 11.0
	maxMassGapDaltons = 1e5
)

// RandomSource produces deterministic, seedable randomness for one
// donor-peak decoy draw.
func RandomSource(randomSeed uint64, donorSequence string, acceptorRunID string) *rand.Rand {
	hash := models.DeterministicHash(donorSequence, acceptorRunID)
	return rand.New(rand.NewPCG(randomSeed, hash))
}

// SelectRandomMassDonor picks, pseudo-randomly, a donor peak whose base
// sequence differs from donor's, whose peakfinding mass differs by at
// least minMassGapH and less than maxMassGapH hydrogen masses (widened up
// to maxMassGapDaltons if the pool yields nothing), and whose apex RT is
// at least minRTDistance away from donor's apex RT (spec §4.9 "decoy-RT
// search").
func SelectRandomMassDonor(rng *rand.Rand, donor *models.ChromatographicPeak, pool []*models.ChromatographicPeak, minRTDistance float64) (*models.ChromatographicPeak, bool) {
	donorApex, ok := donor.Apex()
	if !ok || len(donor.Identifications) == 0 {
		return nil, false
	}
	donorSeq := donor.Identifications[0].BaseSequence
	donorMass := donor.Identifications[0].PeakfindingMass
	donorRT := donorApex.Peak.RetentionTime

	upperH := maxMassGapH
	for {
		candidates := candidatesWithinGap(pool, donorSeq, donorMass, donorRT, minRTDistance, upperH)
		if len(candidates) > 0 {
			return candidates[rng.IntN(len(candidates))], true
		}
		if upperH*hydrogenMass >= maxMassGapDaltons {
			return nil, false
		}
		upperH *= 2
	}
}

func candidatesWithinGap(pool []*models.ChromatographicPeak, excludeSeq string, donorMass, donorRT, minRTDistance, upperH float64) []*models.ChromatographicPeak {
	var out []*models.ChromatographicPeak
	for _, p := range pool {
		if len(p.Identifications) == 0 {
			continue
		}
		id := p.Identifications[0]
		if id.BaseSequence == excludeSeq {
			continue
		}
		gap := id.PeakfindingMass - donorMass
		if gap < 0 {
			gap = -gap
		}
		gapH := gap / hydrogenMass
		if gapH < minMassGapH || gapH >= upperH {
			continue
		}
		apex, ok := p.Apex()
		if !ok {
			continue
		}
		rtDist := apex.Peak.RetentionTime - donorRT
		if rtDist < 0 {
			rtDist = -rtDist
		}
		if rtDist < minRTDistance {
			continue
		}
		out = append(out, p)
	}
	return out
}
