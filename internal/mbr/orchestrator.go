// Package mbr implements the MBR Orchestrator (spec §4.9): per-acceptor-run
// donor loop, target/decoy candidate search, and the per-sequence
// registration and conflict-resolution passes that follow it.
package mbr

import (
	"math"

	"github.com/quantcore/lfq-engine/internal/decoy"
	"github.com/quantcore/lfq-engine/internal/envelope"
	"github.com/quantcore/lfq-engine/internal/isotope"
	"github.com/quantcore/lfq-engine/internal/mbrscore"
	"github.com/quantcore/lfq-engine/internal/peakcutter"
	"github.com/quantcore/lfq-engine/internal/peakindex"
	"github.com/quantcore/lfq-engine/internal/rtalign"
	"github.com/quantcore/lfq-engine/internal/xic"
	"github.com/quantcore/lfq-engine/pkg/models"
)

// widenStep is how much the RT search window grows per retry, capped at
// cfg.MBRRTWindow (spec §4.9 step 2, "widen window by 0.5 min and retry").
const widenStep = 0.5

// AcceptorRun runs the full MBR search for one acceptor run against every
// other run's donor peaks, returning the acceptor's MS2 peaks merged with
// accepted MBR peaks (spec §4.9, error-checking pass included). If the
// acceptor's ppm/log-intensity distributions can't be fit (too few MS2
// peaks), MBR is skipped and the acceptor's own peaks are returned as-is.
func AcceptorRun(acceptorRunID string, acceptorIdx *peakindex.PeakIndex, acceptorPeaks []*models.ChromatographicPeak, donorRuns map[string][]*models.ChromatographicPeak, cfg models.EngineConfig) []*models.ChromatographicPeak {
	dist := mbrscore.FitAcceptor(acceptorPeaks, cfg)
	if !dist.Valid {
		return acceptorPeaks
	}

	msmsSequences := make(map[string]bool, len(acceptorPeaks))
	for _, p := range acceptorPeaks {
		if !p.IsMBR {
			msmsSequences[p.ModifiedSequence()] = true
		}
	}

	registry := NewRegistry()
	for donorRunID, donorPeaks := range donorRuns {
		if donorRunID == acceptorRunID {
			continue
		}
		runDonor(acceptorRunID, donorRunID, acceptorIdx, donorPeaks, acceptorPeaks, msmsSequences, dist, registry, cfg)
	}

	chosen := postPass(cfg, registry, acceptorPeaks)
	return mergeAndResolve(cfg, acceptorPeaks, chosen)
}

func runDonor(acceptorRunID, donorRunID string, acceptorIdx *peakindex.PeakIndex, donorPeaks, acceptorPeaks []*models.ChromatographicPeak, msmsSequences map[string]bool, dist mbrscore.Distributions, registry *Registry, cfg models.EngineConfig) {
	anchors := rtalign.SelectAnchors(donorPeaks, acceptorPeaks, cfg)
	if len(anchors) == 0 {
		return
	}
	deltas := make([]float64, len(anchors))
	for i, a := range anchors {
		deltas[i] = a.DonorRT - a.AcceptorRT
	}
	donorDist := dist.WithRTError(deltas)

	for _, donorPeak := range donorPeaks {
		seq := donorPeak.ModifiedSequence()
		if seq == "" || msmsSequences[seq] {
			continue
		}
		if cfg.RequireMsmsIDInCondition && !proteinHasMsmsIDInAcceptor(donorPeak, acceptorPeaks) {
			continue
		}
		donorApex, ok := donorPeak.Apex()
		if !ok {
			continue
		}

		target, decoyPeak := searchWithWidening(acceptorIdx, donorPeak, donorPeaks, anchors, donorApex.Peak.RetentionTime, donorDist, cfg, acceptorRunID)
		if target != nil {
			registry.Add(seq, target)
		}
		if decoyPeak != nil {
			registry.Add(seq, decoyPeak)
		}
	}
}

func searchWithWidening(acceptorIdx *peakindex.PeakIndex, donorPeak *models.ChromatographicPeak, donorPool []*models.ChromatographicPeak, anchors []rtalign.AnchorPair, donorRT float64, dist mbrscore.Distributions, cfg models.EngineConfig, acceptorRunID string) (target, decoyPeak *models.ChromatographicPeak) {
	predicted := rtalign.Predict(anchors, donorRT, cfg.NumAnchorPeptidesForMBR, cfg.MBRRTWindow)
	width := predicted.Width

	id := donorPeak.Identifications[0]
	profile := isotope.Compute(id, cfg.NumIsotopesRequired)
	rng := decoy.RandomSource(cfg.RandomSeed, id.BaseSequence, acceptorRunID)

	for {
		target = searchCandidate(acceptorIdx, profile, id, donorPeak.ChargeList, predicted.RT, width, dist, cfg)

		if decoyDonor, ok := decoy.SelectRandomMassDonor(rng, donorPeak, donorPool, 2*width); ok {
			decoyApex, ok := decoyDonor.Apex()
			if ok {
				decoyPredicted := rtalign.Predict(anchors, decoyApex.Peak.RetentionTime, cfg.NumAnchorPeptidesForMBR, cfg.MBRRTWindow)
				decoyPeak = searchCandidate(acceptorIdx, profile, id, donorPeak.ChargeList, decoyPredicted.RT, width, dist, cfg)
				if decoyPeak != nil {
					decoyPeak.RandomRT = true
				}
			}
		}

		if (target != nil || decoyPeak != nil) || width >= cfg.MBRRTWindow {
			return target, decoyPeak
		}
		width += widenStep
		if width > cfg.MBRRTWindow {
			width = cfg.MBRRTWindow
		}
	}
}

// searchCandidate enumerates every charge in chargeList plus the donor's
// own precursor charge, assembling and scoring a candidate peak for every
// validated scan within the RT window, and returns the best-scoring one
// across all charges and scans (spec §4.9 step 2, "target search").
func searchCandidate(idx *peakindex.PeakIndex, profile isotope.Profile, id models.Identification, chargeList []int, rtCenter, width float64, dist mbrscore.Distributions, cfg models.EngineConfig) *models.ChromatographicPeak {
	charges := appendUnique(chargeList, id.PrecursorCharge)

	var best *models.ChromatographicPeak
	var bestScore float64

	for _, charge := range charges {
		loScan, hasLo := idx.ScanIndexAtOrBefore(rtCenter - width/2)
		hiScan, hasHi := idx.ScanIndexAtOrBefore(rtCenter + width/2)
		if !hasLo {
			loScan = 0
		}
		if !hasHi {
			hiScan = uint32(idx.NumScans() - 1)
		}

		for scan := loScan; scan <= hiScan; scan++ {
			env, ok := envelope.Validate(idx, profile, scan, charge, cfg.IsotopePpmTolerance, cfg.NumIsotopesRequired)
			if !ok {
				continue
			}
			observedMass := peakindex.MzToNeutralMass(env.Peak.Mz, charge)
			ppmErr := ppmAbs(observedMass, profile.PeakfindingMass)
			if ppmErr > dist.EffectiveMBRPpmTolerance {
				continue
			}

			candidate := assemble(idx, profile, env.Peak.RetentionTime, charge, cfg)
			if candidate == nil {
				continue
			}
			apex, ok := candidate.Apex()
			if !ok {
				continue
			}
			score := mbrscore.Score(dist, mbrscore.Candidate{
				ObservedMass:       peakindex.MzToNeutralMass(apex.Peak.Mz, charge),
				TargetMass:         profile.PeakfindingMass,
				ApexRT:             apex.Peak.RetentionTime,
				PredictedRT:        rtCenter,
				LogIntensity:       math.Log2(candidate.Intensity + 1),
				PearsonCorrelation: apex.PearsonCorrelation,
			})
			if best == nil || score > bestScore {
				best = candidate
				bestScore = score
			}
			if scan == hiScan {
				break
			}
		}
	}

	if best == nil {
		return nil
	}
	score := bestScore
	best.Identifications = []models.Identification{id}
	best.IsMBR = true
	best.DecoyPeptide = id.DecoyPeptide
	best.MBRScore = &score
	return best
}

// assemble builds one chromatographic peak by tracing the XIC around a
// seed scan and validating envelopes along it, mirroring the MS2
// Quantifier's per-identification assembly (internal/ms2quant).
func assemble(idx *peakindex.PeakIndex, profile isotope.Profile, seedRT float64, charge int, cfg models.EngineConfig) *models.ChromatographicPeak {
	candidates := xic.PeakFind(idx, seedRT, profile.PeakfindingMass, charge, cfg.PeakfindingPpmTolerance, cfg.MissedScansAllowed)
	if len(candidates) == 0 {
		return nil
	}

	peak := &models.ChromatographicPeak{}
	for _, c := range candidates {
		env, ok := envelope.Validate(idx, profile, c.ZeroBasedMs1Index, charge, cfg.IsotopePpmTolerance, cfg.NumIsotopesRequired)
		if !ok {
			continue
		}
		peak.Envelopes = append(peak.Envelopes, env)
		peak.ChargeList = appendUnique(peak.ChargeList, charge)
	}
	if len(peak.Envelopes) == 0 {
		return nil
	}
	peak.RecalculateApex()
	peakcutter.Cut(peak, seedRT, cfg.DiscriminationFactorToCutPeak)
	return peak
}

func ppmAbs(observed, target float64) float64 {
	if target == 0 {
		return 0
	}
	d := observed - target
	if d < 0 {
		d = -d
	}
	return d / target * 1e6
}

// proteinHasMsmsIDInAcceptor reports whether any of donorPeak's protein
// groups also has a non-MBR (MS2) identification among acceptorPeaks (spec
// §4.9 step 2, "optionally whose protein has at least one MS2 ID in the
// acceptor's condition"). Scoped to the acceptor run's own peaks, since that
// is the only "acceptor's condition" data available at this call boundary
// (see DESIGN.md).
func proteinHasMsmsIDInAcceptor(donorPeak *models.ChromatographicPeak, acceptorPeaks []*models.ChromatographicPeak) bool {
	if len(donorPeak.Identifications) == 0 {
		return false
	}
	donorProteins := donorPeak.Identifications[0].ProteinGroupIndices
	if len(donorProteins) == 0 {
		return false
	}
	wanted := make(map[int]bool, len(donorProteins))
	for _, pg := range donorProteins {
		wanted[pg] = true
	}
	for _, p := range acceptorPeaks {
		if p.IsMBR || len(p.Identifications) == 0 {
			continue
		}
		for _, pg := range p.Identifications[0].ProteinGroupIndices {
			if wanted[pg] {
				return true
			}
		}
	}
	return false
}

func appendUnique(list []int, v int) []int {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
