// Package mbrscore implements the MBR Scorer (spec §4.8): fits per-acceptor
// statistical distributions and scores a candidate MBR peak against a
// donor identification.
package mbrscore

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/quantcore/lfq-engine/internal/peakindex"
	"github.com/quantcore/lfq-engine/pkg/models"
)

// minPpmSamples is the minimum number of MS2-identified acceptor peaks
// needed to fit a usable ppm-error distribution (spec §4.8).
const minPpmSamples = 3

// smallSampleThreshold switches the spread estimator from IQR/1.36 to a
// plain standard deviation below this many samples (spec §4.8).
const smallSampleThreshold = 30

// pearsonWeight is the unit weight applied to envelope Pearson correlation
// in the composite score (Open Question decision: fixed unit weights, with
// correlation entering as one more additive term — see DESIGN.md).
const pearsonWeight = 1.0

// Distributions holds the acceptor-run statistical model the scorer
// evaluates candidates against.
type Distributions struct {
	Ppm                      distuv.Normal
	LogIntensity             distuv.Normal
	RTError                  distuv.Normal
	FoldChange               *distuv.Normal
	EffectiveMBRPpmTolerance float64
	Valid                    bool
}

// FitAcceptor fits the ppm-error and log-intensity distributions from the
// acceptor run's own MS2-identified (non-MBR) peaks (spec §4.8).
func FitAcceptor(acceptorPeaks []*models.ChromatographicPeak, cfg models.EngineConfig) Distributions {
	var ppmErrors, logIntensities []float64
	for _, p := range acceptorPeaks {
		if p.IsMBR || len(p.Identifications) == 0 {
			continue
		}
		apex, ok := p.Apex()
		if !ok {
			continue
		}
		observedMass := peakindex.MzToNeutralMass(apex.Peak.Mz, apex.Charge)
		target := p.Identifications[0].PeakfindingMass
		if target == 0 {
			continue
		}
		ppmErrors = append(ppmErrors, (observedMass-target)/target*1e6)
		if p.Intensity > 0 {
			logIntensities = append(logIntensities, math.Log2(p.Intensity))
		}
	}

	if len(ppmErrors) < minPpmSamples {
		return Distributions{Valid: false}
	}

	median, spread := medianSpread(ppmErrors)
	effectiveTol := math.Min(math.Abs(median)+4*spread, cfg.MBRPpmTolerance)

	logMean, logSD := stat.MeanStdDev(logIntensities, nil)
	if logSD == 0 {
		logSD = 1
	}

	return Distributions{
		Ppm:                      distuv.Normal{Mu: median, Sigma: spread},
		LogIntensity:             distuv.Normal{Mu: logMean, Sigma: logSD},
		EffectiveMBRPpmTolerance: effectiveTol,
		Valid:                    true,
	}
}

// WithRTError returns a copy of d with the RT-prediction-error distribution
// fit from this donor's anchor RT deltas (spec §4.8, "per donor").
func (d Distributions) WithRTError(deltas []float64) Distributions {
	if len(deltas) == 0 {
		d.RTError = distuv.Normal{Mu: 0, Sigma: 1}
		return d
	}
	mean, sd := stat.MeanStdDev(deltas, nil)
	if sd == 0 {
		sd = 0.1
	}
	d.RTError = distuv.Normal{Mu: mean, Sigma: sd}
	return d
}

// WithFoldChange sets the optional fold-change distribution used when the
// donor and acceptor runs are in different conditions (spec §4.8).
func (d Distributions) WithFoldChange(mean, sd float64) Distributions {
	if sd == 0 {
		sd = 1
	}
	fc := distuv.Normal{Mu: mean, Sigma: sd}
	d.FoldChange = &fc
	return d
}

func medianSpread(samples []float64) (median, spread float64) {
	sorted := append([]float64{}, samples...)
	sort.Float64s(sorted)
	median = stat.Quantile(0.5, stat.Empirical, sorted, nil)

	if len(sorted) < smallSampleThreshold {
		_, sd := stat.MeanStdDev(sorted, nil)
		if sd == 0 {
			sd = 1
		}
		return median, sd
	}

	q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
	iqr := q3 - q1
	if iqr == 0 {
		iqr = 1
	}
	return median, iqr / 1.36
}

// Candidate is everything the scorer needs about one candidate acceptor
// peak to compute its composite score.
type Candidate struct {
	ObservedMass     float64
	TargetMass       float64
	ApexRT           float64
	PredictedRT      float64
	LogIntensity     float64
	PearsonCorrelation float64
	// FoldChangeDelta is donor-vs-acceptor log-intensity delta, used only
	// when d.FoldChange is set.
	FoldChangeDelta float64
}

// Score computes the composite score of candidate against d: higher is
// better (spec §4.8). Unit weights across terms, which are not
// configurable; Pearson correlation is added as one more term, and there
// is no separate tie-break step (Open Question decision, see DESIGN.md).
func Score(d Distributions, c Candidate) float64 {
	ppmErr := (c.ObservedMass - c.TargetMass) / c.TargetMass * 1e6
	rtDev := c.ApexRT - c.PredictedRT

	score := d.Ppm.LogProb(ppmErr) + d.RTError.LogProb(rtDev) + d.LogIntensity.LogProb(c.LogIntensity)
	score += pearsonWeight * c.PearsonCorrelation

	if d.FoldChange != nil {
		score += d.FoldChange.LogProb(c.FoldChangeDelta)
	}
	return score
}
