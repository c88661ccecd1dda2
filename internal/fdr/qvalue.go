// Package fdr implements the FDR/PEP Estimator (spec §4.10): a double-decoy
// q-value walk over MBR peaks, q-value monotonization, and an optional
// posterior-error-probability classifier pass.
package fdr

import (
	"sort"

	"github.com/quantcore/lfq-engine/pkg/models"
)

// EstimateQValues sorts peaks by MBR score descending, walks the
// target/decoy-peptide/random-RT/double-decoy counters, and assigns a
// monotonized q-value to each peak's MBRQValue (spec §4.10). Peaks with a
// nil MBRScore are treated as scoring 0, so they sort after positive scores
// and ahead of negative ones. Only peaks with
// IsMBR set participate; others are left untouched.
func EstimateQValues(peaks []*models.ChromatographicPeak) {
	mbrPeaks := make([]*models.ChromatographicPeak, 0, len(peaks))
	for _, p := range peaks {
		if p.IsMBR {
			mbrPeaks = append(mbrPeaks, p)
		}
	}
	if len(mbrPeaks) == 0 {
		return
	}

	sort.SliceStable(mbrPeaks, func(i, j int) bool {
		return mbrScore(mbrPeaks[i]) > mbrScore(mbrPeaks[j])
	})

	qvalues := make([]float64, len(mbrPeaks))
	var target, decoyPeptide, randomRT, doubleDecoy float64
	for i, p := range mbrPeaks {
		switch {
		case p.DecoyPeptide && p.RandomRT:
			doubleDecoy++
		case p.DecoyPeptide:
			decoyPeptide++
		case p.RandomRT:
			randomRT++
		default:
			target++
		}

		estimatedDecoyPeptideErrors := decoyPeptide - doubleDecoy
		if estimatedDecoyPeptideErrors < 0 {
			estimatedDecoyPeptideErrors = 0
		}
		if target == 0 {
			qvalues[i] = 1.0
			continue
		}
		qvalues[i] = (1 + randomRT + estimatedDecoyPeptideErrors) / target
	}

	// Monotonize from high index (lowest score) to low (highest score):
	// a peak's q-value is never worse than every peak scoring below it.
	for i := len(qvalues) - 2; i >= 0; i-- {
		if qvalues[i+1] < qvalues[i] {
			qvalues[i] = qvalues[i+1]
		}
	}

	for i, p := range mbrPeaks {
		q := qvalues[i]
		p.MBRQValue = &q
	}
}

func mbrScore(p *models.ChromatographicPeak) float64 {
	if p.MBRScore == nil {
		return 0
	}
	return *p.MBRScore
}
