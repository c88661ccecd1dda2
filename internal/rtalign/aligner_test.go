package rtalign

import (
	"testing"

	"github.com/quantcore/lfq-engine/pkg/models"
)

func peakWith(seq string, apexRT, score, intensity, qvalue float64) *models.ChromatographicPeak {
	p := &models.ChromatographicPeak{
		Identifications: []models.Identification{{ModifiedSequence: seq, PsmScore: score, QValue: qvalue}},
		Envelopes: []models.IsotopicEnvelope{
			{Peak: models.IndexedPeak{RetentionTime: apexRT}, SummedIntensity: intensity},
		},
		Intensity: intensity,
	}
	p.RecalculateApex()
	return p
}

func TestSelectAnchorsIntersectsSharedSequences(t *testing.T) {
	donor := []*models.ChromatographicPeak{
		peakWith("PEPTIDEK", 10.0, 50, 1000, 0.001),
		peakWith("ANOTHERPEP", 12.0, 40, 900, 0.001),
	}
	acceptor := []*models.ChromatographicPeak{
		peakWith("PEPTIDEK", 10.5, 55, 1100, 0.001),
		// ANOTHERPEP missing from acceptor run.
	}

	anchors := SelectAnchors(donor, acceptor, cfgWithDefaults())
	if len(anchors) != 1 {
		t.Fatalf("SelectAnchors() returned %d anchors, want 1 (only shared sequence)", len(anchors))
	}
	if anchors[0].Sequence != "PEPTIDEK" {
		t.Errorf("anchor sequence = %q, want PEPTIDEK", anchors[0].Sequence)
	}
}

func TestSelectAnchorsExcludesChimericPeaks(t *testing.T) {
	chimeric := &models.ChromatographicPeak{
		Identifications: []models.Identification{
			{ModifiedSequence: "SEQA", QValue: 0.001},
			{ModifiedSequence: "SEQB", QValue: 0.001},
		},
		Envelopes: []models.IsotopicEnvelope{{Peak: models.IndexedPeak{RetentionTime: 5.0}, SummedIntensity: 100}},
	}
	chimeric.RecalculateApex()

	donor := []*models.ChromatographicPeak{chimeric}
	acceptor := []*models.ChromatographicPeak{peakWith("SEQA", 5.1, 10, 100, 0.001)}

	anchors := SelectAnchors(donor, acceptor, cfgWithDefaults())
	if len(anchors) != 0 {
		t.Errorf("SelectAnchors() returned %d anchors, want 0 (chimeric peak excluded)", len(anchors))
	}
}

func TestPredictUsesMedianDeltaAcrossAnchors(t *testing.T) {
	anchors := []AnchorPair{
		{Sequence: "A", DonorRT: 9.8, AcceptorRT: 10.0}, // delta -0.2
		{Sequence: "B", DonorRT: 10.0, AcceptorRT: 10.2}, // delta -0.2
		{Sequence: "C", DonorRT: 10.2, AcceptorRT: 10.4}, // delta -0.2
	}

	pred := Predict(anchors, 10.0, 3, 1.0)
	if diff := pred.RT - 10.2; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Predict().RT = %v, want 10.2 (donor - median delta)", pred.RT)
	}
}

func TestPredictFallsBackWithNoAnchors(t *testing.T) {
	pred := Predict(nil, 15.0, 3, 1.0)
	if pred.RT != 15.0 || pred.Width != fallbackWidth {
		t.Errorf("Predict() = %+v, want {RT:15.0 Width:%v}", pred, fallbackWidth)
	}
}

func TestPredictSingleAnchorUsesFallbackWidth(t *testing.T) {
	anchors := []AnchorPair{{Sequence: "A", DonorRT: 10.0, AcceptorRT: 10.3}}
	pred := Predict(anchors, 10.1, 3, 1.0)
	if pred.Width != fallbackWidth {
		t.Errorf("Width = %v, want fallback %v with a single anchor", pred.Width, fallbackWidth)
	}
}

func cfgWithDefaults() models.EngineConfig {
	return models.EngineConfig{
		DonorCriterion:          models.DonorCriterionScore,
		DonorQValueThreshold:    0.01,
		MBRAlignmentWindow:      2.5,
		NumAnchorPeptidesForMBR: 3,
	}
}
