package mbr

import (
	"math"
	"testing"

	"github.com/quantcore/lfq-engine/internal/config"
	"github.com/quantcore/lfq-engine/internal/isotope"
	"github.com/quantcore/lfq-engine/internal/ms2quant"
	"github.com/quantcore/lfq-engine/internal/peakindex"
	"github.com/quantcore/lfq-engine/internal/reader"
	"github.com/quantcore/lfq-engine/pkg/models"
)

type fakeReader struct {
	scans []models.Ms1ScanInfo
	peaks [][]reader.CentroidPeak
}

func (f *fakeReader) ReadRun(_ string, yield func(models.Ms1ScanInfo, []reader.CentroidPeak) error) error {
	for i, s := range f.scans {
		if err := yield(s, f.peaks[i]); err != nil {
			return err
		}
	}
	return nil
}

type pepDef struct {
	id       models.Identification
	charge   int
	rtCenter float64
}

// buildCombinedRun lays down a raw MS1 index spanning rt [0, rtEnd] at 0.1
// min resolution, with every def's isotope envelope cleanly eluting around
// its own rtCenter over 7 scans, sharing one fakeReader stream the way
// multiple co-eluting precursors share one real acquisition.
func buildCombinedRun(t *testing.T, runID string, defs []pepDef, rtEnd float64) *peakindex.PeakIndex {
	t.Helper()
	shape := []float64{2000, 8000, 30000, 60000, 25000, 7000, 1500}
	const step = 0.1

	r := &fakeReader{}
	numScans := int(rtEnd/step) + 1
	for scan := 0; scan < numScans; scan++ {
		rt := float64(scan) * step
		var peaks []reader.CentroidPeak
		for _, d := range defs {
			offset := int(math.Round((rt - d.rtCenter) / step))
			if offset < -3 || offset > 3 {
				continue
			}
			profile := isotope.Compute(d.id, 2)
			apexIntensity := shape[offset+3]
			for _, iso := range profile.Isotopes {
				mass := profile.PeakfindingMass - profile.Isotopes[profile.PeakfindingIndex].MassShift + iso.MassShift
				mz := peakindex.NeutralMassToMz(mass, d.charge)
				peaks = append(peaks, reader.CentroidPeak{Mz: mz, Intensity: iso.Abundance * apexIntensity})
			}
		}
		r.scans = append(r.scans, models.Ms1ScanInfo{
			ZeroBasedMs1Index:  uint32(scan),
			OneBasedScanNumber: uint32(scan + 1),
			RetentionTime:      rt,
		})
		r.peaks = append(r.peaks, peaks)
	}

	idx, err := peakindex.Build(runID, "fake.raw", r)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return idx
}

func anchorID(seq string, mass float64, rt float64) models.Identification {
	return models.Identification{
		ModifiedSequence: seq,
		BaseSequence:     seq,
		MonoisotopicMass: mass,
		PrecursorCharge:  2,
		Ms2RetentionTime: rt,
		PsmScore:         20.0,
		QValue:           0.001,
	}
}

func TestAcceptorRunTransfersDonorOnlyPeptide(t *testing.T) {
	anchorA := anchorID("ANCHORA", 1600.0, 5.0)
	anchorB := anchorID("ANCHORB", 1700.0, 10.0)
	anchorC := anchorID("ANCHORC", 1800.0, 15.0)
	donorOnly := anchorID("DONORONLY", 1900.0, 10.3)

	donorDefs := []pepDef{
		{anchorA, 2, 5.0}, {anchorB, 2, 10.0}, {anchorC, 2, 15.0}, {donorOnly, 2, 10.3},
	}
	// Acceptor's raw MS1 signal carries the same precursors, RT-shifted by
	// a constant +0.4 min drift (including the unidentified DONORONLY
	// precursor waiting to be matched in).
	acceptorAnchorA := anchorID("ANCHORA", 1600.0, 5.4)
	acceptorAnchorB := anchorID("ANCHORB", 1700.0, 10.4)
	acceptorAnchorC := anchorID("ANCHORC", 1800.0, 15.4)
	acceptorDefs := []pepDef{
		{acceptorAnchorA, 2, 5.4}, {acceptorAnchorB, 2, 10.4}, {acceptorAnchorC, 2, 15.4},
		{anchorID("DONORONLY", 1900.0, 10.7), 2, 10.7},
	}

	donorIdx := buildCombinedRun(t, "donor-run", donorDefs, 16.0)
	acceptorIdx := buildCombinedRun(t, "acceptor-run", acceptorDefs, 16.0)

	cfg := config.Default()
	cfg.MatchBetweenRuns = true

	donorPeaks := ms2quant.QuantifyRun(donorIdx, []models.Identification{anchorA, anchorB, anchorC, donorOnly}, cfg)
	acceptorPeaks := ms2quant.QuantifyRun(acceptorIdx, []models.Identification{acceptorAnchorA, acceptorAnchorB, acceptorAnchorC}, cfg)

	if len(donorPeaks) != 4 {
		t.Fatalf("donor QuantifyRun() produced %d peaks, want 4", len(donorPeaks))
	}
	if len(acceptorPeaks) != 3 {
		t.Fatalf("acceptor QuantifyRun() produced %d peaks, want 3", len(acceptorPeaks))
	}

	result := AcceptorRun("acceptor-run", acceptorIdx, acceptorPeaks, map[string][]*models.ChromatographicPeak{
		"donor-run": donorPeaks,
	}, cfg)

	found := false
	for _, p := range result {
		if p.ModifiedSequence() == "DONORONLY" && p.IsMBR {
			found = true
		}
	}
	if !found {
		t.Error("AcceptorRun() did not transfer DONORONLY via MBR despite a clean matching precursor in the acceptor's raw MS1 data")
	}
}

func TestAcceptorRunRequireMsmsIDInConditionBlocksUnsupportedDonor(t *testing.T) {
	anchorA := anchorID("ANCHORA", 1600.0, 5.0)
	anchorB := anchorID("ANCHORB", 1700.0, 10.0)
	anchorC := anchorID("ANCHORC", 1800.0, 15.0)
	donorOnly := anchorID("DONORONLY", 1900.0, 10.3)
	donorOnly.ProteinGroupIndices = []int{7}

	donorDefs := []pepDef{
		{anchorA, 2, 5.0}, {anchorB, 2, 10.0}, {anchorC, 2, 15.0}, {donorOnly, 2, 10.3},
	}
	acceptorAnchorA := anchorID("ANCHORA", 1600.0, 5.4)
	acceptorAnchorB := anchorID("ANCHORB", 1700.0, 10.4)
	acceptorAnchorC := anchorID("ANCHORC", 1800.0, 15.4)
	// None of the acceptor's own MS2 identifications share DONORONLY's
	// protein group, so require_msms_id_in_condition must block the transfer.
	acceptorAnchorA.ProteinGroupIndices = []int{1}
	acceptorAnchorB.ProteinGroupIndices = []int{2}
	acceptorAnchorC.ProteinGroupIndices = []int{3}
	acceptorDefs := []pepDef{
		{acceptorAnchorA, 2, 5.4}, {acceptorAnchorB, 2, 10.4}, {acceptorAnchorC, 2, 15.4},
		{anchorID("DONORONLY", 1900.0, 10.7), 2, 10.7},
	}

	donorIdx := buildCombinedRun(t, "donor-run", donorDefs, 16.0)
	acceptorIdx := buildCombinedRun(t, "acceptor-run", acceptorDefs, 16.0)

	cfg := config.Default()
	cfg.MatchBetweenRuns = true
	cfg.RequireMsmsIDInCondition = true

	donorPeaks := ms2quant.QuantifyRun(donorIdx, []models.Identification{anchorA, anchorB, anchorC, donorOnly}, cfg)
	acceptorPeaks := ms2quant.QuantifyRun(acceptorIdx, []models.Identification{acceptorAnchorA, acceptorAnchorB, acceptorAnchorC}, cfg)

	result := AcceptorRun("acceptor-run", acceptorIdx, acceptorPeaks, map[string][]*models.ChromatographicPeak{
		"donor-run": donorPeaks,
	}, cfg)

	for _, p := range result {
		if p.ModifiedSequence() == "DONORONLY" && p.IsMBR {
			t.Error("AcceptorRun() transferred DONORONLY via MBR despite require_msms_id_in_condition and no matching acceptor MS2 ID in its protein group")
		}
	}
}

func TestAcceptorRunSkipsWhenScorerCannotFit(t *testing.T) {
	// Too few of the acceptor's own MS2 peaks (< minPpmSamples) to fit
	// distributions: MBR is skipped and the acceptor's own peaks pass
	// through unchanged.
	acceptorDefs := []pepDef{{anchorID("ONLYONE", 1600.0, 5.0), 2, 5.0}}
	acceptorIdx := buildCombinedRun(t, "acceptor-run", acceptorDefs, 8.0)
	cfg := config.Default()

	acceptorPeaks := ms2quant.QuantifyRun(acceptorIdx, []models.Identification{acceptorDefs[0].id}, cfg)
	result := AcceptorRun("acceptor-run", acceptorIdx, acceptorPeaks, map[string][]*models.ChromatographicPeak{}, cfg)

	if len(result) != len(acceptorPeaks) {
		t.Errorf("AcceptorRun() returned %d peaks, want %d (unchanged, scorer can't fit)", len(result), len(acceptorPeaks))
	}
}
