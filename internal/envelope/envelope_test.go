package envelope

import (
	"testing"

	"github.com/quantcore/lfq-engine/internal/isotope"
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

// buildSingleScanRun places a clean three-isotope envelope at the given charge
// for profile, anchored at its peakfinding mass, in a single MS1 scan.
func buildSingleScanRun(t *testing.T, profile isotope.Profile, charge int, anchorIntensity float64) *peakindex.PeakIndex {
	t.Helper()

	var peaks []reader.CentroidPeak
	for _, iso := range profile.Isotopes {
		mass := profile.PeakfindingMass - profile.Isotopes[profile.PeakfindingIndex].MassShift + iso.MassShift
		mz := peakindex.NeutralMassToMz(mass, charge)
		peaks = append(peaks, reader.CentroidPeak{Mz: mz, Intensity: iso.Abundance * anchorIntensity})
	}

	r := &fakeReader{
		scans: []models.Ms1ScanInfo{{ZeroBasedMs1Index: 0, OneBasedScanNumber: 1, RetentionTime: 10.0}},
		peaks: [][]reader.CentroidPeak{peaks},
	}
	idx, err := peakindex.Build("run-1", "fake.raw", r)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return idx
}

func testProfile(t *testing.T) isotope.Profile {
	t.Helper()
	id := models.Identification{BaseSequence: "PEPTIDEK", MonoisotopicMass: 927.46}
	return isotope.Compute(id, 2)
}

func TestValidateAcceptsCleanEnvelope(t *testing.T) {
	profile := testProfile(t)
	idx := buildSingleScanRun(t, profile, 2, 100000)

	env, ok := Validate(idx, profile, 0, 2, 10, 2)
	if !ok {
		t.Fatal("Validate() ok = false, want true for a clean synthetic envelope")
	}
	if env.PearsonCorrelation < pearsonGate {
		t.Errorf("PearsonCorrelation = %v, want >= %v", env.PearsonCorrelation, pearsonGate)
	}
	if env.Charge != 2 {
		t.Errorf("Charge = %d, want 2", env.Charge)
	}
}

func TestValidateRejectsTooFewIsotopes(t *testing.T) {
	profile := testProfile(t)
	idx := buildSingleScanRun(t, profile, 2, 100000)

	if _, ok := Validate(idx, profile, 0, 2, 10, 10); ok {
		t.Error("Validate() ok = true, want false when numIsotopesRequired exceeds what's present")
	}
}

func TestValidateRejectsMissingAnchor(t *testing.T) {
	profile := testProfile(t)
	r := &fakeReader{
		scans: []models.Ms1ScanInfo{{ZeroBasedMs1Index: 0, OneBasedScanNumber: 1, RetentionTime: 10.0}},
		peaks: [][]reader.CentroidPeak{{{Mz: 200.0, Intensity: 500}}},
	}
	idx, err := peakindex.Build("run-1", "fake.raw", r)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if _, ok := Validate(idx, profile, 0, 2, 10, 2); ok {
		t.Error("Validate() ok = true, want false when the anchor mass is absent")
	}
}
