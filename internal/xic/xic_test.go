package xic

import (
	"testing"

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

// buildRun constructs a 7-scan run where a single mass (m/z 500.25 at z=1)
// is present in scans 0,1,3,4,5 (scan 2 and 6 miss).
func buildRun(t *testing.T) *peakindex.PeakIndex {
	t.Helper()
	r := &fakeReader{}
	for i := 0; i < 7; i++ {
		r.scans = append(r.scans, models.Ms1ScanInfo{
			ZeroBasedMs1Index: uint32(i),
			OneBasedScanNumber: uint32(i + 1),
			RetentionTime:      10.0 + float64(i)*0.1,
		})
		switch i {
		case 2, 6:
			r.peaks = append(r.peaks, nil)
		default:
			r.peaks = append(r.peaks, []reader.CentroidPeak{{Mz: 500.2502, Intensity: 1000 + float64(i)}})
		}
	}
	idx, err := peakindex.Build("run-1", "fake.raw", r)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return idx
}

func TestPeakFindTraversesMissedScan(t *testing.T) {
	idx := buildRun(t)
	mass := peakindex.MzToNeutralMass(500.2502, 1)

	points := PeakFind(idx, 10.3, mass, 1, 10, 1)
	// Scan 2 misses but is within the tolerated budget of 1, so scans
	// 0,1,3,4,5 should all be found; scan 6 misses again and the walk
	// stops after the single allowed miss.
	if len(points) != 5 {
		t.Fatalf("PeakFind() returned %d points, want 5", len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i].RetentionTime <= points[i-1].RetentionTime {
			t.Errorf("points not sorted ascending by RT at index %d", i)
		}
	}
}

func TestPeakFindStopsAtMissBudget(t *testing.T) {
	idx := buildRun(t)
	mass := peakindex.MzToNeutralMass(500.2502, 1)

	points := PeakFind(idx, 10.0, mass, 1, 10, 0)
	// With zero tolerated misses, the right-walk stops as soon as scan 2
	// misses (right after scan 1), and the left-walk stops immediately
	// since scan -1 doesn't exist; only the seed plus scan 1 should show.
	for _, p := range points {
		if p.ZeroBasedMs1Index > 1 {
			t.Errorf("found scan %d beyond the zero-miss budget", p.ZeroBasedMs1Index)
		}
	}
}

func TestPeakFindMissingMassReturnsEmpty(t *testing.T) {
	idx := buildRun(t)
	mass := peakindex.MzToNeutralMass(900.0, 1)

	points := PeakFind(idx, 10.3, mass, 1, 10, 1)
	if len(points) != 0 {
		t.Errorf("PeakFind() returned %d points, want 0 for absent mass", len(points))
	}
}
