package diagnostics

import (
	"testing"
	"time"

	"github.com/quantcore/lfq-engine/pkg/models"
)

func TestReportUpdatesSnapshot(t *testing.T) {
	h := NewHub()
	h.Report(models.RunDiagnostics{RunID: "run-1", PeaksBuilt: 10})
	h.Report(models.RunDiagnostics{RunID: "run-1", PeaksBuilt: 20})
	h.Report(models.RunDiagnostics{RunID: "run-2", PeaksBuilt: 5})

	snap := h.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot() returned %d entries, want 2 (latest per run)", len(snap))
	}
	for _, d := range snap {
		if d.RunID == "run-1" && d.PeaksBuilt != 20 {
			t.Errorf("run-1 snapshot has PeaksBuilt = %d, want latest value 20", d.PeaksBuilt)
		}
	}
}

func TestReportStampsUpdatedAt(t *testing.T) {
	h := NewHub()
	before := time.Now()
	h.Report(models.RunDiagnostics{RunID: "run-1"})
	snap := h.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("Snapshot() returned %d entries, want 1", len(snap))
	}
	if snap[0].UpdatedAt.Before(before) {
		t.Error("Report() did not stamp UpdatedAt with the current time")
	}
}

func TestReportDoesNotBlockWhenBroadcastChannelIsFull(t *testing.T) {
	h := NewHub()
	// Fill the broadcast channel without a Run() goroutine draining it.
	for i := 0; i < cap(h.broadcast)+5; i++ {
		h.Report(models.RunDiagnostics{RunID: "run-1", PeaksBuilt: i})
	}
	// Must not have blocked/deadlocked to reach here.
	if got := h.Snapshot()[0].PeaksBuilt; got != cap(h.broadcast)+4 {
		t.Errorf("final snapshot PeaksBuilt = %d, want %d (snapshot always updates even when broadcast drops)", got, cap(h.broadcast)+4)
	}
}
