package peakindex

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestSaveRehydrateRoundTrip(t *testing.T) {
	idx := buildTestIndex(t)

	var buf bytes.Buffer
	if err := Save(idx, &buf); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Rehydrate(&buf)
	if err != nil {
		t.Fatalf("Rehydrate() error = %v", err)
	}

	if got.RunID != idx.RunID {
		t.Errorf("RunID = %q, want %q", got.RunID, idx.RunID)
	}
	if got.NumScans() != idx.NumScans() {
		t.Errorf("NumScans() = %d, want %d", got.NumScans(), idx.NumScans())
	}

	targetMass := MzToNeutralMass(500.2502, 1)
	peak, ok := got.Get(targetMass, 0, 10, 1)
	if !ok || peak.Intensity != 4000 {
		t.Errorf("Get() after round trip = (%v, %v), want (4000, true)", peak.Intensity, ok)
	}
}

func TestCachePutGetRehydratesAfterEviction(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCache(1, dir)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}

	idxA := buildTestIndex(t)
	idxA.RunID = "run-a"
	idxB := buildTestIndex(t)
	idxB.RunID = "run-b"

	if err := c.Put(idxA); err != nil {
		t.Fatalf("Put(run-a) error = %v", err)
	}
	if err := c.Put(idxB); err != nil {
		t.Fatalf("Put(run-b) error = %v", err)
	}
	// Cache size 1: putting run-b should have evicted run-a from memory,
	// but it must still be fetchable from disk.
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}

	got, err := c.Get("run-a")
	if err != nil {
		t.Fatalf("Get(run-a) error = %v, want successful rehydrate from disk", err)
	}
	if got.RunID != "run-a" {
		t.Errorf("Get(run-a).RunID = %q, want run-a", got.RunID)
	}

	if _, err := c.Get("run-missing"); err == nil {
		t.Error("Get(run-missing) error = nil, want error for never-Put run")
	}
}

func TestCachePathIsStableWithinDir(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCache(2, dir)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	got := c.path("run-x")
	want := filepath.Join(dir, "run-x.peakidx")
	if got != want {
		t.Errorf("path() = %q, want %q", got, want)
	}
}
