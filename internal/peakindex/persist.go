package peakindex

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/quantcore/lfq-engine/pkg/models"
)

// wireFormat is the gob-serializable shadow of PeakIndex; PeakIndex itself
// keeps buckets unexported so callers can't mutate it after Build.
type wireFormat struct {
	RunID   string
	Scans   []models.Ms1ScanInfo
	Buckets map[int][]models.IndexedPeak
}

// Save writes idx to w as zstd-compressed gob, so a rebuilt index can be
// rehydrated without re-reading the raw MS1 file (spec §4.1 persistence
// note: Peak Index build is the dominant per-run cost).
func Save(idx *PeakIndex, w io.Writer) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("peakindex: opening zstd writer: %w", err)
	}
	defer zw.Close()

	enc := gob.NewEncoder(zw)
	wf := wireFormat{RunID: idx.RunID, Scans: idx.Scans, Buckets: idx.buckets}
	if err := enc.Encode(&wf); err != nil {
		return fmt.Errorf("peakindex: encoding run %s: %w", idx.RunID, err)
	}
	return zw.Close()
}

// Rehydrate reads a PeakIndex previously written by Save.
func Rehydrate(r io.Reader) (*PeakIndex, error) {
	zr, err := zstd.NewReader(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("peakindex: opening zstd reader: %w", err)
	}
	defer zr.Close()

	var wf wireFormat
	if err := gob.NewDecoder(zr).Decode(&wf); err != nil {
		return nil, fmt.Errorf("peakindex: decoding: %w", err)
	}

	return &PeakIndex{RunID: wf.RunID, Scans: wf.Scans, buckets: wf.Buckets}, nil
}
