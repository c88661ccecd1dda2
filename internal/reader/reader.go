// Package reader defines the external-collaborator interfaces the engine
// consumes but never implements in production: the MS1 file reader and the
// identification loader (spec §1, "explicitly out of scope"). Only the
// interfaces and test fakes live here.
package reader

import "github.com/quantcore/lfq-engine/pkg/models"

// CentroidPeak is one centroided MS1 data point as handed in by the file
// reader, before it is wrapped into a models.IndexedPeak by the Peak Index.
type CentroidPeak struct {
	Mz        float64
	Intensity float64
}

// MS1Reader streams centroided MS1 scans for one run in ascending scan
// order. ReadRun calls yield once per scan; returning a non-nil error from
// yield aborts the stream and that error is returned from ReadRun.
type MS1Reader interface {
	ReadRun(filePath string, yield func(models.Ms1ScanInfo, []CentroidPeak) error) error
}

// IdentificationLoader supplies the identifications belonging to one run.
type IdentificationLoader interface {
	Load(run models.RunDescriptor) ([]models.Identification, error)
}
