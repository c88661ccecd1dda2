// Package engine implements the Run Scheduler / Engine (spec §5): a
// deterministic run ordering, a bounded worker pool over MS2 quantification
// and MBR search passes, and final Results assembly.
package engine

import (
	"context"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/quantcore/lfq-engine/internal/fdr"
	"github.com/quantcore/lfq-engine/internal/mbr"
	"github.com/quantcore/lfq-engine/internal/ms2quant"
	"github.com/quantcore/lfq-engine/internal/peakindex"
	"github.com/quantcore/lfq-engine/internal/reader"
	"github.com/quantcore/lfq-engine/pkg/models"
)

// ProgressFunc receives ambient per-run/per-pair diagnostics as the engine
// works through runs; never consulted for correctness (spec §7).
type ProgressFunc func(models.RunDiagnostics)

// Engine wires the per-run MS2 quantification pass, the cross-run MBR pass,
// and the FDR/PEP pass into one deterministic, bounded-parallel run over an
// experimental design (spec §5).
type Engine struct {
	Reader     reader.MS1Reader
	IDs        reader.IdentificationLoader
	Config     models.EngineConfig
	CacheDir   string
	CacheSize  int
	OnProgress ProgressFunc
}

// New returns an Engine with the given collaborators and config, with
// CacheDir set to "." and CacheSize set to 8 resident indices. Run does not
// re-default these fields if a caller later sets them to zero values.
func New(r reader.MS1Reader, ids reader.IdentificationLoader, cfg models.EngineConfig) *Engine {
	return &Engine{Reader: r, IDs: ids, Config: cfg, CacheDir: ".", CacheSize: 8}
}

// Run processes every run in runs, in the deterministic order spec §5
// requires (condition, bio-replicate, fraction, tech-replicate), and returns
// the finished per-run peak lists keyed by RunID.
func (e *Engine) Run(ctx context.Context, runs []models.RunDescriptor) (map[string][]*models.ChromatographicPeak, error) {
	ordered := append([]models.RunDescriptor{}, runs...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Less(ordered[j]) })

	cache, err := peakindex.NewCache(e.CacheSize, e.CacheDir)
	if err != nil {
		return nil, err
	}

	results := make(map[string][]*models.ChromatographicPeak, len(ordered))
	var mu sync.Mutex

	if err := e.parallelOver(ctx, ordered, func(run models.RunDescriptor) error {
		peaks, err := e.quantifyOne(run, cache)
		if err != nil {
			log.Printf("engine: skipping run %s: %v", run.RunID(), err)
			return nil
		}
		mu.Lock()
		results[run.RunID()] = peaks
		mu.Unlock()
		return nil
	}); err != nil {
		return nil, err
	}

	if e.Config.MatchBetweenRuns {
		var mbrMu sync.Mutex
		mbrResults := make(map[string][]*models.ChromatographicPeak, len(ordered))

		if err := e.parallelOver(ctx, ordered, func(acceptor models.RunDescriptor) error {
			acceptorID := acceptor.RunID()
			acceptorIdx, err := cache.Get(acceptorID)
			if err != nil {
				log.Printf("engine: skipping MBR for run %s: %v", acceptorID, err)
				mu.Lock()
				acceptorPeaks := results[acceptorID]
				mu.Unlock()
				mbrMu.Lock()
				mbrResults[acceptorID] = acceptorPeaks
				mbrMu.Unlock()
				return nil
			}

			mu.Lock()
			donorRuns := make(map[string][]*models.ChromatographicPeak, len(results)-1)
			for runID, peaks := range results {
				if runID != acceptorID {
					donorRuns[runID] = peaks
				}
			}
			acceptorPeaks := results[acceptorID]
			mu.Unlock()

			merged := mbr.AcceptorRun(acceptorID, acceptorIdx, acceptorPeaks, donorRuns, e.Config)

			mbrMu.Lock()
			mbrResults[acceptorID] = merged
			mbrMu.Unlock()
			e.reportProgress(models.RunDiagnostics{RunID: acceptorID, AcceptorRunID: acceptorID})
			return nil
		}); err != nil {
			return nil, err
		}
		results = mbrResults
	}

	for runID, peaks := range results {
		pepTrained := false
		filtered := fdr.Estimate(peaks, e.Config, nil, nil)
		for _, p := range filtered {
			if p.MBRPEP != nil {
				pepTrained = true
				break
			}
		}
		results[runID] = finalize(filtered, e.Config, pepTrained)
	}

	return results, nil
}

func (e *Engine) quantifyOne(run models.RunDescriptor, cache *peakindex.Cache) ([]*models.ChromatographicPeak, error) {
	runID := run.RunID()

	idx, err := peakindex.Build(runID, run.FilePath, e.Reader)
	if err != nil {
		return nil, err
	}
	if err := cache.Put(idx); err != nil {
		log.Printf("engine: failed to cache peak index for run %s: %v", runID, err)
	}

	ids, err := e.IDs.Load(run)
	if err != nil {
		return nil, err
	}

	peaks := ms2quant.QuantifyRun(idx, ids, e.Config)
	e.reportProgress(models.RunDiagnostics{RunID: runID, PeaksBuilt: len(peaks)})
	return peaks, nil
}

// parallelOver runs fn across items with a worker pool bounded at
// Config.MaxThreads (spec §5, "work-partitioned loop at degree max_threads").
// Per-run failures are the caller's responsibility to catch and log inside
// fn (spec §5/§7: a single run's failure is isolated, not fatal to the
// engine); an error returned here only comes from context cancellation.
func (e *Engine) parallelOver(ctx context.Context, runs []models.RunDescriptor, fn func(models.RunDescriptor) error) error {
	g, gctx := errgroup.WithContext(ctx)
	limit := e.Config.MaxThreads
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for _, run := range runs {
		run := run
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return fn(run)
		})
	}
	return g.Wait()
}

func (e *Engine) reportProgress(d models.RunDiagnostics) {
	if e.OnProgress != nil {
		e.OnProgress(d)
	}
}

// finalize applies mbr_detection_q_value_threshold (spec §4.10): decoy
// peptides are always stripped since they're synthetic negative controls;
// random-RT decoys are stripped once a PEP classifier ran (their role was
// only to estimate the error rate), but retained when PEP training was
// infeasible, per the degraded-path note in spec §4.10.
func finalize(peaks []*models.ChromatographicPeak, cfg models.EngineConfig, pepTrained bool) []*models.ChromatographicPeak {
	var out []*models.ChromatographicPeak
	for _, p := range peaks {
		if !p.IsMBR {
			out = append(out, p)
			continue
		}
		if p.DecoyPeptide {
			continue
		}
		if p.RandomRT && pepTrained {
			continue
		}
		if p.MBRQValue != nil && *p.MBRQValue > cfg.MBRDetectionQValueThreshold {
			continue
		}
		out = append(out, p)
	}
	return out
}
