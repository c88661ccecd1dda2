// Package store implements optional Postgres persistence of RunDiagnostics
// (spec §7, "optional serialized... diagnostics"). Never consulted for
// correctness: the engine runs identically with or without a store.
package store

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantcore/lfq-engine/pkg/models"
)

// schema creates the diagnostics table if it does not already exist. Kept
// inline (rather than a separate .sql file) since this is the store's only
// table.
const schema = `
CREATE TABLE IF NOT EXISTS run_diagnostics (
	run_id               TEXT PRIMARY KEY,
	acceptor_run_id      TEXT,
	donor_run_id         TEXT,
	peaks_built          INTEGER,
	envelopes_accepted   INTEGER,
	envelopes_rejected   INTEGER,
	scorer_valid         BOOLEAN,
	anchor_count         INTEGER,
	widen_window_retries INTEGER,
	target_candidates    INTEGER,
	decoy_peptide_count  INTEGER,
	random_rt_count      INTEGER,
	pep_trained          BOOLEAN,
	updated_at           TIMESTAMPTZ
);`

// PostgresStore persists RunDiagnostics snapshots via a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect opens and pings a connection pool against connStr.
func Connect(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	log.Println("store: connected to PostgreSQL diagnostics database")
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates the run_diagnostics table if it doesn't exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to init diagnostics schema: %w", err)
	}
	return nil
}

// SaveRunDiagnostics upserts one run's latest diagnostics snapshot.
func (s *PostgresStore) SaveRunDiagnostics(ctx context.Context, d models.RunDiagnostics) error {
	const upsert = `
		INSERT INTO run_diagnostics
			(run_id, acceptor_run_id, donor_run_id, peaks_built, envelopes_accepted,
			 envelopes_rejected, scorer_valid, anchor_count, widen_window_retries,
			 target_candidates, decoy_peptide_count, random_rt_count, pep_trained, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (run_id) DO UPDATE SET
			acceptor_run_id      = EXCLUDED.acceptor_run_id,
			donor_run_id         = EXCLUDED.donor_run_id,
			peaks_built          = EXCLUDED.peaks_built,
			envelopes_accepted   = EXCLUDED.envelopes_accepted,
			envelopes_rejected   = EXCLUDED.envelopes_rejected,
			scorer_valid         = EXCLUDED.scorer_valid,
			anchor_count         = EXCLUDED.anchor_count,
			widen_window_retries = EXCLUDED.widen_window_retries,
			target_candidates    = EXCLUDED.target_candidates,
			decoy_peptide_count  = EXCLUDED.decoy_peptide_count,
			random_rt_count      = EXCLUDED.random_rt_count,
			pep_trained          = EXCLUDED.pep_trained,
			updated_at           = EXCLUDED.updated_at;
	`
	_, err := s.pool.Exec(ctx, upsert,
		d.RunID, d.AcceptorRunID, d.DonorRunID, d.PeaksBuilt, d.EnvelopesAccepted,
		d.EnvelopesRejected, d.ScorerValid, d.AnchorCount, d.WidenWindowRetries,
		d.TargetCandidates, d.DecoyPeptideCount, d.RandomRTCount, d.PepTrained, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert run_diagnostics for %s: %w", d.RunID, err)
	}
	return nil
}

// ReportFunc adapts SaveRunDiagnostics to engine.ProgressFunc's shape for
// callers that want best-effort async persistence without blocking the
// engine on database latency.
func (s *PostgresStore) ReportFunc(ctx context.Context) func(models.RunDiagnostics) {
	return func(d models.RunDiagnostics) {
		go func() {
			if err := s.SaveRunDiagnostics(ctx, d); err != nil {
				log.Printf("store: %v", err)
			}
		}()
	}
}
