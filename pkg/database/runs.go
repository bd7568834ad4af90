package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pdmcolombia/pdmaudit/pkg/manifest"
)

// ErrRunNotFound indicates no run row exists for the given run ID.
var ErrRunNotFound = errors.New("database: run not found")

// RunRow is the run ledger's persisted record.
type RunRow struct {
	RunID        string
	Seed         uint64
	Status       string
	CurrentPhase int
	StartedAt    time.Time
	CompletedAt  sql.NullTime
	ManifestJSON []byte
	ProofHash    string
}

// RunRepository persists run ledger rows against the runs table.
type RunRepository struct {
	client *Client
}

// NewRunRepository constructs a RunRepository over client.
func NewRunRepository(client *Client) *RunRepository {
	return &RunRepository{client: client}
}

// CreateRun inserts a new pending run row.
func (r *RunRepository) CreateRun(ctx context.Context, runID string, seed uint64, startedAt time.Time) error {
	_, err := r.client.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, seed, status, current_phase, started_at)
		VALUES ($1, $2, 'pending', 0, $3)
	`, runID, seed, startedAt)
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", runID, err)
	}
	return nil
}

// UpdatePhase advances a run's status and current phase.
func (r *RunRepository) UpdatePhase(ctx context.Context, runID, status string, phase int) error {
	res, err := r.client.db.ExecContext(ctx, `
		UPDATE runs SET status = $2, current_phase = $3 WHERE run_id = $1
	`, runID, status, phase)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", runID, err)
	}
	return checkRowsAffected(res, runID)
}

// SealRun records the sealed manifest and proof hash for a completed run.
func (r *RunRepository) SealRun(ctx context.Context, runID string, m manifest.Manifest, proofHash string, completedAt time.Time) error {
	payload, err := manifest.CanonicalJSON(m)
	if err != nil {
		return err
	}

	status := "succeeded"
	if !m.Success {
		status = "failed"
	}

	res, err := r.client.db.ExecContext(ctx, `
		UPDATE runs
		SET status = $2, completed_at = $3, manifest_json = $4, proof_hash = $5
		WHERE run_id = $1
	`, runID, status, completedAt, payload, proofHash)
	if err != nil {
		return fmt.Errorf("failed to seal run %s: %w", runID, err)
	}
	return checkRowsAffected(res, runID)
}

// GetRun fetches a run row by ID.
func (r *RunRepository) GetRun(ctx context.Context, runID string) (RunRow, error) {
	var row RunRow
	var seed int64
	err := r.client.db.QueryRowContext(ctx, `
		SELECT run_id, seed, status, current_phase, started_at, completed_at, manifest_json, proof_hash
		FROM runs WHERE run_id = $1
	`, runID).Scan(&row.RunID, &seed, &row.Status, &row.CurrentPhase, &row.StartedAt, &row.CompletedAt, &row.ManifestJSON, &row.ProofHash)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRow{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return RunRow{}, fmt.Errorf("failed to fetch run %s: %w", runID, err)
	}
	row.Seed = uint64(seed)
	return row, nil
}

// ListRunsByStatus returns every run with the given status, ordered by
// start time.
func (r *RunRepository) ListRunsByStatus(ctx context.Context, status string) ([]RunRow, error) {
	rows, err := r.client.db.QueryContext(ctx, `
		SELECT run_id, seed, status, current_phase, started_at, completed_at, manifest_json, proof_hash
		FROM runs WHERE status = $1 ORDER BY started_at
	`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs with status %s: %w", status, err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var row RunRow
		var seed int64
		if err := rows.Scan(&row.RunID, &seed, &row.Status, &row.CurrentPhase, &row.StartedAt, &row.CompletedAt, &row.ManifestJSON, &row.ProofHash); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		row.Seed = uint64(seed)
		out = append(out, row)
	}
	return out, rows.Err()
}

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
