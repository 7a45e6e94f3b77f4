package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/solvebridge/internal/job"
	"github.com/roach88/solvebridge/internal/solution"
)

const timeLayout = time.RFC3339Nano

var _ job.Recorder = (*Store)(nil)

// Record upserts j and appends its state to the transition history.
// Recording the same state twice is a no-op for the history, which makes
// Record safe to call on every poll. It satisfies job.Recorder.
func (s *Store) Record(ctx context.Context, j *job.Job) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record job %s: %w", j.ID, err)
	}
	defer tx.Rollback()

	var last any
	if len(j.Raw) > 0 {
		last = string(j.Raw)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobs (id, name, deployment_id, state, submitted_at, updated_at, last_status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at,
			last_status = COALESCE(excluded.last_status, jobs.last_status)
	`,
		j.ID,
		j.Name,
		j.DeploymentID,
		string(j.State),
		formatTime(j.SubmittedAt),
		formatTime(j.UpdatedAt),
		last,
	)
	if err != nil {
		return fmt.Errorf("record job %s: %w", j.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transitions (job_id, state, at) VALUES (?, ?, ?)
		ON CONFLICT(job_id, state) DO NOTHING
	`, j.ID, string(j.State), formatTime(j.UpdatedAt))
	if err != nil {
		return fmt.Errorf("record transition %s/%s: %w", j.ID, j.State, err)
	}

	return tx.Commit()
}

// WriteSolution stores the canonical snapshot of a job's decoded solution,
// replacing any earlier one.
func (s *Store) WriteSolution(ctx context.Context, jobID string, sol *solution.Solution) error {
	snap, err := solution.Snapshot(sol)
	if err != nil {
		return fmt.Errorf("write solution %s: %w", jobID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO solutions (job_id, status, snapshot) VALUES (?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET status = excluded.status, snapshot = excluded.snapshot
	`, jobID, sol.Status.String(), string(snap))
	if err != nil {
		return fmt.Errorf("write solution %s: %w", jobID, err)
	}
	return nil
}

// Forget removes a job and everything recorded for it.
func (s *Store) Forget(ctx context.Context, jobID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("forget job %s: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
