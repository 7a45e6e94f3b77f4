package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/solvebridge/internal/job"
)

// Entry is one ledger row.
type Entry struct {
	Seq          int64
	ID           string
	Name         string
	DeploymentID string
	State        job.State
	SubmittedAt  time.Time
	UpdatedAt    time.Time
	LastStatus   json.RawMessage
}

// Transition is one step of a job's history.
type Transition struct {
	State job.State
	At    time.Time
}

// StoredSolution is a solution snapshot as written by WriteSolution.
type StoredSolution struct {
	JobID    string
	Status   string
	Snapshot []byte
}

const entryColumns = `seq, id, name, deployment_id, state, submitted_at, updated_at, last_status`

// ReadJob returns the ledger entry for id, or ErrNotFound.
func (s *Store) ReadJob(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM jobs WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// ListJobs returns every job in submission order.
//
// Returns an empty slice (not nil) if the ledger is empty.
func (s *Store) ListJobs(ctx context.Context) ([]Entry, error) {
	return s.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM jobs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// Pending returns jobs that have not been deleted from the service.
func (s *Store) Pending(ctx context.Context) ([]Entry, error) {
	return s.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM jobs
		WHERE state != ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, string(job.StateDeleted))
}

// Transitions returns the state history of a job, oldest first.
func (s *Store) Transitions(ctx context.Context, id string) ([]Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT state, at FROM transitions
		WHERE job_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	out := []Transition{}
	for rows.Next() {
		var state, at string
		if err := rows.Scan(&state, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t, err := time.Parse(timeLayout, at)
		if err != nil {
			return nil, fmt.Errorf("parse transition time: %w", err)
		}
		out = append(out, Transition{State: job.State(state), At: t})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return out, nil
}

// ReadSolution returns the stored snapshot for a job, or ErrNotFound.
func (s *Store) ReadSolution(ctx context.Context, jobID string) (StoredSolution, error) {
	var (
		out  = StoredSolution{JobID: jobID}
		snap string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT status, snapshot FROM solutions WHERE job_id = ?`, jobID).Scan(&out.Status, &snap)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredSolution{}, ErrNotFound
	}
	if err != nil {
		return StoredSolution{}, fmt.Errorf("read solution %s: %w", jobID, err)
	}
	out.Snapshot = []byte(snap)
	return out, nil
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e                  Entry
		state              string
		submitted, updated string
		last               sql.NullString
	)
	if err := row.Scan(&e.Seq, &e.ID, &e.Name, &e.DeploymentID, &state, &submitted, &updated, &last); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan job: %w", err)
	}
	e.State = job.State(state)

	var err error
	if e.SubmittedAt, err = time.Parse(timeLayout, submitted); err != nil {
		return Entry{}, fmt.Errorf("parse submitted_at of %s: %w", e.ID, err)
	}
	if e.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return Entry{}, fmt.Errorf("parse updated_at of %s: %w", e.ID, err)
	}
	if last.Valid {
		e.LastStatus = json.RawMessage(last.String)
	}
	return e, nil
}
