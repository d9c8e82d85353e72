package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// State is the run state of one resource's ingestion.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateFailed  State = "failed"
)

// ResourceStatus is the persisted run status of a resource. LastError is
// only meaningful while State is StateFailed.
type ResourceStatus struct {
	Resource      Resource   `json:"resource"`
	State         State      `json:"state"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// MarkRunning records that ingestion of res has started.
func (db *DB) MarkRunning(ctx context.Context, res Resource) error {
	now := db.now().UnixMilli()
	_, err := db.ExecContext(ctx,
		`INSERT INTO ingestion_status (resource, state, updated_at) VALUES (?, 'running', ?)
		 ON CONFLICT(resource) DO UPDATE SET state = 'running', updated_at = excluded.updated_at`,
		res, now)
	if err != nil {
		return fmt.Errorf("mark %s running: %w", res, err)
	}
	return nil
}

// MarkSucceeded records a successful run: state idle, success time set,
// last error cleared.
func (db *DB) MarkSucceeded(ctx context.Context, res Resource) error {
	now := db.now().UnixMilli()
	_, err := db.ExecContext(ctx,
		`INSERT INTO ingestion_status (resource, state, last_success_at, last_error, updated_at)
		 VALUES (?, 'idle', ?, NULL, ?)
		 ON CONFLICT(resource) DO UPDATE SET
		   state = 'idle',
		   last_success_at = excluded.last_success_at,
		   last_error = NULL,
		   updated_at = excluded.updated_at`,
		res, now, now)
	if err != nil {
		return fmt.Errorf("mark %s succeeded: %w", res, err)
	}
	return nil
}

// MarkFailed records a failed run with its error message.
func (db *DB) MarkFailed(ctx context.Context, res Resource, message string) error {
	now := db.now().UnixMilli()
	_, err := db.ExecContext(ctx,
		`INSERT INTO ingestion_status (resource, state, last_failure_at, last_error, updated_at)
		 VALUES (?, 'failed', ?, ?, ?)
		 ON CONFLICT(resource) DO UPDATE SET
		   state = 'failed',
		   last_failure_at = excluded.last_failure_at,
		   last_error = excluded.last_error,
		   updated_at = excluded.updated_at`,
		res, now, message, now)
	if err != nil {
		return fmt.Errorf("mark %s failed: %w", res, err)
	}
	return nil
}

// Status returns the run status of res. A resource that never ran is idle.
func (db *DB) Status(ctx context.Context, res Resource) (ResourceStatus, error) {
	var (
		st        = ResourceStatus{Resource: res}
		state     string
		success   sql.NullInt64
		failure   sql.NullInt64
		lastError sql.NullString
		updated   int64
	)
	err := db.QueryRowContext(ctx,
		`SELECT state, last_success_at, last_failure_at, last_error, updated_at
		 FROM ingestion_status WHERE resource = ?`, res).
		Scan(&state, &success, &failure, &lastError, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		st.State = StateIdle
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("status %s: %w", res, err)
	}

	st.State = State(state)
	st.LastSuccessAt = millisPtr(success)
	st.LastFailureAt = millisPtr(failure)
	st.LastError = lastError.String
	st.UpdatedAt = time.UnixMilli(updated)
	return st, nil
}

func millisPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}
