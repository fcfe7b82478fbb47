package queue

import (
	"context"
	"time"
)

// Engine is the durable job queue's six-operation surface. It is
// implemented by the Postgres-backed engine in this package; callers
// (the worker loop, the admission adapter) depend only on this interface.
type Engine interface {
	// Enqueue inserts a new Job or, on (type, key) conflict, resets it
	// unless it is currently running.
	Enqueue(ctx context.Context, params EnqueueParams) (*Job, error)

	// Claim atomically claims the single earliest-due eligible Job and
	// marks it running, or returns (nil, nil) if none is eligible.
	Claim(ctx context.Context, workerID string) (*Job, error)

	// Success records a successful attempt and marks the Job succeeded.
	Success(ctx context.Context, job *Job, startedAt time.Time, resultSummary string) error

	// Failure records a failed attempt and transitions the Job to
	// retrying (with backoff) or dead, depending on attempts vs
	// max_attempts.
	Failure(ctx context.Context, job *Job, startedAt time.Time, handlerErr error) error

	// ReclaimStale promotes every running Job whose lease has expired
	// back to retrying, without writing a JobRun.
	ReclaimStale(ctx context.Context, leaseSeconds int) (int64, error)

	// ListJobs returns jobs newest-updated-first, optionally filtered by
	// status, with limit clamped to [1, 200] (default 50).
	ListJobs(ctx context.Context, params ListJobsParams) ([]*Job, error)

	// GetJob returns a single Job by id, or ErrNotFound.
	GetJob(ctx context.Context, id int64) (*Job, error)

	// ListRuns returns a job's runs, newest attempt first, with limit
	// clamped to [1, 200] (default 50).
	ListRuns(ctx context.Context, jobID int64, limit int) ([]*JobRun, error)
}
