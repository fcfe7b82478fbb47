package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresEngine implements Engine against a database/sql handle using the
// pgx stdlib driver. All six operations are statement- or
// transaction-scoped.
type PostgresEngine struct {
	db *sql.DB
}

// NewPostgresEngine wraps an already-migrated *sql.DB.
func NewPostgresEngine(db *sql.DB) *PostgresEngine {
	return &PostgresEngine{db: db}
}

// isTransient reports whether err is a Postgres serialization conflict or
// deadlock, both of which the worker should retry at the next poll tick.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
			return true
		}
	}
	return false
}

func wrapStorageErr(err error) error {
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}

const jobColumns = `id, type, key, payload, status, run_after, attempts, max_attempts,
	locked_by, locked_at, last_error, last_error_at, created_at, updated_at`

type jobScanner interface {
	Scan(dest ...any) error
}

func scanJob(row jobScanner) (*Job, error) {
	var j Job
	var status string
	var lockedBy sql.NullString
	var lockedAt sql.NullTime
	var lastError sql.NullString
	var lastErrorAt sql.NullTime

	err := row.Scan(
		&j.ID, &j.Type, &j.Key, &j.Payload, &status, &j.RunAfter, &j.Attempts, &j.MaxAttempts,
		&lockedBy, &lockedAt, &lastError, &lastErrorAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Status = Status(status)
	if lockedBy.Valid {
		v := lockedBy.String
		j.LockedBy = &v
	}
	if lockedAt.Valid {
		v := lockedAt.Time
		j.LockedAt = &v
	}
	if lastError.Valid {
		v := lastError.String
		j.LastError = &v
	}
	if lastErrorAt.Valid {
		v := lastErrorAt.Time
		j.LastErrorAt = &v
	}
	return &j, nil
}

// Enqueue implements Engine.Enqueue with reset-unless-running upsert
// semantics in a single statement.
func (e *PostgresEngine) Enqueue(ctx context.Context, params EnqueueParams) (*Job, error) {
	if params.Type == "" || params.Key == "" {
		return nil, fmt.Errorf("%w: type and key are required", ErrInvalidInput)
	}

	maxAttempts := 5
	if params.MaxAttempts != nil {
		maxAttempts = *params.MaxAttempts
	}
	if maxAttempts <= 0 || maxAttempts > 50 {
		return nil, fmt.Errorf("%w: max_attempts must be between 1 and 50, got %d", ErrInvalidInput, maxAttempts)
	}

	runAfter := time.Now().UTC()
	if params.RunAfter != nil {
		runAfter = *params.RunAfter
	}

	payload := params.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	row := e.db.QueryRowContext(ctx, `
		INSERT INTO job_queue (type, key, payload, status, run_after, attempts, max_attempts, last_error, last_error_at, created_at, updated_at)
		VALUES ($1, $2, $3, 'queued', $4, 0, $5, NULL, NULL, now(), now())
		ON CONFLICT (type, key) DO UPDATE SET
			payload      = CASE WHEN job_queue.status = 'running' THEN job_queue.payload   ELSE EXCLUDED.payload   END,
			status       = CASE WHEN job_queue.status = 'running' THEN job_queue.status    ELSE 'queued'          END,
			run_after    = CASE WHEN job_queue.status = 'running' THEN job_queue.run_after  ELSE EXCLUDED.run_after END,
			attempts     = CASE WHEN job_queue.status = 'running' THEN job_queue.attempts   ELSE 0                 END,
			max_attempts = EXCLUDED.max_attempts,
			last_error   = NULL,
			last_error_at = NULL,
			updated_at   = now()
		RETURNING `+jobColumns,
		params.Type, params.Key, payload, runAfter, maxAttempts,
	)

	job, err := scanJob(row)
	if err != nil {
		return nil, wrapStorageErr(fmt.Errorf("failed to enqueue job: %w", err))
	}
	return job, nil
}

// Claim implements Engine.Claim: a single statement that selects the
// earliest-due eligible row under FOR UPDATE SKIP LOCKED and updates it in
// place.
func (e *PostgresEngine) Claim(ctx context.Context, workerID string) (*Job, error) {
	row := e.db.QueryRowContext(ctx, `
		UPDATE job_queue SET
			status = 'running',
			locked_by = $1,
			locked_at = now(),
			attempts = attempts + 1,
			updated_at = now()
		WHERE id = (
			SELECT id FROM job_queue
			WHERE status IN ('queued', 'retrying') AND run_after <= now()
			ORDER BY run_after ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns,
		workerID,
	)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStorageErr(fmt.Errorf("failed to claim job: %w", err))
	}
	return job, nil
}

// Success implements Engine.Success.
func (e *PostgresEngine) Success(ctx context.Context, job *Job, startedAt time.Time, resultSummary string) error {
	finishedAt := time.Now().UTC()
	durationMS := finishedAt.Sub(startedAt).Milliseconds()
	if durationMS < 0 {
		durationMS = 0
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO job_runs (job_id, type, key, attempt, status, started_at, finished_at, duration_ms, result_summary)
		VALUES ($1, $2, $3, $4, 'success', $5, $6, $7, $8)`,
		job.ID, job.Type, job.Key, job.Attempts, startedAt, finishedAt, durationMS, trim(resultSummary, maxResultSummaryLen),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job run: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE job_queue SET
			status = 'succeeded',
			locked_by = NULL,
			locked_at = NULL,
			last_error = NULL,
			last_error_at = NULL,
			updated_at = now()
		WHERE id = $1 AND status = 'running' AND locked_by = $2`,
		job.ID, ownerOf(job),
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// The job was already reclaimed out from under this worker; the
		// run record above still stands as an observed completion.
		return tx.Commit()
	}

	return tx.Commit()
}

// Failure implements Engine.Failure, including the exact backoff formula
// applied when the job has attempts remaining.
func (e *PostgresEngine) Failure(ctx context.Context, job *Job, startedAt time.Time, handlerErr error) error {
	attempt := job.Attempts
	willRetry := attempt < job.MaxAttempts

	message := "Unknown error"
	var stack *string
	if handlerErr != nil {
		message = handlerErr.Error()
		var he HandlerError
		if errors.As(handlerErr, &he) && he.Stack != "" {
			s := trim(he.Stack, maxErrorStackLen)
			stack = &s
		}
	}
	trimmedMessage := trim(message, maxErrorMessageLen)

	finishedAt := time.Now().UTC()
	durationMS := finishedAt.Sub(startedAt).Milliseconds()
	if durationMS < 0 {
		durationMS = 0
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO job_runs (job_id, type, key, attempt, status, started_at, finished_at, duration_ms, error_message, error_stack)
		VALUES ($1, $2, $3, $4, 'fail', $5, $6, $7, $8, $9)`,
		job.ID, job.Type, job.Key, attempt, startedAt, finishedAt, durationMS, trimmedMessage, stack,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job run: %w", err)
	}

	newStatus := string(StatusDead)
	if willRetry {
		newStatus = string(StatusRetrying)
		runAfter := time.Now().UTC().Add(Backoff(attempt))
		_, err = tx.ExecContext(ctx, `
			UPDATE job_queue SET
				status = $1,
				locked_by = NULL,
				locked_at = NULL,
				last_error = $2,
				last_error_at = now(),
				run_after = $3,
				updated_at = now()
			WHERE id = $4 AND status = 'running' AND locked_by = $5`,
			newStatus, trimmedMessage, runAfter, job.ID, ownerOf(job),
		)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE job_queue SET
				status = $1,
				locked_by = NULL,
				locked_at = NULL,
				last_error = $2,
				last_error_at = now(),
				updated_at = now()
			WHERE id = $3 AND status = 'running' AND locked_by = $4`,
			newStatus, trimmedMessage, job.ID, ownerOf(job),
		)
	}
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	return tx.Commit()
}

func ownerOf(job *Job) string {
	if job.LockedBy == nil {
		return ""
	}
	return *job.LockedBy
}

// ReclaimStale implements Engine.ReclaimStale as a single UPDATE. It never writes a JobRun: a reclaim is evidence of absence, not
// an observed completion.
func (e *PostgresEngine) ReclaimStale(ctx context.Context, leaseSeconds int) (int64, error) {
	res, err := e.db.ExecContext(ctx, `
		UPDATE job_queue SET
			status = 'retrying',
			locked_by = NULL,
			locked_at = NULL,
			run_after = now(),
			last_error = COALESCE(last_error, 'stale lease reclaimed'),
			last_error_at = now(),
			updated_at = now()
		WHERE status = 'running' AND locked_at < now() - ($1 || ' seconds')::interval`,
		leaseSeconds,
	)
	if err != nil {
		return 0, wrapStorageErr(fmt.Errorf("failed to reclaim stale jobs: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read reclaim row count: %w", err)
	}
	return n, nil
}

// ListJobs implements Engine.ListJobs.
func (e *PostgresEngine) ListJobs(ctx context.Context, params ListJobsParams) ([]*Job, error) {
	limit := clampLimit(params.Limit)

	var rows *sql.Rows
	var err error
	if params.Status != nil {
		rows, err = e.db.QueryContext(ctx, `
			SELECT `+jobColumns+` FROM job_queue WHERE status = $1 ORDER BY updated_at DESC LIMIT $2`,
			string(*params.Status), limit,
		)
	} else {
		rows, err = e.db.QueryContext(ctx, `
			SELECT `+jobColumns+` FROM job_queue ORDER BY updated_at DESC LIMIT $1`,
			limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// GetJob implements Engine.GetJob.
func (e *PostgresEngine) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := e.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM job_queue WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListRuns implements Engine.ListRuns.
func (e *PostgresEngine) ListRuns(ctx context.Context, jobID int64, limit int) ([]*JobRun, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT id, job_id, type, key, attempt, status, started_at, finished_at, duration_ms, error_message, error_stack, result_summary
		FROM job_runs WHERE job_id = $1 ORDER BY attempt DESC, id DESC LIMIT $2`,
		jobID, clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list job runs: %w", err)
	}
	defer rows.Close()

	var runs []*JobRun
	for rows.Next() {
		var r JobRun
		var status string
		var errMsg, errStack, resultSummary sql.NullString
		if err := rows.Scan(&r.ID, &r.JobID, &r.Type, &r.Key, &r.Attempt, &status, &r.StartedAt, &r.FinishedAt, &r.DurationMS, &errMsg, &errStack, &resultSummary); err != nil {
			return nil, fmt.Errorf("failed to scan job run: %w", err)
		}
		r.Status = RunStatus(status)
		if errMsg.Valid {
			v := errMsg.String
			r.ErrorMessage = &v
		}
		if errStack.Valid {
			v := errStack.String
			r.ErrorStack = &v
		}
		if resultSummary.Valid {
			v := resultSummary.String
			r.ResultSummary = &v
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}
