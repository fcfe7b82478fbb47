package queue

import "time"

// Status is the lifecycle state of a Job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusRetrying  Status = "retrying"
	StatusSucceeded Status = "succeeded"
	StatusDead      Status = "dead"
)

// Job is the current state of one logical unit of work. (type, key) is
// globally unique; the engine never inspects Payload.
type Job struct {
	ID          int64
	Type        string
	Key         string
	Payload     []byte
	Status      Status
	RunAfter    time.Time
	Attempts    int
	MaxAttempts int
	LockedBy    *string
	LockedAt    *time.Time
	LastError   *string
	LastErrorAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RunStatus is the outcome recorded on a JobRun.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFail    RunStatus = "fail"
)

// JobRun is an append-only record of one completed attempt. Runs are
// written only on success/failure, never on claim or stale-reclaim.
type JobRun struct {
	ID            int64
	JobID         int64
	Type          string
	Key           string
	Attempt       int
	Status        RunStatus
	StartedAt     time.Time
	FinishedAt    time.Time
	DurationMS    int64
	ErrorMessage  *string
	ErrorStack    *string
	ResultSummary *string
}

// Bound lengths for trimmed JobRun text fields.
const (
	maxErrorMessageLen  = 2000
	maxResultSummaryLen = 2000
	maxErrorStackLen    = 8000
)

// EnqueueParams are the arguments to Enqueue. Key and Type are required;
// the rest have spec-mandated defaults applied by the engine.
type EnqueueParams struct {
	Type        string
	Key         string
	Payload     []byte // nil means "{}"
	RunAfter    *time.Time
	MaxAttempts *int
}

// ListJobsParams filters the read-side list_jobs operation.
type ListJobsParams struct {
	Status *Status
	Limit  int
}

// EpochMillis converts a wall-clock instant to the epoch-millisecond
// integer representation used on the wire.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}
