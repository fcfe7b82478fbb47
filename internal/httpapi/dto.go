package httpapi

import (
	"encoding/json"

	"github.com/ridgeline/jobqueue/internal/queue"
)

// jobDTO is the wire representation of a Job: timestamps are epoch
// milliseconds UTC integers.
type jobDTO struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Key         string          `json:"key"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	RunAfterMS  int64           `json:"runAfterMs"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	LockedBy    *string         `json:"lockedBy,omitempty"`
	LockedAtMS  *int64          `json:"lockedAtMs,omitempty"`
	LastError   *string         `json:"lastError,omitempty"`
	LastErrorMS *int64          `json:"lastErrorMs,omitempty"`
	CreatedAtMS int64           `json:"createdAtMs"`
	UpdatedAtMS int64           `json:"updatedAtMs"`
}

func toJobDTO(j *queue.Job) jobDTO {
	payload := j.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	dto := jobDTO{
		ID:          j.ID,
		Type:        j.Type,
		Key:         j.Key,
		Payload:     json.RawMessage(payload),
		Status:      string(j.Status),
		RunAfterMS:  queue.EpochMillis(j.RunAfter),
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		LockedBy:    j.LockedBy,
		LastError:   j.LastError,
		CreatedAtMS: queue.EpochMillis(j.CreatedAt),
		UpdatedAtMS: queue.EpochMillis(j.UpdatedAt),
	}
	if j.LockedAt != nil {
		ms := queue.EpochMillis(*j.LockedAt)
		dto.LockedAtMS = &ms
	}
	if j.LastErrorAt != nil {
		ms := queue.EpochMillis(*j.LastErrorAt)
		dto.LastErrorMS = &ms
	}
	return dto
}

type jobRunDTO struct {
	ID            int64   `json:"id"`
	JobID         int64   `json:"jobId"`
	Type          string  `json:"type"`
	Key           string  `json:"key"`
	Attempt       int     `json:"attempt"`
	Status        string  `json:"status"`
	StartedAtMS   int64   `json:"startedAtMs"`
	FinishedAtMS  int64   `json:"finishedAtMs"`
	DurationMS    int64   `json:"durationMs"`
	ErrorMessage  *string `json:"errorMessage,omitempty"`
	ErrorStack    *string `json:"errorStack,omitempty"`
	ResultSummary *string `json:"resultSummary,omitempty"`
}

func toJobRunDTO(r *queue.JobRun) jobRunDTO {
	return jobRunDTO{
		ID:            r.ID,
		JobID:         r.JobID,
		Type:          r.Type,
		Key:           r.Key,
		Attempt:       r.Attempt,
		Status:        string(r.Status),
		StartedAtMS:   queue.EpochMillis(r.StartedAt),
		FinishedAtMS:  queue.EpochMillis(r.FinishedAt),
		DurationMS:    r.DurationMS,
		ErrorMessage:  r.ErrorMessage,
		ErrorStack:    r.ErrorStack,
		ResultSummary: r.ResultSummary,
	}
}
