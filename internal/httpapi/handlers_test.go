package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline/jobqueue/internal/queue"
)

type mockEngine struct {
	enqueueFunc  func(ctx context.Context, params queue.EnqueueParams) (*queue.Job, error)
	getJobFunc   func(ctx context.Context, id int64) (*queue.Job, error)
	listJobsFunc func(ctx context.Context, params queue.ListJobsParams) ([]*queue.Job, error)
	listRunsFunc func(ctx context.Context, jobID int64, limit int) ([]*queue.JobRun, error)
}

func (m *mockEngine) Enqueue(ctx context.Context, params queue.EnqueueParams) (*queue.Job, error) {
	return m.enqueueFunc(ctx, params)
}
func (m *mockEngine) Claim(ctx context.Context, workerID string) (*queue.Job, error) { return nil, nil }
func (m *mockEngine) Success(ctx context.Context, job *queue.Job, startedAt time.Time, resultSummary string) error {
	return nil
}
func (m *mockEngine) Failure(ctx context.Context, job *queue.Job, startedAt time.Time, handlerErr error) error {
	return nil
}
func (m *mockEngine) ReclaimStale(ctx context.Context, leaseSeconds int) (int64, error) {
	return 0, nil
}
func (m *mockEngine) ListJobs(ctx context.Context, params queue.ListJobsParams) ([]*queue.Job, error) {
	return m.listJobsFunc(ctx, params)
}
func (m *mockEngine) GetJob(ctx context.Context, id int64) (*queue.Job, error) {
	return m.getJobFunc(ctx, id)
}
func (m *mockEngine) ListRuns(ctx context.Context, jobID int64, limit int) ([]*queue.JobRun, error) {
	return m.listRunsFunc(ctx, jobID, limit)
}

func TestPostJobs_ValidatesRequiredFields(t *testing.T) {
	s := NewServer(&mockEngine{}, nil, "test")

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"key":"k"}`))
	w := httptest.NewRecorder()
	s.postJobs(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "type_required", body["error"])
}

func TestPostJobs_RejectsOutOfRangeMaxAttempts(t *testing.T) {
	s := NewServer(&mockEngine{}, nil, "test")

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"type":"ping","key":"k","max_attempts":0}`))
	w := httptest.NewRecorder()
	s.postJobs(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostJobs_Success(t *testing.T) {
	now := time.Now().UTC()
	engine := &mockEngine{
		enqueueFunc: func(ctx context.Context, params queue.EnqueueParams) (*queue.Job, error) {
			return &queue.Job{ID: 1, Type: params.Type, Key: params.Key, Status: queue.StatusQueued, CreatedAt: now, UpdatedAt: now, RunAfter: now, MaxAttempts: 5}, nil
		},
	}
	s := NewServer(engine, nil, "test")

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"type":"ping","key":"k1","payload":{"msg":"hi"}}`))
	w := httptest.NewRecorder()
	s.postJobs(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	job := body["job"].(map[string]any)
	assert.Equal(t, "ping", job["type"])
	assert.Equal(t, "k1", job["key"])
}

func TestGetJob_NotFound(t *testing.T) {
	engine := &mockEngine{
		getJobFunc: func(ctx context.Context, id int64) (*queue.Job, error) {
			return nil, queue.ErrNotFound
		},
	}
	s := NewServer(engine, nil, "test")

	req := httptest.NewRequest(http.MethodGet, "/jobs/42", nil)
	w := httptest.NewRecorder()

	rctx := newChiContextWithID("42")
	req = req.WithContext(rctx)
	s.getJob(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetJob_InvalidID(t *testing.T) {
	s := NewServer(&mockEngine{}, nil, "test")

	req := httptest.NewRequest(http.MethodGet, "/jobs/abc", nil)
	w := httptest.NewRecorder()
	req = req.WithContext(newChiContextWithID("abc"))
	s.getJob(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
