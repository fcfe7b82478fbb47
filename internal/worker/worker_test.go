package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline/jobqueue/internal/queue"
)

// mockEngine implements queue.Engine for testing.
type mockEngine struct {
	claimFunc        func(ctx context.Context, workerID string) (*queue.Job, error)
	successFunc      func(ctx context.Context, job *queue.Job, startedAt time.Time, resultSummary string) error
	failureFunc      func(ctx context.Context, job *queue.Job, startedAt time.Time, handlerErr error) error
	reclaimStaleFunc func(ctx context.Context, leaseSeconds int) (int64, error)
}

func (m *mockEngine) Enqueue(ctx context.Context, params queue.EnqueueParams) (*queue.Job, error) {
	return nil, errors.New("not implemented")
}

func (m *mockEngine) Claim(ctx context.Context, workerID string) (*queue.Job, error) {
	if m.claimFunc != nil {
		return m.claimFunc(ctx, workerID)
	}
	return nil, nil
}

func (m *mockEngine) Success(ctx context.Context, job *queue.Job, startedAt time.Time, resultSummary string) error {
	if m.successFunc != nil {
		return m.successFunc(ctx, job, startedAt, resultSummary)
	}
	return nil
}

func (m *mockEngine) Failure(ctx context.Context, job *queue.Job, startedAt time.Time, handlerErr error) error {
	if m.failureFunc != nil {
		return m.failureFunc(ctx, job, startedAt, handlerErr)
	}
	return nil
}

func (m *mockEngine) ReclaimStale(ctx context.Context, leaseSeconds int) (int64, error) {
	if m.reclaimStaleFunc != nil {
		return m.reclaimStaleFunc(ctx, leaseSeconds)
	}
	return 0, nil
}

func (m *mockEngine) ListJobs(ctx context.Context, params queue.ListJobsParams) ([]*queue.Job, error) {
	return nil, errors.New("not implemented")
}

func (m *mockEngine) GetJob(ctx context.Context, id int64) (*queue.Job, error) {
	return nil, errors.New("not implemented")
}

func (m *mockEngine) ListRuns(ctx context.Context, jobID int64, limit int) ([]*queue.JobRun, error) {
	return nil, errors.New("not implemented")
}

func TestLoop_DispatchesToRegisteredHandler(t *testing.T) {
	var claimed int32
	job := &queue.Job{ID: 1, Type: "ping", Key: "k1", Payload: []byte(`{"msg":"hi"}`), Attempts: 1, MaxAttempts: 5}

	var successCalled int32
	engine := &mockEngine{
		claimFunc: func(ctx context.Context, workerID string) (*queue.Job, error) {
			if atomic.AddInt32(&claimed, 1) == 1 {
				return job, nil
			}
			return nil, nil
		},
		successFunc: func(ctx context.Context, j *queue.Job, startedAt time.Time, resultSummary string) error {
			atomic.AddInt32(&successCalled, 1)
			assert.Equal(t, job.ID, j.ID)
			assert.Contains(t, resultSummary, "hi")
			return nil
		},
	}

	registry := queue.NewRegistry()
	registry.Register("ping", func(ctx context.Context, payload []byte) (any, error) {
		return map[string]any{"ok": true, "payload": "hi"}, nil
	})

	loop := New(engine, registry, Config{WorkerID: "w1", Concurrency: 1, PollInterval: 10 * time.Millisecond, Lease: time.Minute}, nil, nil)

	claimedAny, err := loop.claimAndProcess(context.Background())
	require.NoError(t, err)
	assert.True(t, claimedAny)
	assert.Equal(t, int32(1), successCalled)
}

func TestLoop_MissingHandlerRoutesToFailure(t *testing.T) {
	job := &queue.Job{ID: 2, Type: "unregistered", Key: "k2", Attempts: 1, MaxAttempts: 5}

	var failureErr error
	engine := &mockEngine{
		claimFunc: func(ctx context.Context, workerID string) (*queue.Job, error) { return job, nil },
		failureFunc: func(ctx context.Context, j *queue.Job, startedAt time.Time, handlerErr error) error {
			failureErr = handlerErr
			return nil
		},
	}

	registry := queue.NewRegistry()
	loop := New(engine, registry, Config{WorkerID: "w1", Concurrency: 1}, nil, nil)

	claimedAny, err := loop.claimAndProcess(context.Background())
	require.NoError(t, err)
	assert.True(t, claimedAny)
	require.Error(t, failureErr)
	assert.Contains(t, failureErr.Error(), "No handler registered for job type unregistered")
}

func TestLoop_HandlerPanicRecoveredAsHandlerError(t *testing.T) {
	job := &queue.Job{ID: 3, Type: "boom", Key: "k3", Attempts: 1, MaxAttempts: 5}

	var failureErr error
	engine := &mockEngine{
		claimFunc: func(ctx context.Context, workerID string) (*queue.Job, error) { return job, nil },
		failureFunc: func(ctx context.Context, j *queue.Job, startedAt time.Time, handlerErr error) error {
			failureErr = handlerErr
			return nil
		},
	}

	registry := queue.NewRegistry()
	registry.Register("boom", func(ctx context.Context, payload []byte) (any, error) {
		panic("kaboom")
	})

	loop := New(engine, registry, Config{WorkerID: "w1", Concurrency: 1}, nil, nil)

	claimedAny, err := loop.claimAndProcess(context.Background())
	require.NoError(t, err)
	assert.True(t, claimedAny)

	var he queue.HandlerError
	require.ErrorAs(t, failureErr, &he)
	assert.Contains(t, he.Message, "kaboom")
	assert.NotEmpty(t, he.Stack)
}

func TestLoop_ClaimNoneDoesNotDispatch(t *testing.T) {
	engine := &mockEngine{}
	registry := queue.NewRegistry()
	loop := New(engine, registry, Config{WorkerID: "w1", Concurrency: 1}, nil, nil)

	claimedAny, err := loop.claimAndProcess(context.Background())
	require.NoError(t, err)
	assert.False(t, claimedAny)
}

func TestLoop_RunExitsOnContextCancellation(t *testing.T) {
	engine := &mockEngine{}
	registry := queue.NewRegistry()
	loop := New(engine, registry, Config{WorkerID: "w1", Concurrency: 2, PollInterval: 5 * time.Millisecond, Lease: time.Minute}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := loop.Run(ctx)
	assert.NoError(t, err)
}

func TestLoop_FatalEngineErrorAbortsRun(t *testing.T) {
	engine := &mockEngine{
		claimFunc: func(ctx context.Context, workerID string) (*queue.Job, error) {
			return nil, errors.New("connection refused")
		},
	}
	registry := queue.NewRegistry()
	loop := New(engine, registry, Config{WorkerID: "w1", Concurrency: 1, PollInterval: time.Second, Lease: time.Minute}, nil, nil)

	err := loop.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
