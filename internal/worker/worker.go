// Package worker implements the concurrency-bounded poll loop that drives
// the queue engine: repeated claim batches, handler dispatch with panic
// recovery, and a periodic stale-reclaim timer.
package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ridgeline/jobqueue/internal/metrics"
	"github.com/ridgeline/jobqueue/internal/queue"
)

const reclaimInterval = 30 * time.Second

// Config parameterizes a Loop.
type Config struct {
	WorkerID     string
	Concurrency  int
	PollInterval time.Duration
	Lease        time.Duration
}

// Loop is one worker process's dispatch loop over a shared Engine.
type Loop struct {
	engine   queue.Engine
	registry *queue.Registry
	cfg      Config
	metrics  *metrics.Worker
	db       *sql.DB
}

// New builds a Loop. metrics may be nil, in which case counters are
// skipped. db may be nil, in which case the queue-depth gauge is never
// sampled; when both are non-nil, depth is sampled on every reclaim tick.
func New(engine queue.Engine, registry *queue.Registry, cfg Config, m *metrics.Worker, db *sql.DB) *Loop {
	return &Loop{engine: engine, registry: registry, cfg: cfg, metrics: m, db: db}
}

// Run blocks until ctx is cancelled, then finishes the in-flight batch and
// returns. A fatal engine error (anything that is not queue.ErrTransient)
// returned from claim aborts the loop early.
func (l *Loop) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "worker loop starting",
		"worker_id", l.cfg.WorkerID, "concurrency", l.cfg.Concurrency,
		"poll_interval", l.cfg.PollInterval, "lease", l.cfg.Lease)

	reclaimTicker := time.NewTicker(reclaimInterval)
	defer reclaimTicker.Stop()

	stop := make(chan struct{})
	reclaimDone := make(chan struct{})
	go func() {
		defer close(reclaimDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-reclaimTicker.C:
				l.runReclaim(ctx)
			}
		}
	}()
	defer func() {
		close(stop)
		<-reclaimDone
	}()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "worker loop stopped", "worker_id", l.cfg.WorkerID)
			return nil
		default:
		}

		anyClaimed, err := l.runBatch(ctx)
		if err != nil {
			return fmt.Errorf("fatal error in claim batch: %w", err)
		}

		if !anyClaimed {
			if l.metrics != nil {
				l.metrics.PollBatches.Inc()
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(l.cfg.PollInterval):
			}
		}
	}
}

// runBatch launches up to Concurrency parallel claim attempts and waits for
// all of them. It reports whether any task obtained a job.
func (l *Loop) runBatch(ctx context.Context) (bool, error) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	claimedAny := false
	var fatalErr error

	for i := 0; i < l.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := l.claimAndProcess(ctx)
			if err != nil && !errors.Is(err, queue.ErrTransient) {
				mu.Lock()
				if fatalErr == nil {
					fatalErr = err
				}
				mu.Unlock()
				return
			}
			if claimed {
				mu.Lock()
				claimedAny = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return claimedAny, fatalErr
}

// claimAndProcess performs one claim and, if successful, dispatches to the
// registered handler and reports the outcome.
func (l *Loop) claimAndProcess(ctx context.Context) (bool, error) {
	job, err := l.engine.Claim(ctx, l.cfg.WorkerID)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown raced the claim; not an engine fault.
			return false, nil
		}
		return false, err
	}
	if job == nil {
		return false, nil
	}
	if l.metrics != nil {
		l.metrics.Claims.Inc()
	}

	slog.InfoContext(ctx, "claimed job", "job_id", job.ID, "type", job.Type, "key", job.Key, "attempt", job.Attempts)

	startedAt := time.Now().UTC()
	result, handlerErr := l.dispatch(ctx, job)

	// The outcome is recorded even if shutdown began while the handler ran,
	// so the in-flight job is not left running until its lease expires.
	reportCtx := context.WithoutCancel(ctx)

	if handlerErr != nil {
		if l.metrics != nil {
			l.metrics.Failures.Inc()
			if job.Attempts >= job.MaxAttempts {
				l.metrics.DeadLetters.Inc()
			}
		}
		slog.WarnContext(ctx, "job handler failed", "job_id", job.ID, "type", job.Type, "error", handlerErr)
		if err := l.engine.Failure(reportCtx, job, startedAt, handlerErr); err != nil {
			return true, fmt.Errorf("failed to record failure for job %d: %w", job.ID, err)
		}
		return true, nil
	}

	summary, err := json.Marshal(result)
	if err != nil {
		summary = []byte(fmt.Sprintf("%v", result))
	}
	if l.metrics != nil {
		l.metrics.Successes.Inc()
	}
	slog.InfoContext(ctx, "job succeeded", "job_id", job.ID, "type", job.Type)
	if err := l.engine.Success(reportCtx, job, startedAt, string(summary)); err != nil {
		return true, fmt.Errorf("failed to record success for job %d: %w", job.ID, err)
	}
	return true, nil
}

// dispatch looks up and invokes the handler for job.Type, recovering any
// panic into a queue.HandlerError.
func (l *Loop) dispatch(ctx context.Context, job *queue.Job) (result any, err error) {
	handler, ok := l.registry.Lookup(job.Type)
	if !ok {
		return nil, queue.HandlerError{Message: fmt.Sprintf("No handler registered for job type %s", job.Type)}
	}

	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			slog.ErrorContext(ctx, "job handler panicked", "job_id", job.ID, "type", job.Type, "panic", r)
			err = queue.HandlerError{Message: fmt.Sprintf("panic: %v", r), Stack: stack}
		}
	}()

	return handler(ctx, job.Payload)
}

func (l *Loop) runReclaim(ctx context.Context) {
	n, err := l.engine.ReclaimStale(ctx, int(l.cfg.Lease.Seconds()))
	if err != nil {
		slog.ErrorContext(ctx, "stale reclaim failed", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "reclaimed stale jobs", "count", n)
		if l.metrics != nil {
			l.metrics.StaleReclaims.Add(float64(n))
		}
	}

	if l.metrics != nil && l.db != nil {
		if err := metrics.SampleDepth(ctx, l.db, l.metrics.QueueDepth); err != nil {
			slog.WarnContext(ctx, "failed to sample queue depth", "error", err)
		}
	}
}
