// Package metrics exposes the worker's Prometheus surface: a separate
// registry and HTTP handler from the admission server, in keeping with the
// health-port convention common across the corpus's worker processes.
package metrics

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Worker holds every counter and gauge the worker loop touches.
type Worker struct {
	registry *prometheus.Registry

	Claims        prometheus.Counter
	Successes     prometheus.Counter
	Failures      prometheus.Counter
	DeadLetters   prometheus.Counter
	StaleReclaims prometheus.Counter
	PollBatches   prometheus.Counter
	QueueDepth    *prometheus.GaugeVec
}

// NewWorker builds a Worker metrics set registered on its own registry.
func NewWorker() *Worker {
	reg := prometheus.NewRegistry()

	w := &Worker{
		registry: reg,
		Claims: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobqueue_worker_claims_total",
			Help: "Total number of jobs claimed by this worker process.",
		}),
		Successes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobqueue_worker_successes_total",
			Help: "Total number of jobs that completed successfully.",
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobqueue_worker_failures_total",
			Help: "Total number of handler failures (retrying or dead-lettered).",
		}),
		DeadLetters: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobqueue_worker_dead_letters_total",
			Help: "Total number of jobs that exhausted max_attempts.",
		}),
		StaleReclaims: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobqueue_worker_stale_reclaims_total",
			Help: "Total number of running jobs reclaimed after lease expiry.",
		}),
		PollBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobqueue_worker_poll_batches_total",
			Help: "Total number of claim batches that found no eligible job.",
		}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jobqueue_depth",
			Help: "Current number of jobs per status, last observed by the depth sampler.",
		}, []string{"status"}),
	}

	reg.MustRegister(w.Claims, w.Successes, w.Failures, w.DeadLetters, w.StaleReclaims, w.PollBatches, w.QueueDepth)
	return w
}

// Handler returns the HTTP handler to mount at /metrics.
func (w *Worker) Handler() http.Handler {
	return promhttp.HandlerFor(w.registry, promhttp.HandlerOpts{})
}

// SampleDepth populates QueueDepth from a live count-by-status query. It is
// called from the worker's reclaim tick (see worker.Loop.runReclaim), not
// inline with claim/success/failure.
func SampleDepth(ctx context.Context, db *sql.DB, gauge *prometheus.GaugeVec) error {
	rows, err := db.QueryContext(ctx, `SELECT status, count(*) FROM job_queue GROUP BY status`)
	if err != nil {
		return err
	}
	defer rows.Close()

	gauge.Reset()
	for rows.Next() {
		var status string
		var count float64
		if err := rows.Scan(&status, &count); err != nil {
			return err
		}
		gauge.WithLabelValues(status).Set(count)
	}
	return rows.Err()
}
