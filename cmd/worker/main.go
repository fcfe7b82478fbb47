package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ridgeline/jobqueue/internal/config"
	"github.com/ridgeline/jobqueue/internal/handlers"
	"github.com/ridgeline/jobqueue/internal/metrics"
	"github.com/ridgeline/jobqueue/internal/queue"
	sqlstorage "github.com/ridgeline/jobqueue/internal/storage/sql"
	"github.com/ridgeline/jobqueue/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := sqlstorage.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	engine := queue.NewPostgresEngine(db)

	registry := queue.NewRegistry()
	registry.Register("ping", handlers.Ping)
	registry.Register("location.upsert", handlers.LocationUpsert(db))

	workerMetrics := metrics.NewWorker()
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "metrics server failed", "error", err)
		}
	}()

	loop := worker.New(engine, registry, worker.Config{
		WorkerID:     cfg.WorkerID,
		Concurrency:  cfg.Concurrency,
		PollInterval: cfg.PollInterval(),
		Lease:        cfg.Lease(),
	}, workerMetrics, db)

	slog.InfoContext(ctx, "worker starting",
		"worker_id", cfg.WorkerID, "concurrency", cfg.Concurrency, "metrics_port", cfg.MetricsPort)

	runErr := loop.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		slog.WarnContext(ctx, "metrics server shutdown error", "error", err)
	}

	poolClosed := make(chan struct{})
	go func() {
		db.Close()
		close(poolClosed)
	}()
	select {
	case <-poolClosed:
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "database pool did not drain within shutdown grace period")
	}

	return runErr
}
