// Package httpapi is the admission adapter: a thin request-validating
// layer in front of the queue engine's enqueue and read-side operations.
package httpapi

import (
	"database/sql"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmw "github.com/ridgeline/jobqueue/internal/httpapi/middleware"
	"github.com/ridgeline/jobqueue/internal/queue"
)

// DefaultMaxBodyBytes bounds enqueue request bodies.
const DefaultMaxBodyBytes = 1 << 20 // 1MB

// Config holds router-level settings.
type Config struct {
	MaxBodyBytes int64
	ServiceName  string
}

// NewRouter builds the chi router for the admission adapter.
func NewRouter(engine queue.Engine, db *sql.DB, cfg Config) *chi.Mux {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "jobqueue"
	}

	s := NewServer(engine, db, cfg.ServiceName)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(httpmw.MaxBodyBytes(cfg.MaxBodyBytes))

	r.Get("/health", s.getHealth)
	r.Get("/db/health", s.getDBHealth)

	r.Post("/jobs", s.postJobs)
	r.Get("/jobs", s.getJobs)
	r.Get("/jobs/{id}", s.getJob)
	r.Get("/jobs/{id}/runs", s.getJobRuns)

	return r
}
