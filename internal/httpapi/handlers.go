package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ridgeline/jobqueue/internal/queue"
)

// Server holds the dependencies the admission adapter's handlers need.
type Server struct {
	engine  queue.Engine
	db      *sql.DB
	service string
}

// NewServer builds a Server bound to an Engine and the raw *sql.DB used
// only for the db-health probe.
func NewServer(engine queue.Engine, db *sql.DB, service string) *Server {
	return &Server{engine: engine, db: db, service: service}
}

type enqueueRequest struct {
	Type        string          `json:"type"`
	Key         string          `json:"key"`
	Payload     json.RawMessage `json:"payload"`
	RunAfterMS  *int64          `json:"run_after_ms"`
	MaxAttempts *int            `json:"max_attempts"`
}

func (s *Server) postJobs(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid_body")
		return
	}

	if req.Type == "" {
		fail(w, r, http.StatusBadRequest, "type_required")
		return
	}
	if req.Key == "" {
		fail(w, r, http.StatusBadRequest, "key_required")
		return
	}
	if req.MaxAttempts != nil && (*req.MaxAttempts < 1 || *req.MaxAttempts > 50) {
		fail(w, r, http.StatusBadRequest, "max_attempts_out_of_range")
		return
	}
	if req.RunAfterMS != nil && *req.RunAfterMS < 0 {
		fail(w, r, http.StatusBadRequest, "run_after_ms_negative")
		return
	}

	params := queue.EnqueueParams{
		Type:        req.Type,
		Key:         req.Key,
		Payload:     req.Payload,
		MaxAttempts: req.MaxAttempts,
	}
	if req.RunAfterMS != nil {
		t := time.UnixMilli(*req.RunAfterMS).UTC()
		params.RunAfter = &t
	}

	job, err := s.engine.Enqueue(r.Context(), params)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	ok(w, r, http.StatusCreated, envelope{"job": toJobDTO(job)})
}

func (s *Server) getJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := queue.ListJobsParams{Limit: parseIntDefault(q.Get("limit"), 50)}
	if statusStr := q.Get("status"); statusStr != "" {
		st := queue.Status(statusStr)
		params.Status = &st
	}

	jobs, err := s.engine.ListJobs(r.Context(), params)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	dtos := make([]jobDTO, 0, len(jobs))
	for _, j := range jobs {
		dtos = append(dtos, toJobDTO(j))
	}
	ok(w, r, http.StatusOK, envelope{"jobs": dtos})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id, ok2 := parseIDParam(w, r)
	if !ok2 {
		return
	}

	job, err := s.engine.GetJob(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	ok(w, r, http.StatusOK, envelope{"job": toJobDTO(job)})
}

func (s *Server) getJobRuns(w http.ResponseWriter, r *http.Request) {
	id, ok2 := parseIDParam(w, r)
	if !ok2 {
		return
	}

	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	runs, err := s.engine.ListRuns(r.Context(), id, limit)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	dtos := make([]jobRunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toJobRunDTO(run))
	}
	ok(w, r, http.StatusOK, envelope{"runs": dtos})
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	ok(w, r, http.StatusOK, envelope{"service": s.service, "time": time.Now().UTC().UnixMilli()})
}

func (s *Server) getDBHealth(w http.ResponseWriter, r *http.Request) {
	var dbTime time.Time
	err := s.db.QueryRowContext(r.Context(), "SELECT now()").Scan(&dbTime)
	if err != nil {
		fail(w, r, http.StatusServiceUnavailable, "db_unreachable")
		return
	}
	ok(w, r, http.StatusOK, envelope{"dbTime": dbTime.UnixMilli(), "time": time.Now().UTC().UnixMilli()})
}

func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, queue.ErrInvalidInput):
		fail(w, r, http.StatusBadRequest, "invalid_input")
	case errors.Is(err, queue.ErrNotFound):
		fail(w, r, http.StatusNotFound, "not_found")
	case errors.Is(err, queue.ErrTransient):
		fail(w, r, http.StatusServiceUnavailable, "transient")
	default:
		fail(w, r, http.StatusInternalServerError, "internal")
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		fail(w, r, http.StatusBadRequest, "invalid_id")
		return 0, false
	}
	return id, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
