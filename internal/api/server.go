package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"store-uptime/internal/artifact"
	"store-uptime/internal/models"
	"store-uptime/internal/ratelimit"
	"store-uptime/internal/store"
	"store-uptime/internal/telemetry"
)

// JobStore persists report jobs and their audit trail.
type JobStore interface {
	CreateJob(ctx context.Context) (models.Job, error)
	GetJob(ctx context.Context, id string) (models.Job, error)
	FinishJob(ctx context.Context, id string, status models.JobStatus, lastErr *string) error
	AppendEvent(ctx context.Context, jobID, event, detail string) error
	ListEvents(ctx context.Context, jobID string) ([]models.JobEvent, error)
}

// Enqueuer hands a job id to the workers.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string) error
}

// ArtifactOpener reads a finished report.
type ArtifactOpener interface {
	Open(ctx context.Context, jobID string) (io.ReadCloser, error)
}

// Limiter decides whether a client may trigger another report.
type Limiter interface {
	Allow(ctx context.Context, clientID string) (ratelimit.Decision, error)
}

// Server wires HTTP handlers for the report API.
type Server struct {
	jobs      JobStore
	queue     Enqueuer
	artifacts ArtifactOpener
	limiter   Limiter
	log       *zap.Logger
}

// New constructs the API server. limiter may be nil to disable rate limiting.
func New(jobs JobStore, q Enqueuer, artifacts ArtifactOpener, limiter Limiter, log *zap.Logger) *Server {
	return &Server{
		jobs:      jobs,
		queue:     q,
		artifacts: artifacts,
		limiter:   limiter,
		log:       log,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Mount("/metrics", telemetry.Handler())

	r.Post("/reports", s.handleTrigger)
	r.Route("/reports/{id}", func(r chi.Router) {
		r.Use(validJobID)
		r.Get("/", s.handleGetJob)
		r.Get("/csv", s.handleDownload)
		r.Get("/events", s.handleEvents)
	})
	return r
}

type triggerResponse struct {
	Job models.Job `json:"job"`
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	client := clientFromRequest(r)
	if s.limiter != nil {
		d, err := s.limiter.Allow(ctx, client)
		if err != nil {
			s.log.Error("rate limiter", zap.Error(err))
			http.Error(w, "rate limit error", http.StatusInternalServerError)
			return
		}
		if !d.Allowed {
			telemetry.RateLimitRejects.Inc()
			if d.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(d.RetryAfter.Seconds())))
			}
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
	}

	job, err := s.jobs.CreateJob(ctx)
	if err != nil {
		s.log.Error("create job", zap.Error(err))
		http.Error(w, "failed to create job", http.StatusInternalServerError)
		return
	}
	log := s.log.With(zap.String("job_id", job.ID), zap.String("client", client))

	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		log.Error("enqueue job", zap.Error(err))
		msg := fmt.Sprintf("enqueue: %v", err)
		if err := s.jobs.FinishJob(ctx, job.ID, models.JobFailed, &msg); err != nil {
			log.Warn("mark job failed", zap.Error(err))
		} else {
			s.event(ctx, log, job.ID, models.EventFailed, msg)
		}
		http.Error(w, "enqueue failed", http.StatusInternalServerError)
		return
	}
	s.event(ctx, log, job.ID, models.EventEnqueued, "client="+client)
	telemetry.ReportsTriggered.Inc()
	log.Info("report triggered")

	writeJSON(w, http.StatusAccepted, triggerResponse{Job: job})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	if job.Status != models.JobCompleted {
		http.Error(w, fmt.Sprintf("report is %s", job.Status), http.StatusConflict)
		return
	}
	body, err := s.artifacts.Open(r.Context(), job.ID)
	if errors.Is(err, artifact.ErrNotFound) {
		http.Error(w, "report artifact missing", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("open artifact", zap.String("job_id", job.ID), zap.Error(err))
		http.Error(w, "failed to read report", http.StatusInternalServerError)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.ObjectName(job.ID)))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		s.log.Warn("stream report", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.loadJob(w, r); !ok {
		return
	}
	events, err := s.jobs.ListEvents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "failed to read events", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) loadJob(w http.ResponseWriter, r *http.Request) (models.Job, bool) {
	job, err := s.jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrJobNotFound) {
		http.Error(w, "job not found", http.StatusNotFound)
		return models.Job{}, false
	}
	if err != nil {
		s.log.Error("get job", zap.Error(err))
		http.Error(w, "failed to read job", http.StatusInternalServerError)
		return models.Job{}, false
	}
	return job, true
}

func (s *Server) event(ctx context.Context, log *zap.Logger, jobID, event, detail string) {
	if err := s.jobs.AppendEvent(ctx, jobID, event, detail); err != nil {
		log.Warn("append job event", zap.String("event", event), zap.Error(err))
	}
}

func validJobID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := uuid.Parse(chi.URLParam(r, "id")); err != nil {
			http.Error(w, "invalid job id", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientFromRequest(r *http.Request) string {
	if v := r.Header.Get("X-Client-ID"); v != "" {
		return v
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
