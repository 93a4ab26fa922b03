// Package apiserver is the thin HTTP submission boundary: it accepts job
// envelopes, enqueues them, and exposes job progress, health, and Prometheus
// metrics. The verification pipeline itself is out of process, in cmd/worker
// — this surface never runs a probe directly.
package apiserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/devyanshu/mailcheck/internal/model"
	"github.com/devyanshu/mailcheck/internal/queue"
	"github.com/devyanshu/mailcheck/internal/storage"
)

// Server wires the queue/storage adapters into an HTTP router.
type Server struct {
	Queue  *queue.Queue
	Store  *storage.Store
	Log    *logrus.Logger
	Router *mux.Router
}

// New builds a Server with routes registered.
func New(q *queue.Queue, store *storage.Store, log *logrus.Logger) *Server {
	s := &Server{Queue: q, Store: store, Log: log, Router: mux.NewRouter()}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.Router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/jobs", s.handleSubmitJob).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}", s.handleJobProgress).Methods(http.MethodGet)

	s.Router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.Router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.Router.Use(loggingMiddleware(s.Log))
}

type submitJobRequest struct {
	JobID   string            `json:"jobId"`
	OwnerID string            `json:"ownerId,omitempty"`
	Emails  []string          `json:"emails"`
	Meta    map[string]string `json:"meta,omitempty"`
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.JobID == "" || len(req.Emails) == 0 {
		http.Error(w, "jobId and emails are required", http.StatusBadRequest)
		return
	}

	env := model.JobEnvelope{JobID: req.JobID, OwnerID: req.OwnerID, Emails: req.Emails, Meta: req.Meta}

	if err := s.Store.CreateJob(r.Context(), env.JobID, env.OwnerID, len(env.Emails)); err != nil {
		http.Error(w, "failed to register job", http.StatusInternalServerError)
		return
	}
	if err := s.Queue.Push(r.Context(), env); err != nil {
		http.Error(w, "failed to enqueue job", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"jobId": env.JobID, "status": string(model.JobQueued)})
}

func (s *Server) handleJobProgress(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	progress, err := s.Store.Progress(r.Context(), jobID)
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(progress)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func loggingMiddleware(log *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Info("request handled")
		})
	}
}

// Context is unused directly but documents that handlers inherit request
// cancellation from r.Context() rather than a package-level background one.
var _ = context.Background
