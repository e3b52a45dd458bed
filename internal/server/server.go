// Package server exposes the HTTP API: on-demand sync and expiry triggers,
// event listing, manual event entry, status and metrics.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"portalsync/internal/engine"
	"portalsync/internal/job"
	"portalsync/internal/store"
)

// Server holds the HTTP handlers over the engine and the job registry.
type Server struct {
	engine   *engine.Engine
	registry *job.Registry
	log      zerolog.Logger
}

// New builds the server.
func New(e *engine.Engine, registry *job.Registry, log zerolog.Logger) *Server {
	return &Server{
		engine:   e,
		registry: registry,
		log:      log.With().Str("component", "server").Logger(),
	}
}

// Router wires the API routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/sync", s.handleSync).Methods(http.MethodPost)
	r.HandleFunc("/api/expiry", s.handleExpiry).Methods(http.MethodPost)
	r.HandleFunc("/api/events", s.handleListEvents).Methods(http.MethodGet)
	r.HandleFunc("/api/events", s.handleAddEvent).Methods(http.MethodPost)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("response encoding failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) runJob(w http.ResponseWriter, r *http.Request, name string, opts job.RunOptions) {
	j := s.registry.Get(name)
	if j == nil {
		s.writeError(w, http.StatusNotFound, "job not registered: "+name)
		return
	}

	res := j.Run(r.Context(), opts)
	status := http.StatusOK
	if !res.Success {
		// A skipped or failed run is the caller's problem to retry.
		status = http.StatusConflict
	}
	s.writeJSON(w, status, res)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("resync"))
	s.runJob(w, r, "sync", job.RunOptions{ForceResync: force})
}

func (s *Server) handleExpiry(w http.ResponseWriter, r *http.Request) {
	s.runJob(w, r, "expiry", job.RunOptions{})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	var period *store.Period
	if raw := r.URL.Query().Get("period"); raw != "" {
		p, err := store.ParsePeriod(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		period = &p
	}

	events, p, err := s.engine.ListEvents(period)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"period": p.String(),
		"count":  len(events),
		"events": events,
	})
}

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	var in engine.ManualEventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ev, err := s.engine.AddManualEvent(r.Context(), in)
	if err != nil {
		if ev.ID != "" {
			// Stored but not announced: created, with the problem attached.
			s.writeJSON(w, http.StatusCreated, map[string]any{"event": ev, "warning": err.Error()})
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"event": ev})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
