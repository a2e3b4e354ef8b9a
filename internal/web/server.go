// Package web exposes the controller's four public operations (plus user
// registration and history reads) as a JSON API under /api/v1. Presentation
// code talks to these endpoints only; it never touches persisted state.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/omtobe/go-controller/internal/controller"
	"github.com/danielpatrickdp/omtobe/go-controller/internal/cycle"
	"github.com/danielpatrickdp/omtobe/go-controller/internal/state"
)

// #region server

// Server serves the controller API over HTTP.
type Server struct {
	httpServer *http.Server
	ctrl       *controller.Controller
	logger     *zap.Logger
}

// New creates a Server wired to the given controller.
func New(addr string, ctrl *controller.Controller, logger *zap.Logger) *Server {
	s := &Server{ctrl: ctrl, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/users", s.handleCreateUser)
	mux.HandleFunc("POST /api/v1/state/check", s.handleCheckTrigger)
	mux.HandleFunc("POST /api/v1/decisions", s.handleRecordDecision)
	mux.HandleFunc("POST /api/v1/reflections", s.handleRecordReflection)
	mux.HandleFunc("GET /api/v1/state", s.handleGetState)
	mux.HandleFunc("POST /api/v1/state/reset", s.handleReset)
	mux.HandleFunc("GET /api/v1/decisions/history", s.handleDecisionHistory)
	mux.HandleFunc("GET /api/v1/reflections/history", s.handleReflectionHistory)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// #endregion server

// #region handlers

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

type createUserRequest struct {
	UserID   string `json:"user_id"`
	Timezone string `json:"timezone"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	rec, err := s.ctrl.CreateUser(req.UserID, req.Timezone)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user_id":     rec.ID,
		"timezone":    rec.Timezone,
		"cycle_start": rec.CreatedAt,
		"current_day": 1,
	})
}

type userRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleCheckTrigger(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !s.decode(w, r, &req) {
		return
	}
	status, err := s.ctrl.CheckTrigger(r.Context(), req.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type decisionRequest struct {
	UserID   string `json:"user_id"`
	Decision string `json:"decision"`
}

func (s *Server) handleRecordDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if !s.decode(w, r, &req) {
		return
	}
	status, err := s.ctrl.RecordDecision(req.UserID, cycle.DecisionType(req.Decision))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type reflectionRequest struct {
	UserID   string `json:"user_id"`
	Response string `json:"response"`
}

func (s *Server) handleRecordReflection(w http.ResponseWriter, r *http.Request) {
	var req reflectionRequest
	if !s.decode(w, r, &req) {
		return
	}
	status, err := s.ctrl.RecordReflection(req.UserID, cycle.ReflectionResponse(req.Response))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	summary, err := s.ctrl.GetState(userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !s.decode(w, r, &req) {
		return
	}
	summary, err := s.ctrl.ResetCycle(req.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDecisionHistory(w http.ResponseWriter, r *http.Request) {
	userID, limit, ok := s.historyParams(w, r)
	if !ok {
		return
	}
	records, err := s.ctrl.DecisionHistory(userID, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, map[string]any{
			"timestamp":     rec.Timestamp,
			"decision_type": rec.Type,
			"day":           rec.Day,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "decisions": out})
}

func (s *Server) handleReflectionHistory(w http.ResponseWriter, r *http.Request) {
	userID, limit, ok := s.historyParams(w, r)
	if !ok {
		return
	}
	records, err := s.ctrl.ReflectionHistory(userID, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, map[string]any{
			"timestamp":   rec.Timestamp,
			"response":    rec.Response,
			"cycle_start": rec.CycleStart,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "reflections": out})
}

func (s *Server) historyParams(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return "", 0, false
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return "", 0, false
		}
		limit = n
	}
	return userID, limit, true
}

// #endregion handlers

// #region helpers

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeDomainError maps controller/cycle errors onto HTTP statuses.
// Validation rejections are all-or-nothing upstream, so every non-2xx here
// means no state changed.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, state.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, state.ErrUserExists):
		writeError(w, http.StatusConflict, "user already exists")
	case errors.Is(err, cycle.ErrInvalidDecision), errors.Is(err, cycle.ErrInvalidReflection):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, cycle.ErrNoPendingTrigger), errors.Is(err, cycle.ErrOutsideReflection):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// #endregion helpers
