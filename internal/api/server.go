// Package api exposes the session store over JSON HTTP. Handlers are thin:
// decode, validate, delegate to the store, map errors to status codes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"edlog/internal/event"
	"edlog/internal/store"
)

// SessionStore is the storage surface the API serves.
type SessionStore interface {
	StartSession(ctx context.Context, language, initialCode string) (sessionID string, startTime int64, err error)
	AppendEvents(ctx context.Context, sessionID string, events []event.Event) error
	StopSession(ctx context.Context, sessionID string) (endTime int64, err error)
	GetSession(ctx context.Context, sessionID string) (*event.Session, error)
	ListSessions(ctx context.Context, limit int) ([]event.Summary, error)
	EventCount(ctx context.Context, sessionID string) (int64, error)
	CleanupEmpty(ctx context.Context) (int64, error)
}

// Server routes session endpoints onto a store.
type Server struct {
	store SessionStore
	mux   *http.ServeMux
}

// NewServer creates a Server over the given store.
func NewServer(st SessionStore) *Server {
	s := &Server{store: st, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /session/start", s.handleStart)
	s.mux.HandleFunc("POST /session/event", s.handleAppend)
	s.mux.HandleFunc("POST /session/stop", s.handleStop)
	s.mux.HandleFunc("GET /session/{id}", s.handleGet)
	s.mux.HandleFunc("GET /sessions", s.handleList)
	s.mux.HandleFunc("POST /sessions/cleanup-empty", s.handleCleanup)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startRequest struct {
	Language    string `json:"language"`
	InitialCode string `json:"initialCode"`
}

type startResponse struct {
	Ok        bool   `json:"ok"`
	SessionID string `json:"sessionId"`
	StartTime int64  `json:"startTime"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Language == "" {
		writeError(w, http.StatusBadRequest, "language is required")
		return
	}

	id, startTime, err := s.store.StartSession(r.Context(), req.Language, req.InitialCode)
	if err != nil {
		slog.Error("start session failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, startResponse{Ok: true, SessionID: id, StartTime: startTime})
}

type appendRequest struct {
	SessionID string        `json:"sessionId"`
	Events    []event.Event `json:"events"`
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	if len(req.Events) == 0 {
		writeError(w, http.StatusBadRequest, "events must be a non-empty array")
		return
	}
	for i, ev := range req.Events {
		if !event.ValidTypes[ev.Type] {
			writeError(w, http.StatusBadRequest, "event "+strconv.Itoa(i)+" has unknown type")
			return
		}
	}

	if err := s.store.AppendEvents(r.Context(), req.SessionID, req.Events); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		slog.Error("append events failed", "session", req.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type stopRequest struct {
	SessionID string `json:"sessionId"`
}

type stopResponse struct {
	Ok      bool  `json:"ok"`
	EndTime int64 `json:"endTime"`
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	endTime, err := s.store.StopSession(r.Context(), req.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		slog.Error("stop session failed", "session", req.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, stopResponse{Ok: true, EndTime: endTime})
}

// sessionResponse is the session document as served. Per-line history is
// condensed to a summary; the full version lists stay server-side.
type sessionResponse struct {
	SessionID          string              `json:"sessionId"`
	Language           string              `json:"language"`
	InitialCode        string              `json:"initialCode"`
	StartTime          int64               `json:"startTime"`
	EndTime            *int64              `json:"endTime,omitempty"`
	Events             []event.Event       `json:"events"`
	LineHistorySummary map[int]lineSummary `json:"lineHistorySummary"`
}

// lineSummary condenses one line's append-only history to its version count
// and last known content.
type lineSummary struct {
	Versions      int     `json:"versions"`
	LastContent   *string `json:"lastContent,omitempty"`
	LastTimestamp int64   `json:"lastTimestamp"`
}

func summarizeLineHistory(history map[int][]event.LineVersion) map[int]lineSummary {
	out := make(map[int]lineSummary, len(history))
	for line, versions := range history {
		sum := lineSummary{Versions: len(versions)}
		for _, v := range versions {
			if v.Timestamp > sum.LastTimestamp {
				sum.LastTimestamp = v.Timestamp
			}
			if v.Content != nil {
				sum.LastContent = v.Content
			}
		}
		out[line] = sum
	}
	return out
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	sess, err := s.store.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		slog.Error("get session failed", "session", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := sessionResponse{
		SessionID:          sess.SessionID,
		Language:           sess.Language,
		InitialCode:        sess.InitialCode,
		StartTime:          sess.StartTime,
		EndTime:            sess.EndTime,
		Events:             sess.Events,
		LineHistorySummary: summarizeLineHistory(sess.LineHistory),
	}
	if resp.Events == nil {
		resp.Events = []event.Event{}
	}

	writeJSON(w, http.StatusOK, resp)
}

// summaryResponse is a session listing entry with its event count.
type summaryResponse struct {
	event.Summary
	EventCount int64 `json:"eventCount"`
}

type listResponse struct {
	Ok       bool              `json:"ok"`
	Sessions []summaryResponse `json:"sessions"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	summaries, err := s.store.ListSessions(r.Context(), limit)
	if err != nil {
		slog.Error("list sessions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	result := make([]summaryResponse, 0, len(summaries))
	for _, sum := range summaries {
		count, err := s.store.EventCount(r.Context(), sum.SessionID)
		if err != nil {
			slog.Warn("event count failed", "session", sum.SessionID, "error", err)
		}
		result = append(result, summaryResponse{Summary: sum, EventCount: count})
	}

	writeJSON(w, http.StatusOK, listResponse{Ok: true, Sessions: result})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.store.CleanupEmpty(r.Context())
	if err != nil {
		slog.Error("cleanup empty sessions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	slog.Info("cleaned up empty sessions", "deleted", deleted)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deletedCount": deleted})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
