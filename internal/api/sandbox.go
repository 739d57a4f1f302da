package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/alumnet/internal/mailer"
)

// SandboxListResponse is the response for GET /api/v1/sandbox/messages
type SandboxListResponse struct {
	Messages []*mailer.Capture `json:"messages"`
	Total    int               `json:"total"`
}

// handleSandboxList handles GET /api/v1/sandbox/messages
func (s *Server) handleSandboxList(w http.ResponseWriter, r *http.Request) {
	if s.captures == nil {
		sendError(w, http.StatusServiceUnavailable, "sandbox_disabled", "Sandbox transport is not active")
		return
	}

	filter := mailer.CaptureFilter{
		To:    r.URL.Query().Get("to"),
		Limit: 100,
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			filter.Limit = min(l, 1000)
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil && o >= 0 {
			filter.Offset = min(o, 1000000)
		}
	}

	captures, err := s.captures.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list captures", "error", err)
		sendError(w, http.StatusInternalServerError, "internal_error", "Failed to list messages")
		return
	}
	if captures == nil {
		captures = []*mailer.Capture{}
	}

	sendJSON(w, http.StatusOK, SandboxListResponse{Messages: captures, Total: len(captures)})
}

// handleSandboxGet handles GET /api/v1/sandbox/messages/{id}
func (s *Server) handleSandboxGet(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadCapture(w, r)
	if !ok {
		return
	}
	sendJSON(w, http.StatusOK, c)
}

// handleSandboxRaw handles GET /api/v1/sandbox/messages/{id}/raw
func (s *Server) handleSandboxRaw(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadCapture(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "message/rfc822")
	w.WriteHeader(http.StatusOK)
	w.Write(c.Data)
}

// handleSandboxClear handles DELETE /api/v1/sandbox/messages?older_than=24h
func (s *Server) handleSandboxClear(w http.ResponseWriter, r *http.Request) {
	if s.captures == nil {
		sendError(w, http.StatusServiceUnavailable, "sandbox_disabled", "Sandbox transport is not active")
		return
	}

	var olderThan time.Duration
	if v := r.URL.Query().Get("older_than"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			sendError(w, http.StatusBadRequest, "invalid_request", "Invalid older_than duration")
			return
		}
		olderThan = d
	}

	n, err := s.captures.Clear(r.Context(), olderThan)
	if err != nil {
		s.logger.Error("failed to clear captures", "error", err)
		sendError(w, http.StatusInternalServerError, "internal_error", "Failed to clear messages")
		return
	}

	s.logger.Info("sandbox captures cleared", "deleted", n)
	sendJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (s *Server) loadCapture(w http.ResponseWriter, r *http.Request) (*mailer.Capture, bool) {
	if s.captures == nil {
		sendError(w, http.StatusServiceUnavailable, "sandbox_disabled", "Sandbox transport is not active")
		return nil, false
	}

	id := chi.URLParam(r, "id")
	c, err := s.captures.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get capture", "id", id, "error", err)
		sendError(w, http.StatusInternalServerError, "internal_error", "Failed to get message")
		return nil, false
	}
	if c == nil {
		sendError(w, http.StatusNotFound, "not_found", "Message not found")
		return nil, false
	}
	return c, true
}
