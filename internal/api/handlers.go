package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/alumnet/internal/audience"
	"github.com/foxzi/alumnet/internal/dispatch"
	"github.com/foxzi/alumnet/internal/models"
	"github.com/foxzi/alumnet/internal/notify"
)

const maxBodyBytes = 1 << 20

// NotificationRequest is the body of POST /api/v1/notifications
type NotificationRequest struct {
	Type        string   `json:"type"`
	ID          string   `json:"id"`
	Test        bool     `json:"test"`
	Which       string   `json:"which,omitempty"`
	PersonTypes []string `json:"personTypes,omitempty"`
	CampaignID  string   `json:"campaignId,omitempty"`
}

// BroadcastRequest is the body of POST /api/v1/broadcasts
type BroadcastRequest struct {
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	Test        bool     `json:"test"`
	Which       string   `json:"which,omitempty"`
	PersonTypes []string `json:"personTypes,omitempty"`
	CampaignID  string   `json:"campaignId,omitempty"`
}

// AudienceRequest is the body of POST /api/v1/audience/count
type AudienceRequest struct {
	PersonTypes []string `json:"personTypes"`
	Which       string   `json:"which"`
}

// DraftRequest is the body of PUT /api/v1/drafts
type DraftRequest struct {
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	Which       string   `json:"which"`
	PersonTypes []string `json:"personTypes"`
}

// SendResponse is returned for a real send
type SendResponse struct {
	ID        string                   `json:"id"`
	Count     int                      `json:"count"`
	Failed    []string                 `json:"failed"`
	Failures  []models.FailedRecipient `json:"failures"`
	Sent      []string                 `json:"sent"`
	Total     int                      `json:"total"`
	Attempted int                      `json:"attempted"`
	Aborted   bool                     `json:"aborted"`
}

// TestResponse is returned for a test send
type TestResponse struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// AudienceResponse is the pre-flight count
type AudienceResponse struct {
	Count int                   `json:"count"`
	Users []models.AudienceUser `json:"users"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.version,
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleNotify handles POST /api/v1/notifications
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req NotificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	listingType, err := models.ParseListingType(req.Type)
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		sendError(w, http.StatusBadRequest, "invalid_request", "id is required")
		return
	}

	admin, _ := AdminFromContext(r.Context())
	out, err := s.notify.Notify(r.Context(), notify.Request{
		Listing:     models.ListingRef{Type: listingType, ID: strings.TrimSpace(req.ID)},
		Test:        req.Test,
		Which:       req.Which,
		PersonTypes: req.PersonTypes,
		CampaignID:  req.CampaignID,
		Admin:       admin,
	})
	s.sendOutcome(w, out, err)
}

// handleBroadcast handles POST /api/v1/broadcasts
func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req BroadcastRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	admin, _ := AdminFromContext(r.Context())
	out, err := s.notify.Broadcast(r.Context(), notify.BroadcastRequest{
		Subject:     req.Subject,
		Body:        req.Body,
		Test:        req.Test,
		Which:       req.Which,
		PersonTypes: req.PersonTypes,
		CampaignID:  req.CampaignID,
		Admin:       admin,
	})
	s.sendOutcome(w, out, err)
}

// sendOutcome writes the response shared by notifications and broadcasts.
// A failed test send is a normal outcome, not an HTTP error.
func (s *Server) sendOutcome(w http.ResponseWriter, out *notify.Outcome, err error) {
	if out != nil && out.Test != nil {
		sendJSON(w, http.StatusOK, TestResponse{Success: out.Test.Success, Reason: out.Test.Reason})
		return
	}
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	report := out.Report
	sendJSON(w, http.StatusOK, SendResponse{
		ID:        report.CampaignID,
		Count:     report.Sent,
		Failed:    report.FailedAddresses(),
		Failures:  report.Failed,
		Sent:      report.Delivered,
		Total:     report.Total,
		Attempted: report.TotalAttempted,
		Aborted:   report.Aborted,
	})
}

// handleAudienceCount handles POST /api/v1/audience/count
func (s *Server) handleAudienceCount(w http.ResponseWriter, r *http.Request) {
	var req AudienceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := s.notify.Preview(r.Context(), req.Which, req.PersonTypes)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	users := p.Users
	if users == nil {
		users = []models.AudienceUser{}
	}
	sendJSON(w, http.StatusOK, AudienceResponse{Count: p.Count, Users: users})
}

// handleProgress handles GET /api/v1/campaigns/{id}/progress
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := s.notify.Progress(id)
	if !ok {
		sendError(w, http.StatusNotFound, "not_found", "No progress for campaign")
		return
	}
	sendJSON(w, http.StatusOK, p)
}

// handleReport handles GET /api/v1/dispatches/{id}
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.notify.Report(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, report)
}

// handleExport handles GET /api/v1/dispatches/{id}/export.csv
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report, err := s.notify.Report(r.Context(), id)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="delivered-%s.csv"`, safeFilename(id)))
	w.WriteHeader(http.StatusOK)
	if err := notify.WriteDeliveredCSV(w, report); err != nil {
		s.logger.Error("failed to write CSV export", "campaign_id", id, "error", err)
	}
}

// handleGetDraft handles GET /api/v1/drafts
func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	admin, _ := AdminFromContext(r.Context())
	d, err := s.notify.Draft(r.Context(), admin)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, d)
}

// handleSaveDraft handles PUT /api/v1/drafts
func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var req DraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	admin, _ := AdminFromContext(r.Context())
	d := &models.Draft{
		Subject:     req.Subject,
		Body:        req.Body,
		Which:       req.Which,
		PersonTypes: req.PersonTypes,
	}
	if err := s.notify.SaveDraft(r.Context(), admin, d); err != nil {
		s.sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, d)
}

// sendServiceError maps engine errors to HTTP status codes
func (s *Server) sendServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, notify.ErrInvalidRequest):
		sendError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, notify.ErrListingNotFound):
		sendError(w, http.StatusNotFound, "listing_not_found", err.Error())
	case errors.Is(err, notify.ErrReportNotFound):
		sendError(w, http.StatusNotFound, "report_not_found", err.Error())
	case errors.Is(err, notify.ErrDraftNotFound):
		sendError(w, http.StatusNotFound, "draft_not_found", err.Error())
	case errors.Is(err, notify.ErrCampaignExists):
		sendError(w, http.StatusConflict, "campaign_exists", err.Error())
	case errors.Is(err, audience.ErrResolution):
		s.logger.Error("audience resolution failed", "error", err)
		sendError(w, http.StatusBadGateway, "resolution_failed", "Could not resolve audience")
	case errors.Is(err, dispatch.ErrTestSend):
		sendError(w, http.StatusBadGateway, "test_send_failed", err.Error())
	case errors.Is(err, notify.ErrNotConfigured):
		sendError(w, http.StatusServiceUnavailable, "not_configured", err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		sendError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		sendError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return false
	}
	return true
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, status int, code, message string) {
	sendJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func safeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
