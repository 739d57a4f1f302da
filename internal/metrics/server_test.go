package metrics

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseAllowedIPs(t *testing.T) {
	tests := []struct {
		name      string
		entries   []string
		wantCount int
	}{
		{"empty", nil, 0},
		{"single IP", []string{"192.168.1.1"}, 1},
		{"CIDR", []string{"192.168.0.0/16", "10.0.0.0/8"}, 2},
		{"with invalid", []string{"192.168.1.1", "invalid", "10.0.0.0/33"}, 1},
		{"IPv6", []string{"::1", "fe80::/10"}, 2},
		{"blank entries", []string{" ", ""}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(parseAllowedIPs(tt.entries, discardLogger())); got != tt.wantCount {
				t.Errorf("parsed %d networks, want %d", got, tt.wantCount)
			}
		})
	}
}

func TestServerHandler(t *testing.T) {
	m := New()
	m.MessagesSentTotal.WithLabelValues("POST").Inc()

	s := NewServer(m, "", "", []string{"10.0.0.0/8"}, discardLogger())

	tests := []struct {
		name       string
		path       string
		remoteAddr string
		wantStatus int
		wantBody   string
	}{
		{"allowed scrape", "/metrics", "10.1.2.3:5555", http.StatusOK, "alumnet_messages_sent_total"},
		{"denied scrape", "/metrics", "192.168.1.1:5555", http.StatusForbidden, ""},
		{"health unfiltered", "/health", "192.168.1.1:5555", http.StatusOK, "OK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.RemoteAddr = tt.remoteAddr
			rec := httptest.NewRecorder()

			s.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body missing %q", tt.wantBody)
			}
		})
	}
}

func TestServerIgnoresForwardedFor(t *testing.T) {
	s := NewServer(New(), "", "", []string{"10.0.0.1"}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}
