package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAPISender_Send(t *testing.T) {
	var got sendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/send" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sendResponse{ID: "m-1", Status: "queued"})
	}))
	defer srv.Close()

	sender := NewAPISender(srv.URL+"/", "secret", time.Second, testLogger())
	err := sender.Send(context.Background(), &Message{
		From:    "network@alumni.example",
		ReplyTo: "creator@alumni.example",
		To:      "a@x.com",
		Subject: "Hello",
		HTML:    "<p>Hi</p>",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if auth != "Bearer secret" {
		t.Errorf("Authorization = %q", auth)
	}
	if len(got.To) != 1 || got.To[0] != "a@x.com" {
		t.Errorf("To = %v", got.To)
	}
	if got.Body != "Hi" {
		t.Errorf("Body = %q, want derived text", got.Body)
	}
	if got.Headers["Reply-To"] != "creator@alumni.example" {
		t.Errorf("Reply-To header = %q", got.Headers["Reply-To"])
	}
}

func TestAPISender_ErrorClassification(t *testing.T) {
	tests := []struct {
		status        int
		wantTemporary bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusUnprocessableEntity, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(errorResponse{Error: "nope"})
			}))
			defer srv.Close()

			err := NewAPISender(srv.URL, "k", time.Second, nil).Send(context.Background(),
				&Message{From: "network@alumni.example", To: "a@x.com", Subject: "s", Text: "b"})
			if err == nil {
				t.Fatal("Send() expected error")
			}
			if IsTemporary(err) != tt.wantTemporary {
				t.Errorf("IsTemporary() = %v, want %v", IsTemporary(err), tt.wantTemporary)
			}
			if Reason(err) == "" {
				t.Error("empty reason")
			}
		})
	}
}

func TestAPISender_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := NewAPISender(url, "k", time.Second, nil).Send(context.Background(),
		&Message{From: "network@alumni.example", To: "a@x.com", Subject: "s", Text: "b"})
	if err == nil || !IsTemporary(err) {
		t.Errorf("Send() = %v, want temporary error", err)
	}
}

func TestAPISender_AcceptedWithUnreadableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("queued, thanks"))
	}))
	defer srv.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	err := NewAPISender(srv.URL, "k", time.Second, logger).Send(context.Background(),
		&Message{From: "network@alumni.example", To: "a@x.com", Subject: "s", Text: "b"})
	if err != nil {
		t.Fatalf("Send() error = %v, want accepted message to count as sent", err)
	}
	if !strings.Contains(logs.String(), "could not be decoded") {
		t.Errorf("expected a warning about the response body, logs: %s", logs.String())
	}
}
