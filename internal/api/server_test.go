package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/foxzi/alumnet/internal/audience"
	"github.com/foxzi/alumnet/internal/config"
	"github.com/foxzi/alumnet/internal/db"
	"github.com/foxzi/alumnet/internal/dispatch"
	"github.com/foxzi/alumnet/internal/mailer"
	"github.com/foxzi/alumnet/internal/models"
	"github.com/foxzi/alumnet/internal/notify"
	"github.com/foxzi/alumnet/internal/repository"
	"github.com/foxzi/alumnet/internal/repository/memory"
)

const testAPIKey = "test-api-key"

type fakeSender struct {
	mu   sync.Mutex
	sent []*mailer.Message
	fail map[string]bool
}

func (f *fakeSender) Send(ctx context.Context, msg *mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	if f.fail[msg.To] {
		return &mailer.SendError{Reason: "550 no such user"}
	}
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type brokenStore struct{}

func (brokenStore) ListPeople(ctx context.Context, q audience.PersonQuery) ([]models.Person, error) {
	return nil, errors.New("database is locked")
}

type testServer struct {
	server *Server
	sender *fakeSender
}

func setupTestServer(t *testing.T, store audience.PersonStore) *testServer {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testAPIKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash key: %v", err)
	}

	d, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	people := memory.NewPersonStore(
		models.Person{ID: "p1", Name: "Ada", Type: models.PersonAlumni, Email1: "a@x.com"},
		models.Person{ID: "p2", Name: "Ben", Type: models.PersonAlumni, Email1: "a@x.com"},
		models.Person{ID: "p3", Name: "Cy", Type: models.PersonAlumni, Email1: "b@x.com"},
		models.Person{ID: "p4", Name: "Di", Type: models.PersonStaff, Email1: "s1@x.com"},
		models.Person{ID: "p5", Name: "Ed", Type: models.PersonStaff, Email1: "s2@x.com"},
	)
	if store == nil {
		store = people
	}
	listings := memory.NewListingStore(&models.JobPosting{ID: "job-1", Title: "Engineer", Company: "Acme", CreatedBy: "p4"})

	sender := &fakeSender{fail: map[string]bool{}}
	tracker := dispatch.NewTracker(0)
	dispatcher := dispatch.New(sender, dispatch.Config{From: "network@alumni.example"}, nil)
	dispatcher.SetProgressSink(tracker)

	svc := notify.NewService(notify.Deps{
		Listings:   listings,
		People:     people,
		Resolver:   audience.NewResolver(store, audience.Options{}, nil),
		Dispatcher: dispatcher,
		Tester:     dispatch.NewTestSender(sender, "network@alumni.example", nil),
		Renderer:   notify.NewRenderer(config.NotifyConfig{}),
		Reports:    repository.NewReportRepository(d),
		Drafts:     repository.NewDraftRepository(d),
		Progress:   tracker,
	}, nil)

	server := NewServer(svc, config.ServerConfig{ListenAddr: ":0"}, []config.AdminConfig{
		{Name: "Ops", Email: "ops@alumni.example", KeyHash: string(hash)},
	}, nil)

	return &testServer{server: server, sender: sender}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	if resp := decode[HealthResponse](t, w); resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
}

func TestAuthMiddleware(t *testing.T) {
	ts := setupTestServer(t, nil)

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"no key", "", "", http.StatusUnauthorized},
		{"wrong key", "Authorization", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "Authorization", "Bearer " + testAPIKey, http.StatusNotFound},
		{"x-api-key", "X-API-Key", testAPIKey, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/dispatches/none", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			ts.server.Handler().ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("Status = %d, want %d. Body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestAuthenticator_CachesVerifiedKeys(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("k1"), bcrypt.MinCost)
	a := newAuthenticator([]config.AdminConfig{{Name: "A", Email: "a@alumni.example", KeyHash: string(hash)}})

	admin, ok := a.authenticate("k1")
	if !ok || admin.Email != "a@alumni.example" {
		t.Fatalf("authenticate() = %+v, %v", admin, ok)
	}
	if len(a.verified) != 1 {
		t.Errorf("verified cache size = %d, want 1", len(a.verified))
	}
	if _, ok := a.authenticate("k2"); ok {
		t.Error("authenticate() accepted an unknown key")
	}
	if len(a.verified) != 1 {
		t.Errorf("unknown key was cached")
	}
}

func TestNotifyEndpoint(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.sender.fail["b@x.com"] = true

	w := ts.do(t, "POST", "/api/v1/notifications",
		`{"type":"job_posting","id":"job-1","test":false,"which":"email1","personTypes":["ALUMNI"],"campaignId":"c-100"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200. Body: %s", w.Code, w.Body.String())
	}

	resp := decode[SendResponse](t, w)
	if resp.ID != "c-100" {
		t.Errorf("ID = %q, want c-100", resp.ID)
	}
	if resp.Count != 1 || resp.Total != 2 || resp.Attempted != 2 {
		t.Errorf("response = %+v", resp)
	}
	if len(resp.Failed) != 1 || resp.Failed[0] != "b@x.com" {
		t.Errorf("Failed = %v", resp.Failed)
	}
	if len(resp.Sent) != 1 || resp.Sent[0] != "a@x.com" {
		t.Errorf("Sent = %v", resp.Sent)
	}

	// the report is stored and exportable
	w = ts.do(t, "GET", "/api/v1/dispatches/c-100", "")
	if w.Code != http.StatusOK {
		t.Fatalf("report Status = %d. Body: %s", w.Code, w.Body.String())
	}
	if report := decode[models.DispatchReport](t, w); report.Sent != 1 || len(report.Failed) != 1 {
		t.Errorf("stored report = %+v", report)
	}

	w = ts.do(t, "GET", "/api/v1/dispatches/c-100/export.csv", "")
	if w.Code != http.StatusOK {
		t.Fatalf("export Status = %d", w.Code)
	}
	if w.Body.String() != "email\na@x.com\n" {
		t.Errorf("export body = %q", w.Body.String())
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv") {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}

	w = ts.do(t, "GET", "/api/v1/campaigns/c-100/progress", "")
	if w.Code != http.StatusOK {
		t.Fatalf("progress Status = %d", w.Code)
	}
	if p := decode[models.BatchProgress](t, w); !p.Done || p.Processed != 2 {
		t.Errorf("progress = %+v", p)
	}
}

func TestNotifyEndpoint_DuplicateCampaignID(t *testing.T) {
	ts := setupTestServer(t, nil)
	body := `{"type":"JOB_POSTING","id":"job-1","personTypes":["ALUMNI"],"campaignId":"c-dup"}`

	if w := ts.do(t, "POST", "/api/v1/notifications", body); w.Code != http.StatusOK {
		t.Fatalf("first Status = %d. Body: %s", w.Code, w.Body.String())
	}
	sent := ts.sender.count()

	w := ts.do(t, "POST", "/api/v1/notifications", body)
	if w.Code != http.StatusConflict {
		t.Fatalf("second Status = %d, want 409. Body: %s", w.Code, w.Body.String())
	}
	if resp := decode[ErrorResponse](t, w); resp.Code != "campaign_exists" {
		t.Errorf("Code = %q, want campaign_exists", resp.Code)
	}
	if ts.sender.count() != sent {
		t.Errorf("second request sent %d more messages", ts.sender.count()-sent)
	}
}

func TestNotifyEndpoint_TestSend(t *testing.T) {
	ts := setupTestServer(t, brokenStore{})

	w := ts.do(t, "POST", "/api/v1/notifications", `{"type":"JOB_POSTING","id":"job-1","test":true,"personTypes":["NOPE"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d. Body: %s", w.Code, w.Body.String())
	}
	if resp := decode[TestResponse](t, w); !resp.Success {
		t.Errorf("Success = false, reason %q", resp.Reason)
	}
	if ts.sender.count() != 1 {
		t.Errorf("sent %d messages, want 1", ts.sender.count())
	}
	if ts.sender.sent[0].To != "ops@alumni.example" {
		t.Errorf("To = %q, want the authenticated admin", ts.sender.sent[0].To)
	}
}

func TestNotifyEndpoint_TestSendFailure(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.sender.fail["ops@alumni.example"] = true

	w := ts.do(t, "POST", "/api/v1/notifications", `{"type":"JOB_POSTING","id":"job-1","test":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d. Body: %s", w.Code, w.Body.String())
	}
	resp := decode[TestResponse](t, w)
	if resp.Success || resp.Reason == "" {
		t.Errorf("response = %+v, want failure with reason", resp)
	}
}

func TestNotifyEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name     string
		store    audience.PersonStore
		body     string
		want     int
		wantCode string
	}{
		{"bad json", nil, `{`, http.StatusBadRequest, "invalid_request"},
		{"bad type", nil, `{"type":"NEWSLETTER","id":"x"}`, http.StatusBadRequest, "invalid_request"},
		{"custom is not a listing", nil, `{"type":"CUSTOM","id":"x"}`, http.StatusBadRequest, "invalid_request"},
		{"missing id", nil, `{"type":"POST"}`, http.StatusBadRequest, "invalid_request"},
		{"unknown listing", nil, `{"type":"POST","id":"missing"}`, http.StatusNotFound, "listing_not_found"},
		{"unknown person type", nil, `{"type":"JOB_POSTING","id":"job-1","personTypes":["ROBOT"]}`, http.StatusBadRequest, "invalid_request"},
		{"unknown which", nil, `{"type":"JOB_POSTING","id":"job-1","which":"email3"}`, http.StatusBadRequest, "invalid_request"},
		{"resolution failure", brokenStore{}, `{"type":"JOB_POSTING","id":"job-1"}`, http.StatusBadGateway, "resolution_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setupTestServer(t, tt.store)
			w := ts.do(t, "POST", "/api/v1/notifications", tt.body)
			if w.Code != tt.want {
				t.Fatalf("Status = %d, want %d. Body: %s", w.Code, tt.want, w.Body.String())
			}
			if resp := decode[ErrorResponse](t, w); resp.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", resp.Code, tt.wantCode)
			}
			if ts.sender.count() != 0 {
				t.Errorf("sent %d messages on error", ts.sender.count())
			}
		})
	}
}

func TestAudienceCountEndpoint(t *testing.T) {
	ts := setupTestServer(t, nil)

	w := ts.do(t, "POST", "/api/v1/audience/count", `{"personTypes":["ALUMNI"],"which":"email1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d. Body: %s", w.Code, w.Body.String())
	}
	resp := decode[AudienceResponse](t, w)
	if resp.Count != 2 {
		t.Errorf("Count = %d, want 2", resp.Count)
	}
	if len(resp.Users) == 0 {
		t.Error("Users is empty")
	}

	w = ts.do(t, "POST", "/api/v1/audience/count", `{"personTypes":["LEADERSHIP"],"which":"email1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"users":[]`) {
		t.Errorf("empty audience body = %s, want users as empty array", w.Body.String())
	}
}

func TestBroadcastEndpoint(t *testing.T) {
	ts := setupTestServer(t, nil)

	w := ts.do(t, "POST", "/api/v1/broadcasts", `{"subject":"Survey","body":"<p>Hi</p>","which":"email1","personTypes":["STAFF"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d. Body: %s", w.Code, w.Body.String())
	}
	if resp := decode[SendResponse](t, w); resp.Count != 2 {
		t.Errorf("Count = %d, want 2", resp.Count)
	}

	w = ts.do(t, "POST", "/api/v1/broadcasts", `{"subject":"","body":"x"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400 for empty subject", w.Code)
	}
}

func TestDraftEndpoints(t *testing.T) {
	ts := setupTestServer(t, nil)

	w := ts.do(t, "GET", "/api/v1/drafts", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("Status = %d, want 404 before first save", w.Code)
	}

	w = ts.do(t, "PUT", "/api/v1/drafts", `{"subject":"Draft","body":"<p>wip</p>","which":"both","personTypes":["FELLOW"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT Status = %d. Body: %s", w.Code, w.Body.String())
	}

	w = ts.do(t, "GET", "/api/v1/drafts", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET Status = %d", w.Code)
	}
	d := decode[models.Draft](t, w)
	if d.Subject != "Draft" || d.AdminEmail != "ops@alumni.example" || len(d.PersonTypes) != 1 {
		t.Errorf("draft = %+v", d)
	}
}

func TestReportEndpoints_NotFound(t *testing.T) {
	ts := setupTestServer(t, nil)

	for _, path := range []string{
		"/api/v1/dispatches/missing",
		"/api/v1/dispatches/missing/export.csv",
		"/api/v1/campaigns/missing/progress",
	} {
		if w := ts.do(t, "GET", path, ""); w.Code != http.StatusNotFound {
			t.Errorf("GET %s Status = %d, want 404", path, w.Code)
		}
	}
}

func TestSafeFilename(t *testing.T) {
	if got := safeFilename(`c-1/../"x"`); got != "c-1_____x_" {
		t.Errorf("safeFilename() = %q", got)
	}
}
