// Package notify is the entry point for "send this listing to this audience".
// A request is rendered into a campaign and then either test-sent to the
// invoking administrator or resolved and dispatched to its audience.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/foxzi/alumnet/internal/audience"
	"github.com/foxzi/alumnet/internal/dispatch"
	"github.com/foxzi/alumnet/internal/metrics"
	"github.com/foxzi/alumnet/internal/models"
	"github.com/foxzi/alumnet/internal/repository"
)

var (
	ErrListingNotFound = errors.New("listing not found")
	ErrReportNotFound  = errors.New("dispatch report not found")
	ErrDraftNotFound   = errors.New("draft not found")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrNotConfigured   = errors.New("store not configured")
	ErrCampaignExists  = errors.New("campaign id already used")
)

// State is a step of the notification state machine
type State string

const (
	StateReceived         State = "RECEIVED"
	StateTestSent         State = "TEST_SENT"
	StateTestFailed       State = "TEST_FAILED"
	StateResolving        State = "RESOLVING"
	StateResolved         State = "RESOLVED"
	StateDispatching      State = "DISPATCHING"
	StateCompleted        State = "COMPLETED"
	StateResolutionFailed State = "RESOLUTION_FAILED"
)

// Terminal reports whether no further transition follows s
func (s State) Terminal() bool {
	switch s {
	case StateTestSent, StateTestFailed, StateCompleted, StateResolutionFailed:
		return true
	}
	return false
}

// Request is one invocation for a listing
type Request struct {
	Listing     models.ListingRef
	Test        bool
	Which       string
	PersonTypes []string
	CampaignID  string
	Admin       models.Admin
}

// BroadcastRequest is a free-form message from the admin composer
type BroadcastRequest struct {
	Subject     string
	Body        string
	Test        bool
	Which       string
	PersonTypes []string
	CampaignID  string
	Admin       models.Admin
}

// Outcome is the terminal state of a request. Report is set for Completed,
// Test for TestSent and TestFailed.
type Outcome struct {
	CampaignID string                 `json:"campaign_id"`
	State      State                  `json:"state"`
	Report     *models.DispatchReport `json:"report,omitempty"`
	Test       *dispatch.TestResult   `json:"test,omitempty"`
}

// ListingStore loads listings
type ListingStore interface {
	GetListing(ctx context.Context, ref models.ListingRef) (models.Listing, error)
}

// PersonLookup finds the creator of a listing
type PersonLookup interface {
	Get(ctx context.Context, id string) (*models.Person, error)
}

// ReportLog persists finished dispatch reports
type ReportLog interface {
	SaveReport(ctx context.Context, createdBy string, report *models.DispatchReport) error
	GetReport(ctx context.Context, campaignID string) (*models.DispatchReport, error)
}

// DraftStore keeps one composer draft per administrator
type DraftStore interface {
	SaveDraft(ctx context.Context, d *models.Draft) error
	GetDraft(ctx context.Context, adminEmail string) (*models.Draft, error)
}

// Deps are the collaborators of a Service. Reports, Drafts, People and
// Progress are optional.
type Deps struct {
	Listings   ListingStore
	People     PersonLookup
	Resolver   *audience.Resolver
	Dispatcher *dispatch.Dispatcher
	Tester     *dispatch.TestSender
	Renderer   *Renderer
	Reports    ReportLog
	Drafts     DraftStore
	Progress   *dispatch.Tracker
}

// Service runs notification requests
type Service struct {
	listings   ListingStore
	people     PersonLookup
	resolver   *audience.Resolver
	dispatcher *dispatch.Dispatcher
	tester     *dispatch.TestSender
	renderer   *Renderer
	reports    ReportLog
	drafts     DraftStore
	progress   *dispatch.Tracker
	logger     *slog.Logger

	mu     sync.Mutex
	active map[string]struct{} // campaign IDs currently resolving or dispatching
}

// NewService creates a service
func NewService(d Deps, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		listings:   d.Listings,
		people:     d.People,
		resolver:   d.Resolver,
		dispatcher: d.Dispatcher,
		tester:     d.Tester,
		renderer:   d.Renderer,
		reports:    d.Reports,
		drafts:     d.Drafts,
		progress:   d.Progress,
		logger:     logger.With("component", "notify"),
		active:     make(map[string]struct{}),
	}
}

// Notify renders the listing and runs the request to a terminal state.
// A test request sends one message to the administrator and never reads
// Which or PersonTypes.
func (s *Service) Notify(ctx context.Context, req Request) (*Outcome, error) {
	listing, err := s.listings.GetListing(ctx, req.Listing)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s %s", ErrListingNotFound, req.Listing.Type, req.Listing.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}

	subject, body := s.renderer.Render(listing)
	c := &models.Campaign{
		ID:          campaignID(req.CampaignID),
		ListingType: listing.ListingType(),
		ListingID:   listing.ListingID(),
		Subject:     subject,
		Body:        body,
		ReplyTo:     s.creatorAddress(ctx, listing),
		CreatedBy:   req.Admin.Email,
	}

	return s.run(ctx, c, req.Test, req.Which, req.PersonTypes, req.Admin)
}

// Broadcast sends a composer message through the same resolver and
// dispatcher as listing notifications. Replies go to the administrator.
func (s *Service) Broadcast(ctx context.Context, req BroadcastRequest) (*Outcome, error) {
	if strings.TrimSpace(req.Subject) == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Body) == "" {
		return nil, fmt.Errorf("%w: body is required", ErrInvalidRequest)
	}

	c := &models.Campaign{
		ID:          campaignID(req.CampaignID),
		ListingType: models.ListingCustom,
		Subject:     strings.TrimSpace(req.Subject),
		Body:        s.renderer.WithFooter(req.Body),
		ReplyTo:     req.Admin.Email,
		CreatedBy:   req.Admin.Email,
	}

	return s.run(ctx, c, req.Test, req.Which, req.PersonTypes, req.Admin)
}

// Preview counts the audience exactly as a real send would resolve it
func (s *Service) Preview(ctx context.Context, which string, personTypes []string) (*audience.Preview, error) {
	aud, err := ParseAudience(which, personTypes)
	if err != nil {
		return nil, err
	}
	p, err := s.resolver.Preview(ctx, aud)
	if errors.Is(err, audience.ErrInvalidAudience) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return p, err
}

func (s *Service) run(ctx context.Context, c *models.Campaign, test bool, which string, personTypes []string, admin models.Admin) (*Outcome, error) {
	out := &Outcome{CampaignID: c.ID}
	s.transition(out, StateReceived)

	if test {
		result, err := s.tester.SendTest(ctx, c, admin.Email)
		out.Test = &result
		if err != nil {
			s.transition(out, StateTestFailed)
			return out, err
		}
		s.transition(out, StateTestSent)
		return out, nil
	}

	aud, err := ParseAudience(which, personTypes)
	if err != nil {
		return nil, err
	}
	c.Audience = aud

	release, err := s.claimCampaign(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	s.transition(out, StateResolving)
	recipients, err := s.resolver.Resolve(ctx, aud)
	if err != nil {
		if errors.Is(err, audience.ErrInvalidAudience) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		s.transition(out, StateResolutionFailed)
		return out, err
	}
	s.transition(out, StateResolved)

	s.transition(out, StateDispatching)
	report := s.dispatcher.Dispatch(ctx, c, recipients)
	out.Report = report
	s.transition(out, StateCompleted)

	s.saveReport(ctx, c.CreatedBy, report)
	return out, nil
}

// claimCampaign reserves id for one real send. An ID that is in flight,
// still tracked or already has a stored report is refused.
func (s *Service) claimCampaign(ctx context.Context, id string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.active[id]; busy {
		return nil, fmt.Errorf("%w: %s is in progress", ErrCampaignExists, id)
	}
	if s.progress != nil {
		if _, ok := s.progress.Get(id); ok {
			return nil, fmt.Errorf("%w: %s", ErrCampaignExists, id)
		}
	}
	if s.reports != nil {
		_, err := s.reports.GetReport(ctx, id)
		switch {
		case err == nil:
			return nil, fmt.Errorf("%w: %s", ErrCampaignExists, id)
		case !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("failed to check campaign %s: %w", id, err)
		}
	}

	s.active[id] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.active, id)
		s.mu.Unlock()
	}, nil
}

func (s *Service) transition(out *Outcome, next State) {
	out.State = next
	if next.Terminal() {
		metrics.IncNotifications(string(next))
	}
	s.logger.Debug("notification state", "campaign_id", out.CampaignID, "state", next)
}

// saveReport records the report; failures are logged and never returned
func (s *Service) saveReport(ctx context.Context, createdBy string, report *models.DispatchReport) {
	if s.reports == nil {
		return
	}
	if err := s.reports.SaveReport(context.WithoutCancel(ctx), createdBy, report); err != nil {
		s.logger.Error("failed to save dispatch report", "campaign_id", report.CampaignID, "error", err)
	}
}

// creatorAddress returns the primary email of the listing's creator, or ""
func (s *Service) creatorAddress(ctx context.Context, l models.Listing) string {
	if s.people == nil || l.CreatorID() == "" {
		return ""
	}
	p, err := s.people.Get(ctx, l.CreatorID())
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("failed to look up listing creator", "creator_id", l.CreatorID(), "error", err)
		}
		return ""
	}
	return strings.TrimSpace(p.Email1)
}

// Report returns a stored dispatch report
func (s *Service) Report(ctx context.Context, campaignID string) (*models.DispatchReport, error) {
	if s.reports == nil {
		return nil, fmt.Errorf("%w: reports", ErrNotConfigured)
	}
	r, err := s.reports.GetReport(ctx, campaignID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, campaignID)
	}
	return r, err
}

// Progress returns the running tally of a dispatch
func (s *Service) Progress(campaignID string) (models.BatchProgress, bool) {
	if s.progress == nil {
		return models.BatchProgress{}, false
	}
	return s.progress.Get(campaignID)
}

// SaveDraft stores d as the administrator's only draft
func (s *Service) SaveDraft(ctx context.Context, admin models.Admin, d *models.Draft) error {
	if s.drafts == nil {
		return fmt.Errorf("%w: drafts", ErrNotConfigured)
	}
	d.AdminEmail = admin.Email
	return s.drafts.SaveDraft(ctx, d)
}

// Draft returns the administrator's saved draft
func (s *Service) Draft(ctx context.Context, admin models.Admin) (*models.Draft, error) {
	if s.drafts == nil {
		return nil, fmt.Errorf("%w: drafts", ErrNotConfigured)
	}
	d, err := s.drafts.GetDraft(ctx, admin.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrDraftNotFound
	}
	return d, err
}

// ParseAudience converts the wire form of an audience. Errors wrap
// ErrInvalidRequest.
func ParseAudience(which string, personTypes []string) (models.AudienceDescription, error) {
	pref, err := models.ParseEmailPreference(which)
	if err != nil {
		return models.AudienceDescription{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	types, err := models.ParsePersonTypes(personTypes)
	if err != nil {
		return models.AudienceDescription{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return models.AudienceDescription{Types: types, Preference: pref}, nil
}

func campaignID(requested string) string {
	if id := strings.TrimSpace(requested); id != "" {
		return id
	}
	return uuid.New().String()
}
