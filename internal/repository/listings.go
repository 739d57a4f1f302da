package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/foxzi/alumnet/internal/db"
	"github.com/foxzi/alumnet/internal/models"
)

// ListingRepository stores the four listing kinds in their own tables
type ListingRepository struct {
	db *db.DB
}

func NewListingRepository(d *db.DB) *ListingRepository {
	return &ListingRepository{db: d}
}

// GetListing loads the listing ref points at. Unknown rows return ErrNotFound.
func (r *ListingRepository) GetListing(ctx context.Context, ref models.ListingRef) (models.Listing, error) {
	var (
		listing models.Listing
		err     error
	)
	switch ref.Type {
	case models.ListingJobPosting:
		listing, err = r.getJobPosting(ctx, ref.ID)
	case models.ListingEvent:
		listing, err = r.getEvent(ctx, ref.ID)
	case models.ListingOpportunity:
		listing, err = r.getOpportunity(ctx, ref.ID)
	case models.ListingPost:
		listing, err = r.getPost(ctx, ref.ID)
	default:
		return nil, fmt.Errorf("unsupported listing type %q", ref.Type)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", ref.Type, ref.ID, err)
	}
	return listing, nil
}

func (r *ListingRepository) getJobPosting(ctx context.Context, id string) (*models.JobPosting, error) {
	var j models.JobPosting
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, title, company, location, description, apply_url, created_by, created_at
		FROM job_postings WHERE id = ?
	`), id).Scan(&j.ID, &j.Title, &j.Company, &j.Location, &j.Description, &j.ApplyURL, &j.CreatedBy, &j.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *ListingRepository) getEvent(ctx context.Context, id string) (*models.Event, error) {
	var e models.Event
	var startsAt sql.NullTime
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, title, location, description, starts_at, url, created_by, created_at
		FROM events WHERE id = ?
	`), id).Scan(&e.ID, &e.Title, &e.Location, &e.Description, &startsAt, &e.URL, &e.CreatedBy, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if startsAt.Valid {
		e.StartsAt = startsAt.Time
	}
	return &e, nil
}

func (r *ListingRepository) getOpportunity(ctx context.Context, id string) (*models.Opportunity, error) {
	var o models.Opportunity
	var deadline sql.NullTime
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, title, organization, description, deadline, url, created_by, created_at
		FROM opportunities WHERE id = ?
	`), id).Scan(&o.ID, &o.Title, &o.Organization, &o.Description, &deadline, &o.URL, &o.CreatedBy, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	if deadline.Valid {
		t := deadline.Time
		o.Deadline = &t
	}
	return &o, nil
}

func (r *ListingRepository) getPost(ctx context.Context, id string) (*models.Post, error) {
	var p models.Post
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, title, content, author_id, created_at
		FROM posts WHERE id = ?
	`), id).Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ListingRepository) CreateJobPosting(ctx context.Context, j *models.JobPosting) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	j.CreatedAt = now()
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO job_postings (id, title, company, location, description, apply_url, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), j.ID, j.Title, j.Company, j.Location, j.Description, j.ApplyURL, j.CreatedBy, j.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job posting: %w", err)
	}
	return nil
}

func (r *ListingRepository) CreateEvent(ctx context.Context, e *models.Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.CreatedAt = now()
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO events (id, title, location, description, starts_at, url, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), e.ID, e.Title, e.Location, e.Description, nullTime(e.StartsAt), e.URL, e.CreatedBy, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (r *ListingRepository) CreateOpportunity(ctx context.Context, o *models.Opportunity) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	o.CreatedAt = now()
	var deadline sql.NullTime
	if o.Deadline != nil {
		deadline = nullTime(*o.Deadline)
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO opportunities (id, title, organization, description, deadline, url, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), o.ID, o.Title, o.Organization, o.Description, deadline, o.URL, o.CreatedBy, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create opportunity: %w", err)
	}
	return nil
}

func (r *ListingRepository) CreatePost(ctx context.Context, p *models.Post) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = now()
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO posts (id, title, content, author_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`), p.ID, p.Title, p.Content, p.AuthorID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
