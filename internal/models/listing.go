package models

import (
	"fmt"
	"strings"
	"time"
)

// ListingType identifies the kind of listing a notification is about
type ListingType string

const (
	ListingJobPosting  ListingType = "JOB_POSTING"
	ListingEvent       ListingType = "EVENT"
	ListingOpportunity ListingType = "OPPORTUNITY"
	ListingPost        ListingType = "POST"
	// ListingCustom marks free-form broadcasts written in the admin composer
	ListingCustom ListingType = "CUSTOM"
)

// ParseListingType parses one of the four listing types a screen may send
func ParseListingType(s string) (ListingType, error) {
	t := ListingType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case ListingJobPosting, ListingEvent, ListingOpportunity, ListingPost:
		return t, nil
	}
	return "", fmt.Errorf("unknown listing type %q", s)
}

// ListingRef points at a listing without loading it
type ListingRef struct {
	Type ListingType `json:"type"`
	ID   string      `json:"id"`
}

// Listing is implemented by JobPosting, Event, Opportunity and Post
type Listing interface {
	ListingType() ListingType
	ListingID() string
	CreatorID() string
	// Fields returns the renderable values keyed by template variable name
	Fields() map[string]string
}

type JobPosting struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	ApplyURL    string    `json:"apply_url"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

func (j *JobPosting) ListingType() ListingType { return ListingJobPosting }
func (j *JobPosting) ListingID() string        { return j.ID }
func (j *JobPosting) CreatorID() string        { return j.CreatedBy }

func (j *JobPosting) Fields() map[string]string {
	return map[string]string{
		"title":       j.Title,
		"company":     j.Company,
		"location":    j.Location,
		"description": j.Description,
		"url":         j.ApplyURL,
	}
}

type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"starts_at"`
	URL         string    `json:"url"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

func (e *Event) ListingType() ListingType { return ListingEvent }
func (e *Event) ListingID() string        { return e.ID }
func (e *Event) CreatorID() string        { return e.CreatedBy }

func (e *Event) Fields() map[string]string {
	starts := ""
	if !e.StartsAt.IsZero() {
		starts = e.StartsAt.Format("Mon, 02 Jan 2006 15:04 MST")
	}
	return map[string]string{
		"title":       e.Title,
		"location":    e.Location,
		"description": e.Description,
		"starts_at":   starts,
		"url":         e.URL,
	}
}

type Opportunity struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Organization string     `json:"organization"`
	Description  string     `json:"description"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	URL          string     `json:"url"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (o *Opportunity) ListingType() ListingType { return ListingOpportunity }
func (o *Opportunity) ListingID() string        { return o.ID }
func (o *Opportunity) CreatorID() string        { return o.CreatedBy }

func (o *Opportunity) Fields() map[string]string {
	deadline := ""
	if o.Deadline != nil {
		deadline = o.Deadline.Format("02 Jan 2006")
	}
	return map[string]string{
		"title":        o.Title,
		"organization": o.Organization,
		"description":  o.Description,
		"deadline":     deadline,
		"url":          o.URL,
	}
}

type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Post) ListingType() ListingType { return ListingPost }
func (p *Post) ListingID() string        { return p.ID }
func (p *Post) CreatorID() string        { return p.AuthorID }

func (p *Post) Fields() map[string]string {
	return map[string]string{
		"title":   p.Title,
		"content": p.Content,
	}
}
