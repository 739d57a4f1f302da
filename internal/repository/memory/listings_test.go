package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/foxzi/alumnet/internal/models"
	"github.com/foxzi/alumnet/internal/repository"
)

func TestListingStore(t *testing.T) {
	s := NewListingStore(
		&models.Event{ID: "e1", Title: "Reunion"},
		&models.Post{ID: "e1", Title: "Same ID, other type"},
	)
	ctx := context.Background()

	got, err := s.GetListing(ctx, models.ListingRef{Type: models.ListingEvent, ID: "e1"})
	if err != nil {
		t.Fatalf("GetListing() error = %v", err)
	}
	if got.Fields()["title"] != "Reunion" {
		t.Errorf("title = %q", got.Fields()["title"])
	}

	got, err = s.GetListing(ctx, models.ListingRef{Type: models.ListingPost, ID: "e1"})
	if err != nil {
		t.Fatalf("GetListing() error = %v", err)
	}
	if got.ListingType() != models.ListingPost {
		t.Errorf("ListingType() = %s, want POST", got.ListingType())
	}

	_, err = s.GetListing(ctx, models.ListingRef{Type: models.ListingJobPosting, ID: "e1"})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("GetListing() error = %v, want ErrNotFound", err)
	}
}

func TestPersonStore_Get(t *testing.T) {
	s := NewPersonStore(models.Person{ID: "p1", Email1: "a@x.com", Type: models.PersonAlumni})
	p, err := s.Get(context.Background(), "p1")
	if err != nil || p.Email1 != "a@x.com" {
		t.Fatalf("Get() = %+v, %v", p, err)
	}
	if _, err := s.Get(context.Background(), "p2"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}
