package memory

import (
	"context"
	"sync"

	"github.com/foxzi/alumnet/internal/models"
	"github.com/foxzi/alumnet/internal/repository"
)

// ListingStore keeps listings keyed by type and ID
type ListingStore struct {
	mu       sync.RWMutex
	listings map[models.ListingRef]models.Listing
}

func NewListingStore(listings ...models.Listing) *ListingStore {
	s := &ListingStore{listings: make(map[models.ListingRef]models.Listing)}
	for _, l := range listings {
		s.Put(l)
	}
	return s
}

func (s *ListingStore) Put(l models.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[models.ListingRef{Type: l.ListingType(), ID: l.ListingID()}] = l
}

func (s *ListingStore) GetListing(ctx context.Context, ref models.ListingRef) (models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[ref]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return l, nil
}
