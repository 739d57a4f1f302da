// Package memory holds in-memory stores for tests and local runs
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/foxzi/alumnet/internal/audience"
	"github.com/foxzi/alumnet/internal/models"
	"github.com/foxzi/alumnet/internal/repository"
)

// PersonStore is an in-memory audience.PersonStore.
// It is safe for concurrent use.
type PersonStore struct {
	mu   sync.RWMutex
	byID map[string]models.Person
}

// NewPersonStore creates a store seeded with people
func NewPersonStore(people ...models.Person) *PersonStore {
	s := &PersonStore{byID: make(map[string]models.Person)}
	for _, p := range people {
		s.byID[p.ID] = p
	}
	return s
}

// Put inserts or replaces a person
func (s *PersonStore) Put(p models.Person) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[p.ID] = p
}

// Get returns one person by ID
func (s *PersonStore) Get(ctx context.Context, id string) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

// ListPeople returns one page ordered by ID
func (s *PersonStore) ListPeople(ctx context.Context, q audience.PersonQuery) ([]models.Person, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wanted := make(map[models.PersonType]bool, len(q.Types))
	for _, t := range q.Types {
		wanted[t] = true
	}

	s.mu.RLock()
	matched := make([]models.Person, 0, len(s.byID))
	for _, p := range s.byID {
		if p.ID <= q.AfterID {
			continue
		}
		if len(wanted) > 0 && !wanted[p.Type] {
			continue
		}
		matched = append(matched, p)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

var _ audience.PersonStore = (*PersonStore)(nil)
