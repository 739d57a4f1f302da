package audience

import (
	"context"

	"github.com/foxzi/alumnet/internal/models"
)

// PersonQuery selects one page of people.
// Results are ordered by ID ascending in byte order; AfterID is the last
// ID of the previous page. An empty Types slice matches every person.
type PersonQuery struct {
	Types   []models.PersonType
	AfterID string
	Limit   int
}

// PersonStore is the read-only view of the people table the resolver needs
type PersonStore interface {
	ListPeople(ctx context.Context, q PersonQuery) ([]models.Person, error)
}
