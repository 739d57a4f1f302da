package memory

import (
	"testing"

	"github.com/foxzi/alumnet/internal/audience"
	"github.com/foxzi/alumnet/internal/models"
	"github.com/foxzi/alumnet/internal/repository/contracttest"
)

func TestContract_PersonStore(t *testing.T) {
	contracttest.RunPersonStore(t, func(t *testing.T, people []models.Person) (audience.PersonStore, func()) {
		return NewPersonStore(people...), nil
	})
}
