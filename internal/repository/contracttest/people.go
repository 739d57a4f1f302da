// Package contracttest holds behavior every audience.PersonStore
// implementation must share
package contracttest

import (
	"context"
	"testing"

	"github.com/foxzi/alumnet/internal/audience"
	"github.com/foxzi/alumnet/internal/models"
)

// PersonStoreFactory returns a store seeded with people and an optional
// cleanup func
type PersonStoreFactory func(t *testing.T, people []models.Person) (audience.PersonStore, func())

// Seed is the shared fixture: IDs are chosen so lexical order is stable
var Seed = []models.Person{
	{ID: "p01", Name: "Ada", Type: models.PersonAlumni, Email1: "a@x.com"},
	{ID: "p02", Name: "Ben", Type: models.PersonAlumni, Email1: "a@x.com", Email2: "ben@home.test"},
	{ID: "p03", Name: "Cy", Type: models.PersonAlumni, Email1: "b@x.com"},
	{ID: "p04", Name: "Di", Type: models.PersonStaff, Email1: "di@x.com"},
	{ID: "p05", Name: "Ed", Type: models.PersonStaff, Email1: "ed@x.com"},
	{ID: "p06", Name: "Flo", Type: models.PersonStaffAlumni, Email1: "flo@x.com"},
	{ID: "p07", Name: "Gus", Type: models.PersonFellow, Email2: "gus@home.test"},
}

// RunPersonStore checks filtering, ordering and keyset paging
func RunPersonStore(t *testing.T, newStore PersonStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t, Seed)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	t.Run("all types ordered by id", func(t *testing.T) {
		got, err := store.ListPeople(ctx, audience.PersonQuery{Limit: 100})
		if err != nil {
			t.Fatalf("ListPeople: %v", err)
		}
		if len(got) != len(Seed) {
			t.Fatalf("got %d people, want %d", len(got), len(Seed))
		}
		for i := 1; i < len(got); i++ {
			if got[i-1].ID >= got[i].ID {
				t.Fatalf("not ordered: %s before %s", got[i-1].ID, got[i].ID)
			}
		}
	})

	t.Run("exact type filter", func(t *testing.T) {
		got, err := store.ListPeople(ctx, audience.PersonQuery{Types: []models.PersonType{models.PersonAlumni}, Limit: 100})
		if err != nil {
			t.Fatalf("ListPeople: %v", err)
		}
		want := []string{"p01", "p02", "p03"}
		if ids := idsOf(got); !equal(ids, want) {
			t.Fatalf("ids = %v, want %v (STAFF_ALUMNI must not match ALUMNI)", ids, want)
		}
	})

	t.Run("multiple types", func(t *testing.T) {
		got, err := store.ListPeople(ctx, audience.PersonQuery{
			Types: []models.PersonType{models.PersonStaff, models.PersonFellow},
			Limit: 100,
		})
		if err != nil {
			t.Fatalf("ListPeople: %v", err)
		}
		if ids := idsOf(got); !equal(ids, []string{"p04", "p05", "p07"}) {
			t.Fatalf("ids = %v", ids)
		}
	})

	t.Run("no matches", func(t *testing.T) {
		got, err := store.ListPeople(ctx, audience.PersonQuery{Types: []models.PersonType{models.PersonAdmin}, Limit: 100})
		if err != nil {
			t.Fatalf("ListPeople: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("got %d people, want 0", len(got))
		}
	})

	t.Run("keyset paging", func(t *testing.T) {
		var ids []string
		after := ""
		for range 10 {
			page, err := store.ListPeople(ctx, audience.PersonQuery{AfterID: after, Limit: 3})
			if err != nil {
				t.Fatalf("ListPeople: %v", err)
			}
			ids = append(ids, idsOf(page)...)
			if len(page) < 3 {
				break
			}
			after = page[len(page)-1].ID
		}
		if !equal(ids, idsOf(Seed)) {
			t.Fatalf("paged ids = %v", ids)
		}
	})

	t.Run("fields round trip", func(t *testing.T) {
		got, err := store.ListPeople(ctx, audience.PersonQuery{AfterID: "p01", Limit: 1})
		if err != nil || len(got) != 1 {
			t.Fatalf("ListPeople: %v, %d", err, len(got))
		}
		p := got[0]
		if p.ID != "p02" || p.Name != "Ben" || p.Type != models.PersonAlumni || p.Email1 != "a@x.com" || p.Email2 != "ben@home.test" {
			t.Fatalf("unexpected person: %+v", p)
		}
	})

	// runs last: it reseeds the backing store
	t.Run("mixed-case ids page bytewise", func(t *testing.T) {
		mixed := []models.Person{
			{ID: "alice", Type: models.PersonAlumni, Email1: "alice@x.com"},
			{ID: "Bob", Type: models.PersonAlumni, Email1: "bob@x.com"},
			{ID: "carol", Type: models.PersonAlumni, Email1: "carol@x.com"},
			{ID: "Dan", Type: models.PersonAlumni, Email1: "dan@x.com"},
		}
		mixedStore, cleanup := newStore(t, mixed)
		if cleanup != nil {
			t.Cleanup(cleanup)
		}

		var ids []string
		after := ""
		for range 10 {
			page, err := mixedStore.ListPeople(ctx, audience.PersonQuery{AfterID: after, Limit: 1})
			if err != nil {
				t.Fatalf("ListPeople: %v", err)
			}
			if len(page) == 0 {
				break
			}
			ids = append(ids, idsOf(page)...)
			after = page[0].ID
		}
		if want := []string{"Bob", "Dan", "alice", "carol"}; !equal(ids, want) {
			t.Fatalf("paged ids = %v, want %v", ids, want)
		}

		r := audience.NewResolver(mixedStore, audience.Options{PageSize: 1}, nil)
		got, err := r.Resolve(ctx, models.AudienceDescription{Preference: models.PreferPrimary})
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if len(got) != len(mixed) {
			t.Fatalf("resolved %d recipients, want %d", len(got), len(mixed))
		}
	})
}

func idsOf(people []models.Person) []string {
	out := make([]string, 0, len(people))
	for _, p := range people {
		out = append(out, p.ID)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
