package audience

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/foxzi/alumnet/internal/models"
)

// fakeStore pages over an in-memory slice the way the SQL store does
type fakeStore struct {
	people  []models.Person
	failAt  int // fail on the n-th call (1-based); 0 never fails
	calls   int
	queries []PersonQuery
}

func (s *fakeStore) ListPeople(ctx context.Context, q PersonQuery) ([]models.Person, error) {
	s.calls++
	s.queries = append(s.queries, q)
	if s.failAt > 0 && s.calls >= s.failAt {
		return nil, errors.New("connection refused")
	}

	sorted := append([]models.Person(nil), s.people...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var out []models.Person
	for _, p := range sorted {
		if p.ID <= q.AfterID {
			continue
		}
		if len(q.Types) > 0 && !hasType(q.Types, p.Type) {
			continue
		}
		out = append(out, p)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func hasType(types []models.PersonType, t models.PersonType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

// scenarioStore is the store used by the documented scenarios:
// three alumni (two sharing a@x.com) and two staff
func scenarioStore() *fakeStore {
	return &fakeStore{people: []models.Person{
		{ID: "p1", Type: models.PersonAlumni, Email1: "a@x.com"},
		{ID: "p2", Type: models.PersonAlumni, Email1: "a@x.com"},
		{ID: "p3", Type: models.PersonAlumni, Email1: "b@x.com"},
		{ID: "p4", Type: models.PersonStaff, Email1: "s1@x.com"},
		{ID: "p5", Type: models.PersonStaff, Email1: "s2@x.com"},
	}}
}

func addresses(rs []models.ResolvedRecipient) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Address)
	}
	return out
}

func TestResolve_ScenarioAlumniPrimary(t *testing.T) {
	r := NewResolver(scenarioStore(), Options{}, nil)

	got, err := r.Resolve(context.Background(), models.AudienceDescription{
		Types:      []models.PersonType{models.PersonAlumni},
		Preference: models.PreferPrimary,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	addrs := addresses(got)
	if len(addrs) != 2 || addrs[0] != "a@x.com" || addrs[1] != "b@x.com" {
		t.Errorf("Resolve() = %v, want [a@x.com b@x.com]", addrs)
	}
	if got[0].PersonID != "p1" {
		t.Errorf("first recipient PersonID = %q, want first-seen p1", got[0].PersonID)
	}
}

func TestResolve_DeduplicatesAcrossPeopleCaseInsensitive(t *testing.T) {
	store := &fakeStore{people: []models.Person{
		{ID: "1", Type: models.PersonFellow, Email1: "Shared@X.com"},
		{ID: "2", Type: models.PersonAlumni, Email1: "shared@x.com"},
		{ID: "3", Type: models.PersonStaff, Email1: "other@x.com", Email2: "shared@x.com"},
	}}
	r := NewResolver(store, Options{}, nil)

	for _, types := range [][]models.PersonType{
		nil,
		{models.PersonFellow, models.PersonAlumni},
		{models.PersonFellow, models.PersonAlumni, models.PersonStaff},
	} {
		got, err := r.Resolve(context.Background(), models.AudienceDescription{
			Types:      types,
			Preference: models.PreferBoth,
		})
		if err != nil {
			t.Fatalf("Resolve(%v) error = %v", types, err)
		}
		shared := 0
		for _, rc := range got {
			if addressKey(rc.Address) == "shared@x.com" {
				shared++
			}
		}
		if shared != 1 {
			t.Errorf("Resolve(%v) contains shared address %d times, want 1", types, shared)
		}
	}
}

func TestResolve_BothSameAddressCollapses(t *testing.T) {
	store := &fakeStore{people: []models.Person{
		{ID: "1", Type: models.PersonAlumni, Email1: "a@x.com", Email2: "a@x.com"},
	}}
	r := NewResolver(store, Options{}, nil)

	got, err := r.Resolve(context.Background(), models.AudienceDescription{Preference: models.PreferBoth})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Resolve() = %v, want a single recipient", addresses(got))
	}
}

func TestResolve_EmptyTagsMatchesAllTags(t *testing.T) {
	store := &fakeStore{people: []models.Person{
		{ID: "1", Type: models.PersonFellow, Email1: "f@x.com"},
		{ID: "2", Type: models.PersonStaffAlumni, Email1: "sa@x.com"},
		{ID: "3", Type: models.PersonGeneral, Email1: "g@x.com"},
		{ID: "4", Type: models.PersonLeadership, Email1: "l@x.com"},
		{ID: "5", Type: models.PersonAdmin},
	}}
	r := NewResolver(store, Options{PageSize: 2}, nil)
	ctx := context.Background()

	unrestricted, err := r.Resolve(ctx, models.AudienceDescription{Preference: models.PreferPrimary})
	if err != nil {
		t.Fatalf("Resolve(all) error = %v", err)
	}
	explicit, err := r.Resolve(ctx, models.AudienceDescription{
		Types:      models.AllPersonTypes,
		Preference: models.PreferPrimary,
	})
	if err != nil {
		t.Fatalf("Resolve(explicit) error = %v", err)
	}

	a, b := addresses(unrestricted), addresses(explicit)
	sort.Strings(a)
	sort.Strings(b)
	if len(a) != 4 || len(a) != len(b) {
		t.Fatalf("unrestricted = %v, explicit = %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("unrestricted = %v, explicit = %v", a, b)
			break
		}
	}
}

func TestResolve_ExactTagMatchByDefault(t *testing.T) {
	store := &fakeStore{people: []models.Person{
		{ID: "1", Type: models.PersonStaff, Email1: "s@x.com"},
		{ID: "2", Type: models.PersonStaffAlumni, Email1: "sa@x.com"},
	}}
	aud := models.AudienceDescription{
		Types:      []models.PersonType{models.PersonStaff},
		Preference: models.PreferPrimary,
	}

	exact, err := NewResolver(store, Options{}, nil).Resolve(context.Background(), aud)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(exact) != 1 || exact[0].Address != "s@x.com" {
		t.Errorf("exact Resolve() = %v, want [s@x.com]", addresses(exact))
	}

	expanded, err := NewResolver(store, Options{ExpandComposite: true}, nil).Resolve(context.Background(), aud)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(expanded) != 2 {
		t.Errorf("expanded Resolve() = %v, want both staff addresses", addresses(expanded))
	}
}

func TestResolve_NoMatchesIsEmptyNotError(t *testing.T) {
	r := NewResolver(scenarioStore(), Options{}, nil)

	got, err := r.Resolve(context.Background(), models.AudienceDescription{
		Types:      []models.PersonType{models.PersonAdmin},
		Preference: models.PreferPrimary,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Resolve() = %#v, want empty non-nil slice", got)
	}
}

func TestResolve_StoreFailureReturnsNoPartialList(t *testing.T) {
	store := scenarioStore()
	store.failAt = 2
	r := NewResolver(store, Options{PageSize: 1}, nil)

	got, err := r.Resolve(context.Background(), models.AudienceDescription{Preference: models.PreferPrimary})
	if err == nil {
		t.Fatal("Resolve() expected error")
	}
	if got != nil {
		t.Errorf("Resolve() returned partial list %v", addresses(got))
	}
	if !errors.Is(err, ErrResolution) {
		t.Errorf("errors.Is(err, ErrResolution) = false for %v", err)
	}
	var re *ResolutionError
	if !errors.As(err, &re) {
		t.Errorf("errors.As(*ResolutionError) = false for %v", err)
	}
}

func TestResolve_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewResolver(scenarioStore(), Options{}, nil).Resolve(ctx, models.AudienceDescription{Preference: models.PreferPrimary})
	if !errors.Is(err, ErrResolution) || !errors.Is(err, context.Canceled) {
		t.Errorf("Resolve() error = %v, want resolution error wrapping context.Canceled", err)
	}
}

func TestResolve_InvalidAudience(t *testing.T) {
	r := NewResolver(scenarioStore(), Options{}, nil)
	tests := []models.AudienceDescription{
		{Preference: "nope"},
		{Types: []models.PersonType{"WIZARD"}, Preference: models.PreferPrimary},
	}
	for _, aud := range tests {
		_, err := r.Resolve(context.Background(), aud)
		if !errors.Is(err, ErrInvalidAudience) {
			t.Errorf("Resolve(%+v) error = %v, want ErrInvalidAudience", aud, err)
		}
		if errors.Is(err, ErrResolution) {
			t.Errorf("Resolve(%+v) should not be a resolution error", aud)
		}
	}
}

func TestResolve_PagesThroughStore(t *testing.T) {
	store := scenarioStore()
	r := NewResolver(store, Options{PageSize: 2}, nil)

	got, err := r.Resolve(context.Background(), models.AudienceDescription{Preference: models.PreferPrimary})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(got) != 4 {
		t.Errorf("Resolve() = %v, want 4 distinct addresses", addresses(got))
	}
	if store.calls != 3 {
		t.Errorf("store calls = %d, want 3 pages", store.calls)
	}
	if store.queries[1].AfterID != "p2" || store.queries[2].AfterID != "p4" {
		t.Errorf("unexpected keyset cursors: %+v", store.queries)
	}
}

// foldedStore orders IDs case-insensitively, like a database collation
// other than C
type foldedStore struct {
	people []models.Person
}

func (s *foldedStore) ListPeople(ctx context.Context, q PersonQuery) ([]models.Person, error) {
	sorted := append([]models.Person(nil), s.people...)
	sort.Slice(sorted, func(i, j int) bool { return strings.ToLower(sorted[i].ID) < strings.ToLower(sorted[j].ID) })

	var out []models.Person
	for _, p := range sorted {
		if q.AfterID != "" && strings.ToLower(p.ID) <= strings.ToLower(q.AfterID) {
			continue
		}
		out = append(out, p)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func TestResolve_PagesInStoreOrder(t *testing.T) {
	store := &foldedStore{people: []models.Person{
		{ID: "alice", Type: models.PersonAlumni, Email1: "alice@x.com"},
		{ID: "Bob", Type: models.PersonAlumni, Email1: "bob@x.com"},
		{ID: "carol", Type: models.PersonAlumni, Email1: "carol@x.com"},
	}}

	got, err := NewResolver(store, Options{PageSize: 1}, nil).Resolve(context.Background(),
		models.AudienceDescription{Preference: models.PreferPrimary})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := []string{"alice@x.com", "bob@x.com", "carol@x.com"}
	if got := addresses(got); !equalStrings(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}
}

// repeatingStore returns the same full page forever
type repeatingStore struct{}

func (repeatingStore) ListPeople(ctx context.Context, q PersonQuery) ([]models.Person, error) {
	return []models.Person{{ID: "p1", Type: models.PersonAlumni, Email1: "a@x.com"}}, nil
}

func TestResolve_StalledPaginationFails(t *testing.T) {
	_, err := NewResolver(repeatingStore{}, Options{PageSize: 1}, nil).Resolve(context.Background(),
		models.AudienceDescription{Preference: models.PreferPrimary})
	if !errors.Is(err, ErrResolution) {
		t.Fatalf("Resolve() error = %v, want ErrResolution", err)
	}
}

func equalStrings(a, b []string) bool {
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

func TestPreview_MatchesResolve(t *testing.T) {
	r := NewResolver(scenarioStore(), Options{}, nil)
	aud := models.AudienceDescription{
		Types:      []models.PersonType{models.PersonAlumni},
		Preference: models.PreferPrimary,
	}

	p, err := r.Preview(context.Background(), aud)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	resolved, err := r.Resolve(context.Background(), aud)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if p.Count != len(resolved) || p.Count != 2 {
		t.Errorf("Preview().Count = %d, Resolve() = %d, want 2", p.Count, len(resolved))
	}
	if len(p.Users) != 2 || p.Users[0].ID != "p1" || p.Users[1].ID != "p3" {
		t.Errorf("Preview().Users = %+v, want p1 and p3", p.Users)
	}
}
