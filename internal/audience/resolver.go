package audience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/foxzi/alumnet/internal/metrics"
	"github.com/foxzi/alumnet/internal/models"
)

// ErrInvalidAudience is returned when the description itself is malformed
var ErrInvalidAudience = errors.New("invalid audience")

// DefaultPageSize is used when Options.PageSize is not set
const DefaultPageSize = 500

// Options tunes a Resolver
type Options struct {
	PageSize        int
	ExpandComposite bool
}

// Resolver resolves audiences against a PersonStore
type Resolver struct {
	store    PersonStore
	pageSize int
	expand   bool
	logger   *slog.Logger
}

// Preview is the pre-flight view of an audience: the same recipients Resolve
// would return plus the people they came from
type Preview struct {
	Count      int                        `json:"count"`
	Recipients []models.ResolvedRecipient `json:"-"`
	Users      []models.AudienceUser      `json:"users"`
}

// NewResolver creates a resolver
func NewResolver(store PersonStore, opts Options, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Resolver{
		store:    store,
		pageSize: pageSize,
		expand:   opts.ExpandComposite,
		logger:   logger.With("component", "audience"),
	}
}

// Resolve returns the deduplicated recipients of aud in first-seen order.
// Store failures come back as *ResolutionError with a nil list.
func (r *Resolver) Resolve(ctx context.Context, aud models.AudienceDescription) ([]models.ResolvedRecipient, error) {
	p, err := r.resolve(ctx, aud, false)
	if err != nil {
		return nil, err
	}
	return p.Recipients, nil
}

// Preview runs the exact resolution Resolve runs and also reports which
// people contributed, so the displayed count cannot drift from the send
func (r *Resolver) Preview(ctx context.Context, aud models.AudienceDescription) (*Preview, error) {
	return r.resolve(ctx, aud, true)
}

func (r *Resolver) resolve(ctx context.Context, aud models.AudienceDescription, collectUsers bool) (*Preview, error) {
	if err := validate(aud); err != nil {
		return nil, err
	}

	types := aud.Types
	if r.expand {
		types = ExpandComposite(types)
	}

	result := &Preview{
		Recipients: []models.ResolvedRecipient{},
		Users:      []models.AudienceUser{},
	}
	seen := make(map[string]struct{})
	scanned := 0
	after := ""

	for {
		if err := ctx.Err(); err != nil {
			return nil, &ResolutionError{Err: err}
		}

		page, err := r.store.ListPeople(ctx, PersonQuery{
			Types:   types,
			AfterID: after,
			Limit:   r.pageSize,
		})
		if err != nil {
			r.logger.Error("person store query failed", "after_id", after, "error", err)
			metrics.ObserveResolution(0, err)
			return nil, &ResolutionError{Err: err}
		}

		for _, p := range page {
			scanned++
			contributed := false
			for _, addr := range SelectAddresses(p, aud.Preference) {
				key := addressKey(addr)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				result.Recipients = append(result.Recipients, models.ResolvedRecipient{
					PersonID: p.ID,
					Address:  addr,
				})
				contributed = true
			}
			if collectUsers && contributed {
				result.Users = append(result.Users, models.AudienceUser{
					ID:     p.ID,
					Name:   p.Name,
					Type:   p.Type,
					Email1: p.Email1,
					Email2: p.Email2,
				})
			}
		}

		if len(page) < r.pageSize {
			break
		}
		last := page[len(page)-1].ID
		if last == after {
			return nil, &ResolutionError{Err: fmt.Errorf("person store pagination did not advance past %q", after)}
		}
		after = last
	}

	result.Count = len(result.Recipients)
	metrics.ObserveResolution(result.Count, nil)
	r.logger.Debug("audience resolved",
		"types", types,
		"preference", aud.Preference,
		"people", scanned,
		"recipients", result.Count,
	)
	return result, nil
}

func validate(aud models.AudienceDescription) error {
	switch aud.Preference {
	case models.PreferPrimary, models.PreferSecondary, models.PreferBoth:
	default:
		return fmt.Errorf("%w: preference %q", ErrInvalidAudience, aud.Preference)
	}
	for _, t := range aud.Types {
		if !t.Valid() {
			return fmt.Errorf("%w: person type %q", ErrInvalidAudience, t)
		}
	}
	return nil
}
