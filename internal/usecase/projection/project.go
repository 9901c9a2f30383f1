package projection

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/nearby/internal/db"
	"github.com/kailas-cloud/nearby/internal/domain"
	"github.com/kailas-cloud/nearby/internal/domain/event"
	"github.com/kailas-cloud/nearby/internal/domain/provider"
)

// project computes the changes e makes to cur. cur is nil when the provider has no row.
// Deactivated and Deleted for an unknown provider commit only the sequence;
// any other non-activation event for an unknown provider fails with ErrProviderNotIndexed.
func project(cur *provider.SearchableProvider, e *event.Event, at time.Time) (*db.Changes, error) {
	c := db.NewChanges(e.ProviderID, e.Sequence)

	if cur == nil {
		switch p := e.Payload.(type) {
		case event.Activated:
			row, err := provider.New(e.ProviderID, p.Name, *p.Location, at)
			if err != nil {
				return nil, domain.Validationf("%s: %v", e.Kind(), err)
			}
			if row, err = refresh(&row, p, at); err != nil {
				return nil, domain.Validationf("%s: %v", e.Kind(), err)
			}
			return c, c.Add(row)
		case event.Deactivated, event.Deleted:
			return c, nil
		default:
			return nil, fmt.Errorf("%s for %s: %w", e.Kind(), e.ProviderID, domain.ErrProviderNotIndexed)
		}
	}

	if _, ok := e.Payload.(event.Deleted); ok {
		return c, c.Delete(cur.ID())
	}
	next, err := mutate(cur, e.Payload, at)
	if err != nil {
		return nil, domain.Validationf("%s: %v", e.Kind(), err)
	}
	return c, c.Update(next)
}

func mutate(cur *provider.SearchableProvider, payload event.Payload, at time.Time) (provider.SearchableProvider, error) {
	switch p := payload.(type) {
	case event.Activated:
		return refresh(cur, p, at)
	case event.ProfileUpdated:
		next := *cur
		if p.Name != nil {
			var err error
			if next, err = next.WithName(*p.Name, at); err != nil {
				return next, err
			}
		}
		if p.City != nil || p.State != nil {
			next = next.WithLocality(orElse(p.City, next.City()), orElse(p.State, next.State()), at)
		}
		return next, nil
	case event.LocationChanged:
		return cur.WithLocation(*p.Location, at)
	case event.ServiceAdded:
		return cur.WithService(p.ServiceID, at)
	case event.ServiceRemoved:
		return cur.WithoutService(p.ServiceID, at), nil
	case event.RatingChanged:
		return cur.WithRating(p.AverageRating, p.TotalReviews, at)
	case event.TierChanged:
		return cur.WithTier(p.NewTier, at)
	case event.Deactivated:
		return cur.WithActive(false, at), nil
	default:
		return provider.SearchableProvider{}, fmt.Errorf("unsupported payload %T", payload)
	}
}

// refresh re-applies an activation to an existing row. Supplied optional
// fields overwrite, omitted ones are kept. Services and rating are untouched.
func refresh(cur *provider.SearchableProvider, a event.Activated, at time.Time) (provider.SearchableProvider, error) {
	next, err := cur.WithName(a.Name, at)
	if err != nil {
		return next, err
	}
	if next, err = next.WithLocation(*a.Location, at); err != nil {
		return next, err
	}
	if a.City != nil || a.State != nil {
		next = next.WithLocality(orElse(a.City, next.City()), orElse(a.State, next.State()), at)
	}
	if a.Tier != nil {
		if next, err = next.WithTier(*a.Tier, at); err != nil {
			return next, err
		}
	}
	return next.WithActive(true, at), nil
}

func orElse(v *string, fallback string) string {
	if v != nil {
		return *v
	}
	return fallback
}
