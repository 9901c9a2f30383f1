package provider

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/nearby/internal/domain/geo"
)

// Rating bounds.
const (
	MinRating = 0.0
	MaxRating = 5.0
)

// MaxNameLength is the maximum display name length in bytes.
const MaxNameLength = 256

// SearchableProvider is the discovery projection of one provider (immutable value object).
// Mutators return a modified copy with UpdatedAt advanced.
type SearchableProvider struct {
	id            string
	providerID    string
	name          string
	location      geo.Point
	tier          Tier
	averageRating float64
	totalReviews  int
	serviceIDs    []string
	city          string
	state         string
	active        bool
	createdAt     time.Time
	updatedAt     time.Time
}

// State is the full persisted state of a row, used to hydrate from storage.
type State struct {
	ID            string
	ProviderID    string
	Name          string
	Location      geo.Point
	Tier          Tier
	AverageRating float64
	TotalReviews  int
	ServiceIDs    []string
	City          string
	State         string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// New validates and creates an active row with a fresh row ID.
func New(providerID, name string, loc geo.Point, now time.Time) (SearchableProvider, error) {
	if strings.TrimSpace(providerID) == "" {
		return SearchableProvider{}, fmt.Errorf("provider ID is required")
	}
	if err := validateName(name); err != nil {
		return SearchableProvider{}, err
	}
	if !loc.Valid() {
		return SearchableProvider{}, fmt.Errorf("invalid location %s", loc)
	}
	return SearchableProvider{
		id:         uuid.NewString(),
		providerID: providerID,
		name:       name,
		location:   loc,
		tier:       TierFree,
		serviceIDs: []string{},
		active:     true,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// Reconstruct creates a SearchableProvider without validation (storage hydration).
func Reconstruct(s State) SearchableProvider {
	services := NormalizeServiceIDs(s.ServiceIDs)
	return SearchableProvider{
		id: s.ID, providerID: s.ProviderID, name: s.Name, location: s.Location,
		tier: s.Tier, averageRating: s.AverageRating, totalReviews: s.TotalReviews,
		serviceIDs: services, city: s.City, state: s.State, active: s.Active,
		createdAt: s.CreatedAt, updatedAt: s.UpdatedAt,
	}
}

// ID returns the row identifier.
func (p *SearchableProvider) ID() string { return p.id }

// ProviderID returns the authoritative provider identity.
func (p *SearchableProvider) ProviderID() string { return p.providerID }

// Name returns the display name.
func (p *SearchableProvider) Name() string { return p.name }

// Location returns the provider location.
func (p *SearchableProvider) Location() geo.Point { return p.location }

// Tier returns the subscription tier.
func (p *SearchableProvider) Tier() Tier { return p.tier }

// AverageRating returns the average review rating in [0,5].
func (p *SearchableProvider) AverageRating() float64 { return p.averageRating }

// TotalReviews returns the review count.
func (p *SearchableProvider) TotalReviews() int { return p.totalReviews }

// ServiceIDs returns the sorted offered service IDs. Callers must not modify it.
func (p *SearchableProvider) ServiceIDs() []string { return p.serviceIDs }

// City returns the city label.
func (p *SearchableProvider) City() string { return p.city }

// State returns the state label.
func (p *SearchableProvider) State() string { return p.state }

// Active reports whether the row is searchable.
func (p *SearchableProvider) Active() bool { return p.active }

// CreatedAt returns the creation time.
func (p *SearchableProvider) CreatedAt() time.Time { return p.createdAt }

// UpdatedAt returns the last mutation time.
func (p *SearchableProvider) UpdatedAt() time.Time { return p.updatedAt }

// Snapshot returns the full state of the row.
func (p *SearchableProvider) Snapshot() State {
	return State{
		ID: p.id, ProviderID: p.providerID, Name: p.name, Location: p.location,
		Tier: p.tier, AverageRating: p.averageRating, TotalReviews: p.totalReviews,
		ServiceIDs: p.serviceIDs, City: p.city, State: p.state, Active: p.active,
		CreatedAt: p.createdAt, UpdatedAt: p.updatedAt,
	}
}

// HasService reports whether the provider offers serviceID.
func (p *SearchableProvider) HasService(serviceID string) bool {
	for _, s := range p.serviceIDs {
		if s == serviceID {
			return true
		}
	}
	return false
}

// WithName returns a copy with the display name replaced.
func (p *SearchableProvider) WithName(name string, now time.Time) (SearchableProvider, error) {
	c := *p
	if err := validateName(name); err != nil {
		return SearchableProvider{}, err
	}
	c.name = name
	c.updatedAt = now
	return c, nil
}

// WithLocality returns a copy with city and state replaced.
func (p *SearchableProvider) WithLocality(city, state string, now time.Time) SearchableProvider {
	c := *p
	c.city = city
	c.state = state
	c.updatedAt = now
	return c
}

// WithLocation returns a copy moved to loc.
func (p *SearchableProvider) WithLocation(loc geo.Point, now time.Time) (SearchableProvider, error) {
	c := *p
	if !loc.Valid() {
		return SearchableProvider{}, fmt.Errorf("invalid location %s", loc)
	}
	c.location = loc
	c.updatedAt = now
	return c, nil
}

// WithTier returns a copy with the tier replaced.
func (p *SearchableProvider) WithTier(t Tier, now time.Time) (SearchableProvider, error) {
	c := *p
	if !t.IsValid() {
		return SearchableProvider{}, fmt.Errorf("unknown tier %d", int(t))
	}
	c.tier = t
	c.updatedAt = now
	return c, nil
}

// WithRating returns a copy with the rating aggregate replaced.
// Rating must lie in [0,5] and reviews must be non-negative.
func (p *SearchableProvider) WithRating(avg float64, reviews int, now time.Time) (SearchableProvider, error) {
	c := *p
	if err := ValidateRating(avg, reviews); err != nil {
		return SearchableProvider{}, err
	}
	c.averageRating = avg
	c.totalReviews = reviews
	c.updatedAt = now
	return c, nil
}

// WithService returns a copy offering serviceID. Adding a present ID is a no-op apart from UpdatedAt.
func (p *SearchableProvider) WithService(serviceID string, now time.Time) (SearchableProvider, error) {
	c := *p
	serviceID = strings.TrimSpace(serviceID)
	if err := ValidateServiceID(serviceID); err != nil {
		return SearchableProvider{}, err
	}
	c.serviceIDs = addService(c.serviceIDs, serviceID)
	c.updatedAt = now
	return c, nil
}

// WithoutService returns a copy no longer offering serviceID.
func (p *SearchableProvider) WithoutService(serviceID string, now time.Time) SearchableProvider {
	c := *p
	c.serviceIDs = removeService(c.serviceIDs, strings.TrimSpace(serviceID))
	c.updatedAt = now
	return c
}

// WithActive returns a copy with the searchable flag set.
func (p *SearchableProvider) WithActive(active bool, now time.Time) SearchableProvider {
	c := *p
	c.active = active
	c.updatedAt = now
	return c
}

// ValidateRating checks the rating aggregate invariant.
func ValidateRating(avg float64, reviews int) error {
	if math.IsNaN(avg) || avg < MinRating || avg > MaxRating {
		return fmt.Errorf("average rating must be between %.0f and %.0f", MinRating, MaxRating)
	}
	if reviews < 0 {
		return fmt.Errorf("total reviews must not be negative")
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("name too long (max %d)", MaxNameLength)
	}
	return nil
}
