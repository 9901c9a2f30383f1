// Package event defines the provider lifecycle events consumed by the index.
package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/nearby/internal/domain"
	"github.com/kailas-cloud/nearby/internal/domain/geo"
	"github.com/kailas-cloud/nearby/internal/domain/provider"
)

// Kind is the wire name of an event type.
type Kind string

// Lifecycle event kinds.
const (
	KindActivated       Kind = "provider.activated"
	KindProfileUpdated  Kind = "provider.profile_updated"
	KindLocationChanged Kind = "provider.location_changed"
	KindServiceAdded    Kind = "provider.service_added"
	KindServiceRemoved  Kind = "provider.service_removed"
	KindRatingChanged   Kind = "provider.rating_changed"
	KindTierChanged     Kind = "provider.tier_changed"
	KindDeactivated     Kind = "provider.deactivated"
	KindDeleted         Kind = "provider.deleted"
)

// Kinds lists every known kind.
var Kinds = []Kind{
	KindActivated, KindProfileUpdated, KindLocationChanged,
	KindServiceAdded, KindServiceRemoved, KindRatingChanged,
	KindTierChanged, KindDeactivated, KindDeleted,
}

// Payload is the kind-specific body of an event.
type Payload interface {
	Kind() Kind
	validate() error
}

// Activated makes a provider discoverable. Optional fields refresh the row when present.
type Activated struct {
	Name     string         `json:"name"`
	Location *geo.Point     `json:"location"`
	City     *string        `json:"city,omitempty"`
	State    *string        `json:"state,omitempty"`
	Tier     *provider.Tier `json:"tier,omitempty"`
}

// ProfileUpdated carries changed profile fields; nil means unchanged.
type ProfileUpdated struct {
	Name  *string `json:"name,omitempty"`
	City  *string `json:"city,omitempty"`
	State *string `json:"state,omitempty"`
}

// LocationChanged moves a provider.
type LocationChanged struct {
	Location *geo.Point `json:"location"`
}

// ServiceAdded adds an offered service.
type ServiceAdded struct {
	ServiceID string `json:"service_id"`
}

// ServiceRemoved removes an offered service.
type ServiceRemoved struct {
	ServiceID string `json:"service_id"`
}

// RatingChanged carries the recomputed review aggregate.
type RatingChanged struct {
	AverageRating float64 `json:"average_rating"`
	TotalReviews  int     `json:"total_reviews"`
}

// TierChanged carries a new subscription tier.
type TierChanged struct {
	NewTier provider.Tier `json:"new_tier"`
}

// Deactivated hides a provider from search without removing the row.
type Deactivated struct{}

// Deleted removes the provider row.
type Deleted struct{}

func (Activated) Kind() Kind       { return KindActivated }
func (ProfileUpdated) Kind() Kind  { return KindProfileUpdated }
func (LocationChanged) Kind() Kind { return KindLocationChanged }
func (ServiceAdded) Kind() Kind    { return KindServiceAdded }
func (ServiceRemoved) Kind() Kind  { return KindServiceRemoved }
func (RatingChanged) Kind() Kind   { return KindRatingChanged }
func (TierChanged) Kind() Kind     { return KindTierChanged }
func (Deactivated) Kind() Kind     { return KindDeactivated }
func (Deleted) Kind() Kind         { return KindDeleted }

func (a Activated) validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if err := validateLocation(a.Location); err != nil {
		return err
	}
	if a.Tier != nil && !a.Tier.IsValid() {
		return fmt.Errorf("unknown tier %d", int(*a.Tier))
	}
	return nil
}

func (u ProfileUpdated) validate() error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return fmt.Errorf("name must not be blank")
	}
	return nil
}

func (l LocationChanged) validate() error { return validateLocation(l.Location) }

func (s ServiceAdded) validate() error { return validateServiceID(s.ServiceID) }

func (s ServiceRemoved) validate() error { return validateServiceID(s.ServiceID) }

func (r RatingChanged) validate() error {
	return provider.ValidateRating(r.AverageRating, r.TotalReviews)
}

func (t TierChanged) validate() error {
	if !t.NewTier.IsValid() {
		return fmt.Errorf("unknown tier %d", int(t.NewTier))
	}
	return nil
}

func (Deactivated) validate() error { return nil }
func (Deleted) validate() error     { return nil }

func validateLocation(p *geo.Point) error {
	if p == nil {
		return fmt.Errorf("location is required")
	}
	if !p.Valid() {
		return fmt.Errorf("invalid location %s", p)
	}
	return nil
}

func validateServiceID(id string) error {
	return provider.ValidateServiceID(id)
}

// Event is one lifecycle event for one provider. Sequence is monotonic per provider.
type Event struct {
	ProviderID string
	Sequence   int64
	OccurredAt time.Time
	Payload    Payload
}

// Kind returns the payload kind.
func (e Event) Kind() Kind {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

// Validate checks the envelope and payload. Errors wrap domain.ErrValidation.
func (e Event) Validate() error {
	if strings.TrimSpace(e.ProviderID) == "" {
		return domain.Validationf("provider_id is required")
	}
	if e.Sequence <= 0 {
		return domain.Validationf("sequence must be positive")
	}
	if e.Payload == nil {
		return domain.Validationf("payload is required")
	}
	if err := e.Payload.validate(); err != nil {
		return domain.Validationf("%s: %v", e.Payload.Kind(), err)
	}
	return nil
}

type envelope struct {
	Type       Kind            `json:"type"`
	ProviderID string          `json:"provider_id"`
	Sequence   int64           `json:"sequence"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// MarshalJSON encodes the event as a typed envelope.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("event has no payload")
	}
	body, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return json.Marshal(envelope{
		Type: e.Payload.Kind(), ProviderID: e.ProviderID, Sequence: e.Sequence,
		OccurredAt: e.OccurredAt, Payload: body,
	})
}

// UnmarshalJSON decodes a typed envelope without validating it.
func (e *Event) UnmarshalJSON(b []byte) error {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	payload, err := newPayload(env.Type)
	if err != nil {
		return err
	}
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		if err := json.Unmarshal(env.Payload, payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
	}
	*e = Event{
		ProviderID: env.ProviderID,
		Sequence:   env.Sequence,
		OccurredAt: env.OccurredAt,
		Payload:    deref(payload),
	}
	return nil
}

// Decode parses and validates one JSON envelope.
func Decode(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, domain.Validationf("decode event: %v", err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

func newPayload(k Kind) (any, error) {
	switch k {
	case KindActivated:
		return &Activated{}, nil
	case KindProfileUpdated:
		return &ProfileUpdated{}, nil
	case KindLocationChanged:
		return &LocationChanged{}, nil
	case KindServiceAdded:
		return &ServiceAdded{}, nil
	case KindServiceRemoved:
		return &ServiceRemoved{}, nil
	case KindRatingChanged:
		return &RatingChanged{}, nil
	case KindTierChanged:
		return &TierChanged{}, nil
	case KindDeactivated:
		return &Deactivated{}, nil
	case KindDeleted:
		return &Deleted{}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", k)
	}
}

func deref(p any) Payload {
	switch v := p.(type) {
	case *Activated:
		return *v
	case *ProfileUpdated:
		return *v
	case *LocationChanged:
		return *v
	case *ServiceAdded:
		return *v
	case *ServiceRemoved:
		return *v
	case *RatingChanged:
		return *v
	case *TierChanged:
		return *v
	case *Deactivated:
		return *v
	case *Deleted:
		return *v
	}
	return nil
}
