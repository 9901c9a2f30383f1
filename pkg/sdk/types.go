package nearby

import (
	"github.com/kailas-cloud/nearby/internal/domain/batch"
	"github.com/kailas-cloud/nearby/internal/domain/event"
	"github.com/kailas-cloud/nearby/internal/domain/geo"
	"github.com/kailas-cloud/nearby/internal/domain/provider"
)

// Point is a WGS84 coordinate in degrees.
type Point = geo.Point

// Tier is a provider subscription level. Higher tiers rank first.
type Tier = provider.Tier

// Subscription tiers.
const (
	TierFree     = provider.TierFree
	TierStandard = provider.TierStandard
	TierGold     = provider.TierGold
	TierPlatinum = provider.TierPlatinum
)

// Event is one provider lifecycle event with its per-provider sequence.
type Event = event.Event

// Event payloads.
type (
	Activated       = event.Activated
	ProfileUpdated  = event.ProfileUpdated
	LocationChanged = event.LocationChanged
	ServiceAdded    = event.ServiceAdded
	ServiceRemoved  = event.ServiceRemoved
	RatingChanged   = event.RatingChanged
	TierChanged     = event.TierChanged
	Deactivated     = event.Deactivated
	Deleted         = event.Deleted
)

// ApplyStatus is the outcome of applying one event.
type ApplyStatus string

// Apply outcomes. Stale and conflict are successful no-ops.
const (
	StatusApplied  ApplyStatus = ApplyStatus(batch.StatusApplied)
	StatusStale    ApplyStatus = ApplyStatus(batch.StatusStale)
	StatusConflict ApplyStatus = ApplyStatus(batch.StatusConflict)
	StatusError    ApplyStatus = ApplyStatus(batch.StatusError)
)

// ApplyResult is the outcome of one event in ApplyBatch.
type ApplyResult struct {
	ProviderID string
	Sequence   int64
	Status     ApplyStatus
	Err        error
}

// Provider is an indexed provider row.
type Provider struct {
	ID            string
	ProviderID    string
	Name          string
	Location      Point
	City          string
	State         string
	Tier          Tier
	AverageRating float64
	TotalReviews  int
	ServiceIDs    []string
}

// Hit is a provider with its distance from the search origin.
type Hit struct {
	Provider
	DistanceKm float64
}

// SearchPage is one ranked page. TotalCount is -1 when CountAvailable is false.
type SearchPage struct {
	Hits           []Hit
	TotalCount     int
	CountAvailable bool
}

// HealthStatus represents the aggregated index health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component -> "ok"/"saturated"/"error"
}
