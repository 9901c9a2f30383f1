package db

import (
	"github.com/kailas-cloud/nearby/internal/domain/geo"
	"github.com/kailas-cloud/nearby/internal/domain/provider"
)

// ProviderQuery is the storage-level radius query. The same value drives both
// the paged data query and the count query so their predicates cannot drift.
type ProviderQuery struct {
	Origin     geo.Point
	RadiusKm   float64
	ServiceIDs []string        // any-of; empty means no filter
	MinRating  *float64        // inclusive floor; nil means no filter
	Tiers      []provider.Tier // any-of; empty means no filter
	Offset     int
	Limit      int
}

// ProviderHit is one matched row with its distance from the query origin.
type ProviderHit struct {
	Provider   provider.SearchableProvider
	DistanceKm float64
}

// RadiusToleranceKm absorbs float rounding at the inclusive radius boundary.
const RadiusToleranceKm = 1e-9
