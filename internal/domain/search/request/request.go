package request

import (
	"math"
	"slices"
	"strings"

	"github.com/kailas-cloud/nearby/internal/domain"
	"github.com/kailas-cloud/nearby/internal/domain/geo"
	"github.com/kailas-cloud/nearby/internal/domain/provider"
)

// Default search limits.
const (
	DefaultMaxRadiusKm       = 500.0
	DefaultTake              = 20
	DefaultMaxTake           = 100
	DefaultMaxSkip           = 10_000
	DefaultMaxServiceFilters = 50
)

// Limits bounds externally supplied search parameters.
type Limits struct {
	MaxRadiusKm       float64
	DefaultTake       int
	MaxTake           int
	MaxSkip           int
	MaxServiceFilters int
}

// DefaultLimits returns the built-in limits.
func DefaultLimits() Limits {
	return Limits{
		MaxRadiusKm:       DefaultMaxRadiusKm,
		DefaultTake:       DefaultTake,
		MaxTake:           DefaultMaxTake,
		MaxSkip:           DefaultMaxSkip,
		MaxServiceFilters: DefaultMaxServiceFilters,
	}
}

// Params is raw caller input. Nil pointers mean "not supplied".
type Params struct {
	Lat        float64
	Lon        float64
	RadiusKm   float64
	ServiceIDs []string
	MinRating  *float64
	Tiers      []provider.Tier
	Skip       int
	Take       *int
}

// Request is a radius search query.
type Request struct {
	origin     geo.Point
	radiusKm   float64
	serviceIDs []string
	minRating  *float64
	tiers      []provider.Tier
	skip       int
	take       int
}

// New validates params against limits.
// A non-positive radius is accepted; it yields an empty result downstream.
func New(p Params, l Limits) (Request, error) {
	if !geo.ValidateCoordinates(p.Lat, p.Lon) {
		return Request{}, domain.Validationf("invalid coordinates: lat=%v lon=%v", p.Lat, p.Lon)
	}
	if math.IsNaN(p.RadiusKm) || math.IsInf(p.RadiusKm, 0) {
		return Request{}, domain.Validationf("radius_km must be a finite number")
	}
	if l.MaxRadiusKm > 0 && p.RadiusKm > l.MaxRadiusKm {
		return Request{}, domain.Validationf("radius_km must not exceed %v", l.MaxRadiusKm)
	}
	if p.MinRating != nil {
		r := *p.MinRating
		if math.IsNaN(r) || r < provider.MinRating || r > provider.MaxRating {
			return Request{}, domain.Validationf("min_rating must be between %v and %v",
				provider.MinRating, provider.MaxRating)
		}
	}
	for _, t := range p.Tiers {
		if !t.IsValid() {
			return Request{}, domain.Validationf("unknown tier %d", int(t))
		}
	}
	for _, id := range p.ServiceIDs {
		if strings.TrimSpace(id) == "" {
			continue
		}
		if err := provider.ValidateServiceID(id); err != nil {
			return Request{}, domain.Validationf("%v", err)
		}
	}
	services := provider.NormalizeServiceIDs(p.ServiceIDs)
	if l.MaxServiceFilters > 0 && len(services) > l.MaxServiceFilters {
		return Request{}, domain.Validationf("too many service_id filters (max %d)", l.MaxServiceFilters)
	}
	if p.Skip < 0 {
		return Request{}, domain.Validationf("skip must not be negative")
	}
	if l.MaxSkip > 0 && p.Skip > l.MaxSkip {
		return Request{}, domain.Validationf("skip must not exceed %d", l.MaxSkip)
	}
	take := l.DefaultTake
	if p.Take != nil {
		take = *p.Take
	}
	if take < 0 {
		return Request{}, domain.Validationf("take must not be negative")
	}
	if l.MaxTake > 0 && take > l.MaxTake {
		return Request{}, domain.Validationf("take must not exceed %d", l.MaxTake)
	}
	return build(p, services, p.Skip, take), nil
}

// Reconstruct creates a Request without validation. Skip and take are taken as given.
func Reconstruct(p Params) Request {
	take := DefaultTake
	if p.Take != nil {
		take = *p.Take
	}
	return build(p, provider.NormalizeServiceIDs(p.ServiceIDs), p.Skip, take)
}

func build(p Params, services []string, skip, take int) Request {
	var minRating *float64
	if p.MinRating != nil {
		v := *p.MinRating
		minRating = &v
	}
	tiers := slices.Clone(p.Tiers)
	slices.Sort(tiers)
	return Request{
		origin:     geo.Point{Lat: p.Lat, Lon: p.Lon},
		radiusKm:   p.RadiusKm,
		serviceIDs: services,
		minRating:  minRating,
		tiers:      slices.Compact(tiers),
		skip:       skip,
		take:       take,
	}
}

// Origin returns the search center.
func (r *Request) Origin() geo.Point { return r.origin }

// RadiusKm returns the inclusive search radius.
func (r *Request) RadiusKm() float64 { return r.radiusKm }

// ServiceIDs returns the service filter; empty means any.
func (r *Request) ServiceIDs() []string { return r.serviceIDs }

// MinRating returns the rating floor and whether one was set.
func (r *Request) MinRating() (float64, bool) {
	if r.minRating == nil {
		return 0, false
	}
	return *r.minRating, true
}

// Tiers returns the tier filter; empty means any.
func (r *Request) Tiers() []provider.Tier { return r.tiers }

// Skip returns the number of ranked rows to skip.
func (r *Request) Skip() int { return r.skip }

// Take returns the page size. Zero asks for the count only.
func (r *Request) Take() int { return r.take }
