package nearby

import "github.com/kailas-cloud/nearby/internal/domain/search/request"

// Query describes a radius search. Build one with Near.
type Query struct {
	lat, lon  float64
	radiusKm  float64
	services  []string
	tiers     []Tier
	minRating *float64
	skip      int
	take      *int
}

// Near starts a query around lat/lon within radiusKm.
func Near(lat, lon, radiusKm float64) Query {
	return Query{lat: lat, lon: lon, radiusKm: radiusKm}
}

// Services keeps providers offering at least one of ids.
func (q Query) Services(ids ...string) Query {
	q.services = append(append([]string(nil), q.services...), ids...)
	return q
}

// Tiers restricts results to the listed tiers.
func (q Query) Tiers(tiers ...Tier) Query {
	q.tiers = append(append([]Tier(nil), q.tiers...), tiers...)
	return q
}

// MinRating drops providers rated below r.
func (q Query) MinRating(r float64) Query {
	q.minRating = &r
	return q
}

// Page sets the offset and page size.
func (q Query) Page(skip, take int) Query {
	q.skip = skip
	q.take = &take
	return q
}

func (q Query) params() request.Params {
	return request.Params{
		Lat:        q.lat,
		Lon:        q.lon,
		RadiusKm:   q.radiusKm,
		ServiceIDs: q.services,
		MinRating:  q.minRating,
		Tiers:      q.tiers,
		Skip:       q.skip,
		Take:       q.take,
	}
}
