package chi

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/kailas-cloud/nearby/internal/domain"
	"github.com/kailas-cloud/nearby/internal/domain/provider"
	"github.com/kailas-cloud/nearby/internal/domain/search/request"
)

// parseSearchParams reads search parameters from the query string.
// Range checks are left to request.New.
func parseSearchParams(q url.Values) (request.Params, error) {
	var p request.Params
	var err error

	if p.Lat, err = requiredFloat(q, "lat"); err != nil {
		return p, err
	}
	if p.Lon, err = requiredFloat(q, "lon"); err != nil {
		return p, err
	}
	if p.RadiusKm, err = requiredFloat(q, "radius_km"); err != nil {
		return p, err
	}
	if p.MinRating, err = optionalFloat(q, "min_rating"); err != nil {
		return p, err
	}
	skip, err := optionalInt(q, "skip")
	if err != nil {
		return p, err
	}
	if skip != nil {
		p.Skip = *skip
	}
	if p.Take, err = optionalInt(q, "take"); err != nil {
		return p, err
	}

	p.ServiceIDs = listParam(q, "service_id")

	for _, name := range listParam(q, "tier") {
		t, err := provider.ParseTier(name)
		if err != nil {
			return p, domain.Validationf("tier: %v", err)
		}
		p.Tiers = append(p.Tiers, t)
	}
	return p, nil
}

func requiredFloat(q url.Values, key string) (float64, error) {
	v := q.Get(key)
	if v == "" {
		return 0, domain.Validationf("%s is required", key)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, domain.Validationf("%s must be a number", key)
	}
	return f, nil
}

func optionalFloat(q url.Values, key string) (*float64, error) {
	if q.Get(key) == "" {
		return nil, nil
	}
	f, err := requiredFloat(q, key)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func optionalInt(q url.Values, key string) (*int, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, domain.Validationf("%s must be an integer", key)
	}
	return &n, nil
}

// listParam accepts both repeated keys and comma separated values.
func listParam(q url.Values, key string) []string {
	var out []string
	for _, raw := range q[key] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}
