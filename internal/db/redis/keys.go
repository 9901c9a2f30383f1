package redis

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/nearby/internal/domain/geo"
	"github.com/kailas-cloud/nearby/internal/domain/provider"
)

// Hash field names of a provider row.
const (
	fieldRowID      = "row_id"
	fieldProviderID = "provider_id"
	fieldName       = "name"
	fieldLocation   = "location"
	fieldLat        = "lat"
	fieldLon        = "lon"
	fieldTier       = "tier"
	fieldRating     = "rating"
	fieldReviews    = "reviews"
	fieldServices   = "services"
	fieldCity       = "city"
	fieldState      = "state"
	fieldActive     = "active"
	fieldCreatedAt  = "created_at"
	fieldUpdatedAt  = "updated_at"
)

// rowFields lists every hash field, in LOAD order.
var rowFields = []string{
	fieldRowID, fieldProviderID, fieldName, fieldLat, fieldLon, fieldTier, fieldRating,
	fieldReviews, fieldServices, fieldCity, fieldState, fieldActive, fieldCreatedAt, fieldUpdatedAt,
}

// serviceSeparator also splits the services TAG field in the index.
const serviceSeparator = provider.ServiceSeparator

// keyspace derives key names. The provider id is a hash tag so a row and its
// sequence share a cluster slot and can be committed by one script.
type keyspace struct {
	prefix string
}

func newKeyspace(prefix string) keyspace {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return keyspace{prefix: prefix}
}

func (k keyspace) rowPrefix() string { return k.prefix + "provider:" }

func (k keyspace) row(providerID string) string {
	return k.rowPrefix() + "{" + providerID + "}"
}

func (k keyspace) seqPattern() string { return k.prefix + "seq:*" }

func (k keyspace) seq(providerID string) string {
	return k.prefix + "seq:{" + providerID + "}"
}

func (k keyspace) index() string { return k.prefix + "providers:idx" }

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// encodeRow flattens a row into HSET field/value pairs.
func encodeRow(p *provider.SearchableProvider) []string {
	loc := p.Location()
	active := "false"
	if p.Active() {
		active = "true"
	}
	return []string{
		fieldRowID, p.ID(),
		fieldProviderID, p.ProviderID(),
		fieldName, p.Name(),
		fieldLocation, formatFloat(loc.Lon) + "," + formatFloat(loc.Lat),
		fieldLat, formatFloat(loc.Lat),
		fieldLon, formatFloat(loc.Lon),
		fieldTier, strconv.Itoa(int(p.Tier())),
		fieldRating, formatFloat(p.AverageRating()),
		fieldReviews, strconv.Itoa(p.TotalReviews()),
		fieldServices, strings.Join(p.ServiceIDs(), serviceSeparator),
		fieldCity, p.City(),
		fieldState, p.State(),
		fieldActive, active,
		fieldCreatedAt, p.CreatedAt().UTC().Format(time.RFC3339Nano),
		fieldUpdatedAt, p.UpdatedAt().UTC().Format(time.RFC3339Nano),
	}
}

// decodeRow rebuilds a row from hash fields.
func decodeRow(m map[string]string) (provider.SearchableProvider, error) {
	var (
		st  provider.State
		err error
	)
	st.ID = m[fieldRowID]
	st.ProviderID = m[fieldProviderID]
	if st.ID == "" || st.ProviderID == "" {
		return provider.SearchableProvider{}, fmt.Errorf("row is missing identity fields")
	}
	st.Name = m[fieldName]
	st.City = m[fieldCity]
	st.State = m[fieldState]
	st.Active = m[fieldActive] == "true"

	var lat, lon, rating float64
	var tier, reviews int
	if lat, err = strconv.ParseFloat(m[fieldLat], 64); err != nil {
		return provider.SearchableProvider{}, fmt.Errorf("parse %s: %w", fieldLat, err)
	}
	if lon, err = strconv.ParseFloat(m[fieldLon], 64); err != nil {
		return provider.SearchableProvider{}, fmt.Errorf("parse %s: %w", fieldLon, err)
	}
	if rating, err = strconv.ParseFloat(m[fieldRating], 64); err != nil {
		return provider.SearchableProvider{}, fmt.Errorf("parse %s: %w", fieldRating, err)
	}
	if tier, err = strconv.Atoi(m[fieldTier]); err != nil {
		return provider.SearchableProvider{}, fmt.Errorf("parse %s: %w", fieldTier, err)
	}
	if reviews, err = strconv.Atoi(m[fieldReviews]); err != nil {
		return provider.SearchableProvider{}, fmt.Errorf("parse %s: %w", fieldReviews, err)
	}
	st.Location = geo.Point{Lat: lat, Lon: lon}
	st.AverageRating = rating
	st.Tier = provider.Tier(tier)
	st.TotalReviews = reviews
	if s := m[fieldServices]; s != "" {
		st.ServiceIDs = strings.Split(s, serviceSeparator)
	}
	if st.CreatedAt, err = time.Parse(time.RFC3339Nano, m[fieldCreatedAt]); err != nil {
		return provider.SearchableProvider{}, fmt.Errorf("parse %s: %w", fieldCreatedAt, err)
	}
	if st.UpdatedAt, err = time.Parse(time.RFC3339Nano, m[fieldUpdatedAt]); err != nil {
		return provider.SearchableProvider{}, fmt.Errorf("parse %s: %w", fieldUpdatedAt, err)
	}
	return provider.Reconstruct(st), nil
}
