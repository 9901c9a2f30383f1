package sqlite

import (
	"context"
	"strings"

	"github.com/kailas-cloud/nearby/internal/db"
	"github.com/kailas-cloud/nearby/internal/domain/geo"
)

// SearchProviders returns one ranked page of q. Paging and ordering run in SQL.
func (s *Store) SearchProviders(ctx context.Context, q *db.ProviderQuery) ([]db.ProviderHit, error) {
	if q.Limit <= 0 || q.RadiusKm <= 0 {
		return []db.ProviderHit{}, nil
	}

	cte, args := candidates(q)
	query := cte + `
		SELECT ` + rowColumns + `, c.distance_km
		FROM candidates c
		JOIN searchable_providers p ON p.id = c.id
		WHERE c.distance_km <= ?
		ORDER BY p.subscription_tier DESC, p.average_rating DESC, c.distance_km ASC, p.provider_id ASC
		LIMIT ? OFFSET ?`
	args = append(args, q.RadiusKm+db.RadiusToleranceKm, q.Limit, max(q.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	defer rows.Close()

	hits := make([]db.ProviderHit, 0, q.Limit)
	for rows.Next() {
		var dist float64
		p, err := scanRow(rows, &dist)
		if err != nil {
			return nil, &db.Error{Op: db.OpSelect, Err: err}
		}
		hits = append(hits, db.ProviderHit{Provider: p, DistanceKm: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	return hits, nil
}

// CountProviders counts matches of q with the same candidate predicate.
func (s *Store) CountProviders(ctx context.Context, q *db.ProviderQuery) (int, error) {
	if q.RadiusKm <= 0 {
		return 0, nil
	}
	cte, args := candidates(q)
	args = append(args, q.RadiusKm+db.RadiusToleranceKm)

	var n int
	err := s.db.QueryRowContext(ctx, cte+`
		SELECT COUNT(*) FROM candidates c WHERE c.distance_km <= ?`, args...).Scan(&n)
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	return n, nil
}

// candidates renders the shared WITH clause: active rows inside the bounding
// box that pass the attribute filters, each with its computed distance.
func candidates(q *db.ProviderQuery) (string, []any) {
	box := geo.BoundingBox(q.Origin, q.RadiusKm)

	var b strings.Builder
	args := []any{q.Origin.Lat, q.Origin.Lon, box.MinLat, box.MaxLat}
	b.WriteString(`WITH candidates AS (
		SELECT cp.id, ` + distanceFunc + `(?, ?, cp.latitude, cp.longitude) AS distance_km
		FROM searchable_providers cp
		WHERE cp.is_active = 1
		  AND cp.latitude BETWEEN ? AND ?`)

	switch {
	case box.MinLon <= -180 && box.MaxLon >= 180:
	case box.WrapsAntimeridian:
		b.WriteString(`
		  AND (cp.longitude >= ? OR cp.longitude <= ?)`)
		args = append(args, box.MinLon, box.MaxLon)
	default:
		b.WriteString(`
		  AND cp.longitude BETWEEN ? AND ?`)
		args = append(args, box.MinLon, box.MaxLon)
	}

	if q.MinRating != nil {
		b.WriteString(`
		  AND cp.average_rating >= ?`)
		args = append(args, *q.MinRating)
	}
	if len(q.Tiers) > 0 {
		b.WriteString(`
		  AND cp.subscription_tier IN (` + placeholders(len(q.Tiers)) + `)`)
		for _, t := range q.Tiers {
			args = append(args, int(t))
		}
	}
	if len(q.ServiceIDs) > 0 {
		b.WriteString(`
		  AND EXISTS (
			SELECT 1 FROM provider_services ps
			WHERE ps.provider_row_id = cp.id AND ps.service_id IN (` + placeholders(len(q.ServiceIDs)) + `))`)
		for _, id := range q.ServiceIDs {
			args = append(args, id)
		}
	}
	b.WriteString(`
	)`)
	return b.String(), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
