package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/nearby/internal/db"
)

const fieldDistanceKm = "distance_km"

// SearchProviders runs the ranked radius query via FT.AGGREGATE.
// Distance comes from the server's geodistance(), the same metric as the GEO filter.
func (s *Store) SearchProviders(ctx context.Context, q *db.ProviderQuery) ([]db.ProviderHit, error) {
	if q.Limit <= 0 || q.RadiusKm <= 0 {
		return []db.ProviderHit{}, nil
	}

	cmd := s.b().Arbitrary("FT.AGGREGATE").Args(s.aggregateArgs(q)...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpAggregate, Err: err}
	}
	return parseAggregateResult(raw)
}

// CountProviders counts matches of the same predicate via FT.SEARCH with LIMIT 0 0.
func (s *Store) CountProviders(ctx context.Context, q *db.ProviderQuery) (int, error) {
	if q.RadiusKm <= 0 {
		return 0, nil
	}
	cmd := s.b().Arbitrary("FT.SEARCH").
		Args(s.keys.index(), buildQuery(q), "LIMIT", "0", "0", "DIALECT", "2").
		Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return 0, &db.Error{Op: db.OpSearch, Err: err}
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

func (s *Store) aggregateArgs(q *db.ProviderQuery) []string {
	load := append([]string{fieldLocation}, rowFields...)
	args := make([]string, 0, 32+len(load))
	args = append(args, s.keys.index(), buildQuery(q), "LOAD", strconv.Itoa(len(load)))
	for _, f := range load {
		args = append(args, "@"+f)
	}
	args = append(args,
		"APPLY", fmt.Sprintf("geodistance(@%s, %s, %s) / 1000", fieldLocation,
			formatFloat(q.Origin.Lon), formatFloat(q.Origin.Lat)),
		"AS", fieldDistanceKm,
		"SORTBY", "8",
		"@"+fieldTier, "DESC",
		"@"+fieldRating, "DESC",
		"@"+fieldDistanceKm, "ASC",
		"@"+fieldProviderID, "ASC",
		"LIMIT", strconv.Itoa(max(q.Offset, 0)), strconv.Itoa(q.Limit),
		"DIALECT", "2",
	)
	return args
}

// buildQuery renders the filter predicate shared by the data and count queries.
func buildQuery(q *db.ProviderQuery) string {
	parts := []string{
		"@" + fieldActive + ":{true}",
		fmt.Sprintf("@%s:[%s %s %s km]", fieldLocation,
			formatFloat(q.Origin.Lon), formatFloat(q.Origin.Lat), formatFloat(q.RadiusKm)),
	}
	if len(q.ServiceIDs) > 0 {
		escaped := make([]string, len(q.ServiceIDs))
		for i, id := range q.ServiceIDs {
			escaped[i] = tagEscaper.Replace(id)
		}
		parts = append(parts, "@"+fieldServices+":{"+strings.Join(escaped, " | ")+"}")
	}
	if q.MinRating != nil {
		parts = append(parts, fmt.Sprintf("@%s:[%s +inf]", fieldRating, formatFloat(*q.MinRating)))
	}
	if len(q.Tiers) > 0 {
		alts := make([]string, len(q.Tiers))
		for i, t := range q.Tiers {
			alts[i] = fmt.Sprintf("@%s:[%d %d]", fieldTier, int(t), int(t))
		}
		parts = append(parts, "("+strings.Join(alts, " | ")+")")
	}
	return strings.Join(parts, " ")
}

// --- Result parsing ---

func parseAggregateResult(raw []rueidis.RedisMessage) ([]db.ProviderHit, error) {
	if len(raw) <= 1 {
		return []db.ProviderHit{}, nil
	}

	// [count, row1, row2, ...]; each row is a flat field/value array.
	hits := make([]db.ProviderHit, 0, len(raw)-1)
	for _, msg := range raw[1:] {
		fields, err := msg.ToArray()
		if err != nil {
			return nil, fmt.Errorf("parse row: %w", err)
		}
		m := parseFieldPairs(fields)
		p, err := decodeRow(m)
		if err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		dist, err := strconv.ParseFloat(m[fieldDistanceKm], 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", fieldDistanceKm, err)
		}
		hits = append(hits, db.ProviderHit{Provider: p, DistanceKm: dist})
	}
	return hits, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Query helpers ---

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"[", "\\[",
	"]", "\\]",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	" ", "\\ ",
)
