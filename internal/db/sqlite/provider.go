package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/nearby/internal/db"
	"github.com/kailas-cloud/nearby/internal/domain/geo"
	"github.com/kailas-cloud/nearby/internal/domain/provider"
)

// serviceSep joins service ids in group_concat output. Control characters never occur in an id.
const serviceSep = "\x1f"

const rowColumns = `p.id, p.provider_id, p.name, p.latitude, p.longitude, p.subscription_tier,
	p.average_rating, p.total_reviews, p.city, p.state, p.is_active, p.created_at, p.updated_at,
	(SELECT group_concat(ps.service_id, char(31)) FROM provider_services ps WHERE ps.provider_row_id = p.id)`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRow reads rowColumns plus any extra destinations.
func scanRow(r rowScanner, extra ...any) (provider.SearchableProvider, error) {
	var (
		st               provider.State
		tier             int
		active           int
		created, updated string
		services         sql.NullString
		lat, lon         float64
	)
	dest := append([]any{
		&st.ID, &st.ProviderID, &st.Name, &lat, &lon, &tier,
		&st.AverageRating, &st.TotalReviews, &st.City, &st.State, &active, &created, &updated,
		&services,
	}, extra...)
	if err := r.Scan(dest...); err != nil {
		return provider.SearchableProvider{}, err
	}

	var err error
	if st.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return provider.SearchableProvider{}, fmt.Errorf("parse created_at: %w", err)
	}
	if st.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return provider.SearchableProvider{}, fmt.Errorf("parse updated_at: %w", err)
	}
	st.Location = geo.Point{Lat: lat, Lon: lon}
	st.Tier = provider.Tier(tier)
	st.Active = active != 0
	if services.Valid && services.String != "" {
		st.ServiceIDs = strings.Split(services.String, serviceSep)
	}
	return provider.Reconstruct(st), nil
}

// GetByID loads a row by row id.
func (s *Store) GetByID(ctx context.Context, id string) (provider.SearchableProvider, error) {
	return s.getOne(ctx, "p.id = ?", id)
}

// GetByProviderID loads the row of one provider.
func (s *Store) GetByProviderID(ctx context.Context, providerID string) (provider.SearchableProvider, error) {
	return s.getOne(ctx, "p.provider_id = ?", providerID)
}

func (s *Store) getOne(ctx context.Context, where string, arg any) (provider.SearchableProvider, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+rowColumns+" FROM searchable_providers p WHERE "+where, arg)
	p, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return provider.SearchableProvider{}, db.ErrKeyNotFound
	}
	if err != nil {
		return provider.SearchableProvider{}, &db.Error{Op: db.OpSelect, Err: err}
	}
	return p, nil
}

// LastSequence returns the committed sequence of providerID, 0 when unseen.
func (s *Store) LastSequence(ctx context.Context, providerID string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		"SELECT sequence FROM provider_sequences WHERE provider_id = ?", providerID).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, &db.Error{Op: db.OpLoadSequence, Err: err}
	}
	return seq, nil
}

// SaveChanges commits c in one transaction guarded by a sequence compare-and-set.
func (s *Store) SaveChanges(ctx context.Context, c *db.Changes) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpCommit, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO provider_sequences (provider_id, sequence) VALUES (?, ?)
		ON CONFLICT (provider_id) DO UPDATE SET sequence = excluded.sequence
		WHERE excluded.sequence > provider_sequences.sequence`,
		c.ProviderID(), c.Sequence())
	if err != nil {
		return &db.Error{Op: db.OpCommit, Err: err}
	}
	if n, err := res.RowsAffected(); err != nil {
		return &db.Error{Op: db.OpCommit, Err: err}
	} else if n == 0 {
		return db.ErrStaleSequence
	}

	switch c.Op() {
	case db.OpAdd:
		err = insertRow(ctx, tx, c.Row())
	case db.OpUpdate:
		err = updateRow(ctx, tx, c.Row())
	case db.OpDelete:
		err = deleteRow(ctx, tx, c.RowID())
	}
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpCommit, Err: err}
	}
	return nil
}

func insertRow(ctx context.Context, tx *sql.Tx, p provider.SearchableProvider) error {
	var exists int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM searchable_providers WHERE provider_id = ?", p.ProviderID()).Scan(&exists)
	if err != nil {
		return &db.Error{Op: db.OpCommit, Err: err}
	}
	if exists > 0 {
		return db.ErrKeyExists
	}

	loc := p.Location()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO searchable_providers (
			id, provider_id, name, latitude, longitude, subscription_tier, average_rating,
			total_reviews, city, state, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID(), p.ProviderID(), p.Name(), loc.Lat, loc.Lon, int(p.Tier()), p.AverageRating(),
		p.TotalReviews(), p.City(), p.State(), boolInt(p.Active()),
		formatTime(p.CreatedAt()), formatTime(p.UpdatedAt()))
	if err != nil {
		if isUniqueViolation(err) {
			return db.ErrKeyExists
		}
		return &db.Error{Op: db.OpCommit, Err: err}
	}
	return insertServices(ctx, tx, p.ID(), p.ServiceIDs())
}

func updateRow(ctx context.Context, tx *sql.Tx, p provider.SearchableProvider) error {
	loc := p.Location()
	res, err := tx.ExecContext(ctx, `
		UPDATE searchable_providers SET
			name = ?, latitude = ?, longitude = ?, subscription_tier = ?, average_rating = ?,
			total_reviews = ?, city = ?, state = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		p.Name(), loc.Lat, loc.Lon, int(p.Tier()), p.AverageRating(),
		p.TotalReviews(), p.City(), p.State(), boolInt(p.Active()), formatTime(p.UpdatedAt()),
		p.ID())
	if err != nil {
		return &db.Error{Op: db.OpCommit, Err: err}
	}
	if n, err := res.RowsAffected(); err != nil {
		return &db.Error{Op: db.OpCommit, Err: err}
	} else if n == 0 {
		return db.ErrKeyNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM provider_services WHERE provider_row_id = ?", p.ID()); err != nil {
		return &db.Error{Op: db.OpCommit, Err: err}
	}
	return insertServices(ctx, tx, p.ID(), p.ServiceIDs())
}

func deleteRow(ctx context.Context, tx *sql.Tx, rowID string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM provider_services WHERE provider_row_id = ?", rowID); err != nil {
		return &db.Error{Op: db.OpCommit, Err: err}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM searchable_providers WHERE id = ?", rowID)
	if err != nil {
		return &db.Error{Op: db.OpCommit, Err: err}
	}
	if n, err := res.RowsAffected(); err != nil {
		return &db.Error{Op: db.OpCommit, Err: err}
	} else if n == 0 {
		return db.ErrKeyNotFound
	}
	return nil
}

func insertServices(ctx context.Context, tx *sql.Tx, rowID string, services []string) error {
	for _, svc := range services {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO provider_services (provider_row_id, service_id) VALUES (?, ?)",
			rowID, svc); err != nil {
			return &db.Error{Op: db.OpCommit, Err: err}
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }
