package redis

import (
	"context"
	"errors"

	"github.com/kailas-cloud/nearby/internal/db"
)

// providerIndex is the FT schema over provider rows.
func providerIndex(k keyspace) *db.IndexDefinition {
	return db.NewIndex(k.index()).
		Prefix(k.rowPrefix()).
		Geo(fieldLocation).
		Tag(fieldActive).
		TagWithOpts(fieldServices, serviceSeparator, true).
		SortableNumeric(fieldTier).
		SortableNumeric(fieldRating).
		SortableTag(fieldProviderID, true).
		TagWithOpts(fieldRowID, "", true).
		MustBuild()
}

// EnsureSchema creates the provider index unless FT.INFO already reports it.
func (s *Store) EnsureSchema(ctx context.Context) error {
	exists, err := s.IndexExists(ctx, s.keys.index())
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.createProviderIndex(ctx)
}

// createProviderIndex tolerates losing a creation race to another instance.
func (s *Store) createProviderIndex(ctx context.Context) error {
	err := s.CreateIndex(ctx, providerIndex(s.keys))
	if errors.Is(err, db.ErrIndexExists) {
		return nil
	}
	return err
}

// CreateIndex creates an FT index from the given definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(append([]string{def.Name}, def.Args()...)...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// DropIndex removes an FT index by name. With deleteDocs the indexed hashes go too.
func (s *Store) DropIndex(ctx context.Context, name string, deleteDocs bool) error {
	args := []string{name}
	if deleteDocs {
		args = append(args, "DD")
	}
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index") {
			return db.ErrIndexNotFound
		}
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	return nil
}

// IndexExists probes index existence via FT.INFO; "unknown index name" means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index") {
			return false, nil
		}
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return true, nil
}
