package redis

import (
	"context"
	"errors"

	"github.com/kailas-cloud/nearby/internal/db"
)

const scanBatch = 500

// Reset drops the index with its rows, deletes every sequence key and recreates the index.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.DropIndex(ctx, s.keys.index(), true); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return err
	}

	var cursor uint64
	for {
		cmd := s.b().Scan().Cursor(cursor).Match(s.keys.seqPattern()).Count(scanBatch).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return &db.Error{Op: db.OpScan, Err: err}
		}
		if len(res.Elements) > 0 {
			del := s.b().Del().Key(res.Elements...).Build()
			if err := s.do(ctx, del).Error(); err != nil {
				return &db.Error{Op: db.OpDel, Err: err}
			}
		}
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}

	return s.createProviderIndex(ctx)
}
