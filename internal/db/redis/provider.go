package redis

import (
	"context"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/nearby/internal/db"
	"github.com/kailas-cloud/nearby/internal/domain/provider"
)

// commitScript applies one unit of work with a sequence compare-and-set.
// KEYS: seq, row. ARGV: sequence, op, then HSET field/value pairs.
var commitScript = rueidis.NewLuaScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
if tonumber(ARGV[1]) <= cur then
  return redis.error_reply('STALE sequence ' .. cur)
end
local op = ARGV[2]
local exists = redis.call('EXISTS', KEYS[2]) == 1
if op == 'add' and exists then
  return redis.error_reply('EXISTS row')
end
if (op == 'update' or op == 'delete') and not exists then
  return redis.error_reply('NOTFOUND row')
end
if op == 'add' or op == 'update' then
  redis.call('DEL', KEYS[2])
  redis.call('HSET', KEYS[2], unpack(ARGV, 3))
elseif op == 'delete' then
  redis.call('DEL', KEYS[2])
end
redis.call('SET', KEYS[1], ARGV[1])
return 'OK'
`)

// GetByProviderID loads the row of one provider.
func (s *Store) GetByProviderID(ctx context.Context, providerID string) (provider.SearchableProvider, error) {
	cmd := s.b().Hgetall().Key(s.keys.row(providerID)).Build()
	m, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return provider.SearchableProvider{}, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	if len(m) == 0 {
		return provider.SearchableProvider{}, db.ErrKeyNotFound
	}
	p, err := decodeRow(m)
	if err != nil {
		return provider.SearchableProvider{}, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return p, nil
}

// GetByID loads a row by its row id through the index.
func (s *Store) GetByID(ctx context.Context, id string) (provider.SearchableProvider, error) {
	query := "@" + fieldRowID + ":{" + tagEscaper.Replace(id) + "}"
	cmd := s.b().Arbitrary("FT.SEARCH").
		Args(s.keys.index(), query, "LIMIT", "0", "1", "DIALECT", "2").
		Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return provider.SearchableProvider{}, &db.Error{Op: db.OpSearch, Err: err}
	}
	// [total, key, [field, value, ...]]
	if len(raw) < 3 {
		return provider.SearchableProvider{}, db.ErrKeyNotFound
	}
	fields, err := raw[2].ToArray()
	if err != nil {
		return provider.SearchableProvider{}, &db.Error{Op: db.OpSearch, Err: err}
	}
	p, err := decodeRow(parseFieldPairs(fields))
	if err != nil {
		return provider.SearchableProvider{}, &db.Error{Op: db.OpSearch, Err: err}
	}
	return p, nil
}

// LastSequence returns the committed sequence of providerID, 0 when unseen.
func (s *Store) LastSequence(ctx context.Context, providerID string) (int64, error) {
	cmd := s.b().Get().Key(s.keys.seq(providerID)).Build()
	v, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return 0, nil
		}
		return 0, &db.Error{Op: db.OpGet, Err: err}
	}
	return v, nil
}

// SaveChanges commits c atomically via the commit script.
func (s *Store) SaveChanges(ctx context.Context, c *db.Changes) error {
	args := []string{strconv.FormatInt(c.Sequence(), 10), c.Op().String()}
	if c.Op() == db.OpAdd || c.Op() == db.OpUpdate {
		row := c.Row()
		args = append(args, encodeRow(&row)...)
	}
	keys := []string{s.keys.seq(c.ProviderID()), s.keys.row(c.ProviderID())}

	err := commitScript.Exec(ctx, s.client, keys, args).Error()
	switch {
	case err == nil:
		return nil
	case hasRedisErrCode(err, "STALE"):
		return db.ErrStaleSequence
	case hasRedisErrCode(err, "EXISTS"):
		return db.ErrKeyExists
	case hasRedisErrCode(err, "NOTFOUND"):
		return db.ErrKeyNotFound
	default:
		return &db.Error{Op: db.OpCommit, Err: err}
	}
}
