package rowstore

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

// DefaultKeyPrefix namespaces every key written by RedisStore.
const DefaultKeyPrefix = "hub:"

// RedisStore keeps each row in a hash, row order in a sorted set scored by an
// insert sequence, and one string key per unique column value:
//
//	{prefix}rows:{table}:{id}        hash of columns
//	{prefix}ids:{table}              zset of ids
//	{prefix}seq:{table}              insert counter
//	{prefix}idx:{table}:{col}:{val}  id owning a unique value
//
// Filters on id or a unique column resolve to one row; anything else scans the
// table, which is fine for the volumes this service holds.
type RedisStore struct {
	client  redis.UniversalClient
	indexes Indexes
	prefix  string
}

type RedisOption func(*RedisStore)

func WithKeyPrefix(p string) RedisOption {
	return func(s *RedisStore) { s.prefix = p }
}

// NewRedis creates a RedisStore. client can be *redis.Client,
// *redis.ClusterClient or *redis.Ring; on a cluster all keys of a table must
// hash to one slot, so wrap the prefix in a hash tag.
func NewRedis(client redis.UniversalClient, indexes Indexes, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, indexes: indexes, prefix: DefaultKeyPrefix}
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) rowKey(table, id string) string { return s.prefix + "rows:" + table + ":" + id }
func (s *RedisStore) idsKey(table string) string     { return s.prefix + "ids:" + table }
func (s *RedisStore) seqKey(table string) string     { return s.prefix + "seq:" + table }
func (s *RedisStore) idxKey(table, col, val string) string {
	return s.prefix + "idx:" + table + ":" + col + ":" + val
}

// filterArgs encodes f as count followed by sorted column/value pairs.
func filterArgs(f Filter) []any {
	cols := make([]string, 0, len(f))
	for c := range f {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	args := make([]any, 0, 1+2*len(cols))
	args = append(args, len(cols))
	for _, c := range cols {
		args = append(args, c, f[c])
	}
	return args
}

func rowArgs(r Row) []any {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	args := make([]any, 0, 2*len(cols))
	for _, c := range cols {
		args = append(args, c, r[c])
	}
	return args
}

// candidates returns ids that may match f, in insertion order.
func (s *RedisStore) candidates(ctx context.Context, table string, f Filter) ([]string, error) {
	switch col := s.indexes.lookupColumn(table, f); col {
	case "":
		return s.client.ZRange(ctx, s.idsKey(table), 0, -1).Result()
	case IDColumn:
		return []string{f[IDColumn]}, nil
	default:
		id, err := s.client.Get(ctx, s.idxKey(table, col, f[col])).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []string{id}, nil
	}
}

// load fetches candidate rows with one pipeline and keeps those matching f.
func (s *RedisStore) load(ctx context.Context, table string, f Filter) ([]Row, error) {
	ids, err := s.candidates(ctx, table, f)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.rowKey(table, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	var rows []Row
	for _, c := range cmds {
		m := c.Val()
		if len(m) == 0 {
			continue
		}
		if row := Row(m); f.Matches(row) {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *RedisStore) Select(ctx context.Context, table string, f Filter, opts SelectOptions) (Result, error) {
	rows, err := s.load(ctx, table, f)
	if err != nil {
		return Result{}, storeErr(err, "select", table)
	}
	res := Result{Count: -1}
	if opts.Count {
		res.Count = len(rows)
	}
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}
	res.Rows = rows
	return res, nil
}

func (s *RedisStore) Insert(ctx context.Context, table string, row Row) (Row, error) {
	row = row.Clone()
	if row[IDColumn] == "" {
		row[IDColumn] = uuid.NewString()
	}
	id := row[IDColumn]

	keys := []string{s.rowKey(table, id), s.idsKey(table), s.seqKey(table)}
	var idxCols []string
	for _, col := range s.indexes.columns(table) {
		if v, ok := row[col]; ok {
			keys = append(keys, s.idxKey(table, col, v))
			idxCols = append(idxCols, col)
		}
	}
	args := append([]any{id}, rowArgs(row)...)

	n, err := insertScript.Run(ctx, s.client, keys, args...).Int()
	if err != nil {
		return nil, storeErr(err, "insert", table)
	}
	switch {
	case n == 0:
		return nil, xerrors.Wrapf(ErrConflict, "insert %s.%s", table, IDColumn)
	case n < 0:
		return nil, xerrors.Wrapf(ErrConflict, "insert %s.%s", table, idxCols[-n-1])
	}
	return row, nil
}

func (s *RedisStore) Update(ctx context.Context, table string, f Filter, patch Row) (int, error) {
	if err := checkPatch(s.indexes, table, patch); err != nil {
		return 0, err
	}
	ids, err := s.candidates(ctx, table, f)
	if err != nil {
		return 0, storeErr(err, "update", table)
	}
	args := append(filterArgs(f), rowArgs(patch)...)
	affected := 0
	for _, id := range ids {
		n, err := updateScript.Run(ctx, s.client, []string{s.rowKey(table, id)}, args...).Int()
		if err != nil {
			return affected, storeErr(err, "update", table)
		}
		affected += n
	}
	return affected, nil
}

func (s *RedisStore) Increment(ctx context.Context, table string, f Filter, column string, delta int64) (int, error) {
	if s.indexes.indexed(table, column) {
		return 0, xerrors.Wrapf(ErrIndexedColumn, "increment %s.%s", table, column)
	}
	ids, err := s.candidates(ctx, table, f)
	if err != nil {
		return 0, storeErr(err, "increment", table)
	}
	args := append(filterArgs(f), column, delta)
	affected := 0
	for _, id := range ids {
		n, err := incrementScript.Run(ctx, s.client, []string{s.rowKey(table, id)}, args...).Int()
		if err != nil {
			return affected, storeErr(err, "increment", table)
		}
		affected += n
	}
	return affected, nil
}

func (s *RedisStore) Delete(ctx context.Context, table string, f Filter) (int, error) {
	rows, err := s.load(ctx, table, f)
	if err != nil {
		return 0, storeErr(err, "delete", table)
	}
	affected := 0
	for _, row := range rows {
		id := row[IDColumn]
		keys := []string{s.rowKey(table, id), s.idsKey(table)}
		for _, col := range s.indexes.columns(table) {
			if v, ok := row[col]; ok {
				keys = append(keys, s.idxKey(table, col, v))
			}
		}
		args := append([]any{id}, filterArgs(f)...)
		n, err := deleteScript.Run(ctx, s.client, keys, args...).Int()
		if err != nil {
			return affected, storeErr(err, "delete", table)
		}
		affected += n
	}
	return affected, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return storeErr(s.client.Ping(ctx).Err(), "ping", "")
}
