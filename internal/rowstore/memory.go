package rowstore

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

type memTable struct {
	rows  map[string]Row
	order []string
	// unique[col][value] = id
	unique map[string]map[string]string
}

// MemoryStore keeps every table in process memory behind one mutex. It is the
// default for local runs and tests; data does not survive a restart.
type MemoryStore struct {
	mu      sync.Mutex
	indexes Indexes
	tables  map[string]*memTable
}

func NewMemory(indexes Indexes) *MemoryStore {
	return &MemoryStore{indexes: indexes, tables: make(map[string]*memTable)}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) table(name string) *memTable {
	t, ok := m.tables[name]
	if !ok {
		t = &memTable{rows: make(map[string]Row), unique: make(map[string]map[string]string)}
		for _, col := range m.indexes.columns(name) {
			t.unique[col] = make(map[string]string)
		}
		m.tables[name] = t
	}
	return t
}

// matching returns ids of rows matching f in insertion order. Caller holds mu.
func (m *MemoryStore) matching(name string, f Filter) []string {
	t := m.table(name)
	if col := m.indexes.lookupColumn(name, f); col != "" {
		id := f[col]
		if col != IDColumn {
			id = t.unique[col][f[col]]
		}
		if row, ok := t.rows[id]; ok && f.Matches(row) {
			return []string{id}
		}
		return nil
	}
	var ids []string
	for _, id := range t.order {
		if f.Matches(t.rows[id]) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (m *MemoryStore) Select(ctx context.Context, table string, f Filter, opts SelectOptions) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, storeErr(err, "select", table)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.matching(table, f)
	res := Result{Count: -1}
	if opts.Count {
		res.Count = len(ids)
	}
	if opts.Limit > 0 && len(ids) > opts.Limit {
		ids = ids[:opts.Limit]
	}
	t := m.table(table)
	for _, id := range ids {
		res.Rows = append(res.Rows, t.rows[id].Clone())
	}
	return res, nil
}

func (m *MemoryStore) Insert(ctx context.Context, table string, row Row) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr(err, "insert", table)
	}
	row = row.Clone()
	if row[IDColumn] == "" {
		row[IDColumn] = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.table(table)

	if _, ok := t.rows[row[IDColumn]]; ok {
		return nil, xerrors.Wrapf(ErrConflict, "insert %s.%s", table, IDColumn)
	}
	for col, vals := range t.unique {
		if v, ok := row[col]; ok {
			if _, taken := vals[v]; taken {
				return nil, xerrors.Wrapf(ErrConflict, "insert %s.%s", table, col)
			}
		}
	}

	id := row[IDColumn]
	t.rows[id] = row
	t.order = append(t.order, id)
	for col, vals := range t.unique {
		if v, ok := row[col]; ok {
			vals[v] = id
		}
	}
	return row.Clone(), nil
}

func (m *MemoryStore) Update(ctx context.Context, table string, f Filter, patch Row) (int, error) {
	if err := checkPatch(m.indexes, table, patch); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, storeErr(err, "update", table)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(table)
	ids := m.matching(table, f)
	for _, id := range ids {
		for k, v := range patch {
			t.rows[id][k] = v
		}
	}
	return len(ids), nil
}

func (m *MemoryStore) Delete(ctx context.Context, table string, f Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeErr(err, "delete", table)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(table)
	ids := m.matching(table, f)
	if len(ids) == 0 {
		return 0, nil
	}
	gone := make(map[string]bool, len(ids))
	for _, id := range ids {
		row := t.rows[id]
		for col, vals := range t.unique {
			if v, ok := row[col]; ok {
				delete(vals, v)
			}
		}
		delete(t.rows, id)
		gone[id] = true
	}
	kept := t.order[:0]
	for _, id := range t.order {
		if !gone[id] {
			kept = append(kept, id)
		}
	}
	t.order = kept
	return len(ids), nil
}

// Increment adds delta to column on every matching row. A NULL column counts
// as zero; a non-integer value is an error and leaves every row unchanged.
func (m *MemoryStore) Increment(ctx context.Context, table string, f Filter, column string, delta int64) (int, error) {
	if m.indexes.indexed(table, column) {
		return 0, xerrors.Wrapf(ErrIndexedColumn, "increment %s.%s", table, column)
	}
	if err := ctx.Err(); err != nil {
		return 0, storeErr(err, "increment", table)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(table)
	ids := m.matching(table, f)
	next := make([]int64, len(ids))
	for i, id := range ids {
		var cur int64
		if s, ok := t.rows[id][column]; ok {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return 0, storeErr(xerrors.Wrapf(err, "column %s is not an integer", column), "increment", table)
			}
			cur = n
		}
		next[i] = cur + delta
	}
	for i, id := range ids {
		t.rows[id][column] = strconv.FormatInt(next[i], 10)
	}
	return len(ids), nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
