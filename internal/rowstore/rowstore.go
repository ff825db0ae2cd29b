// Package rowstore is a small row-oriented store with equality filters, unique
// indexes and atomic per-row updates. It backs resources and subscriptions.
//
// A Row maps column names to string values; a missing column is NULL. Filters
// match rows whose columns equal every given value, so a filter on a NULL
// column never matches.
package rowstore

import (
	"context"
	"errors"
	"sort"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

// IDColumn is assigned by Insert when the row does not carry one.
const IDColumn = "id"

var (
	// ErrConflict is returned by Insert when a unique column value is taken.
	ErrConflict = errors.New("rowstore: unique value already exists")
	// ErrIndexedColumn is returned by Update when the patch touches the id or a
	// unique column. Those are immutable once inserted.
	ErrIndexedColumn = errors.New("rowstore: indexed columns are immutable")
)

type Row map[string]string

// Clone returns a copy that shares nothing with r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

type Filter map[string]string

// Matches reports whether every filter column is present in row with an equal value.
func (f Filter) Matches(row Row) bool {
	for k, want := range f {
		got, ok := row[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

type SelectOptions struct {
	// Limit caps returned rows, 0 means unlimited.
	Limit int
	// Count requests the total number of matches, ignoring Limit.
	Count bool
}

type Result struct {
	Rows []Row
	// Count is -1 unless SelectOptions.Count was set.
	Count int
}

// First returns the first row, or nil when there is none.
func (r Result) First() Row {
	if len(r.Rows) == 0 {
		return nil
	}
	return r.Rows[0]
}

// Indexes lists unique columns per table. The id column is always unique.
type Indexes map[string][]string

func (ix Indexes) columns(table string) []string { return ix[table] }

func (ix Indexes) indexed(table, col string) bool {
	if col == IDColumn {
		return true
	}
	for _, c := range ix[table] {
		if c == col {
			return true
		}
	}
	return false
}

// lookupColumn picks an indexed column from f to drive a point lookup,
// preferring id. Returns "" when f has no indexed column.
func (ix Indexes) lookupColumn(table string, f Filter) string {
	if _, ok := f[IDColumn]; ok {
		return IDColumn
	}
	cols := make([]string, 0, len(f))
	for c := range f {
		if ix.indexed(table, c) {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return ""
	}
	sort.Strings(cols)
	return cols[0]
}

// Store is implemented by the memory and redis backends. Update, Delete and
// Increment return the number of rows affected; each row is changed atomically
// and only if it still matches the filter at the moment of the write.
type Store interface {
	Select(ctx context.Context, table string, f Filter, opts SelectOptions) (Result, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	Update(ctx context.Context, table string, f Filter, patch Row) (int, error)
	Delete(ctx context.Context, table string, f Filter) (int, error)
	Increment(ctx context.Context, table string, f Filter, column string, delta int64) (int, error)
	Ping(ctx context.Context) error
}

func checkPatch(ix Indexes, table string, patch Row) error {
	for col := range patch {
		if ix.indexed(table, col) {
			return xerrors.Wrapf(ErrIndexedColumn, "update %s.%s", table, col)
		}
	}
	return nil
}

// storeErr tags backend failures so handlers answer 500 without inspecting them.
func storeErr(err error, op, table string) error {
	if err == nil {
		return nil
	}
	return xerrors.WithKind(xerrors.Wrapf(err, "rowstore %s %s", op, table), xerrors.KindStore)
}
