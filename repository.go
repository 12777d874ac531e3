package store

import (
	"context"
	"fmt"
)

// Repository binds the persistence operations to one record type T, addressed
// as *T.
type Repository[T any] interface {
	Find(ctx context.Context, keys ...any) (T, error)
	Insert(ctx context.Context, value *T) (InsertionSuccess, error)
	Update(ctx context.Context, value *T, columns ...string) (PersistenceSuccess, error)
	Save(ctx context.Context, value *T) (PersistenceSuccess, error)
	Upsert(ctx context.Context, value *T, options ...UpsertOption) (PersistenceSuccess, error)
	UpsertAndFetch(ctx context.Context, value *T, options ...UpsertOption) (T, error)
	Delete(ctx context.Context, value *T) (bool, error)
	Conn() *Conn
	GetTableDef() TableDef
}

type repository[T any] struct {
	conn     *Conn
	tableDef TableDef
}

// CreateRepository checks that T maps to a table and returns a repository
// running on conn.
func CreateRepository[T any](conn *Conn) (Repository[T], error) {
	if conn == nil {
		return nil, configErrorf("repository needs a connection")
	}

	info, err := inspectRecord(new(T))
	if err != nil {
		return nil, err
	}

	return &repository[T]{conn: conn, tableDef: info.table}, nil
}

func (r *repository[T]) Conn() *Conn {
	return r.conn
}

func (r *repository[T]) GetTableDef() TableDef {
	return r.tableDef
}

// Find reads the row whose primary key columns equal keys, given in
// primary key order.
func (r *repository[T]) Find(ctx context.Context, keys ...any) (T, error) {
	var zero T
	if len(keys) != len(r.tableDef.PrimaryField) {
		return zero, configErrorf("%s has %d primary key columns, got %d values", r.tableDef.Name, len(r.tableDef.PrimaryField), len(keys))
	}

	row, err := r.conn.queryRow(ctx, buildSelectByKey(r.tableDef, r.tableDef.PrimaryField, keys))
	if err != nil {
		return zero, fmt.Errorf("find in %s: %w", r.tableDef.Name, err)
	}
	if row == nil {
		return zero, fmt.Errorf("find in %s: %w", r.tableDef.Name, ErrKeyNotFound)
	}

	return DecodeRow[T](row)
}

func (r *repository[T]) Insert(ctx context.Context, value *T) (InsertionSuccess, error) {
	return Insert(ctx, r.conn, value)
}

func (r *repository[T]) Update(ctx context.Context, value *T, columns ...string) (PersistenceSuccess, error) {
	return Update(ctx, r.conn, value, columns...)
}

func (r *repository[T]) Save(ctx context.Context, value *T) (PersistenceSuccess, error) {
	return Save(ctx, r.conn, value)
}

func (r *repository[T]) Upsert(ctx context.Context, value *T, options ...UpsertOption) (PersistenceSuccess, error) {
	return Upsert(ctx, r.conn, value, options...)
}

func (r *repository[T]) UpsertAndFetch(ctx context.Context, value *T, options ...UpsertOption) (T, error) {
	return UpsertAndFetch[T](ctx, r.conn, value, options...)
}

func (r *repository[T]) Delete(ctx context.Context, value *T) (bool, error) {
	return Delete(ctx, r.conn, value)
}
