package store

import (
	"context"
	"errors"
	"fmt"
)

// Insert writes record as a new row.
//
// Hooks run as WillSave, AroundSave(WillInsert, AroundInsert, DidInsert),
// DidSave. A zero store assigned key is left to the store and written back
// into the record once known. A uniqueness conflict is returned as a
// *StoreError matching ErrKeyAlreadyExists.
func Insert(ctx context.Context, conn *Conn, record any) (InsertionSuccess, error) {
	saved, err := savePipeline(ctx, conn, record).run(func() (PersistenceSuccess, error) {
		inserted, err := insertChain(ctx, conn, record)
		return PersistenceSuccess{InsertionSuccess: inserted}, err
	})
	if err != nil {
		return InsertionSuccess{}, err
	}
	return saved.InsertionSuccess, nil
}

// Update writes the non key columns of record, or only columns when given,
// to the row its primary key identifies. ErrKeyNotFound is returned when
// no such row exists.
func Update(ctx context.Context, conn *Conn, record any, columns ...string) (PersistenceSuccess, error) {
	return savePipeline(ctx, conn, record).run(func() (PersistenceSuccess, error) {
		return updateChain(ctx, conn, record, columns)
	})
}

// Save updates the row of record, inserting it when there is none. Both
// paths run inside one set of save hooks.
func Save(ctx context.Context, conn *Conn, record any) (PersistenceSuccess, error) {
	return savePipeline(ctx, conn, record).run(func() (PersistenceSuccess, error) {
		info, err := inspectRecord(record)
		if err != nil {
			return PersistenceSuccess{}, err
		}

		if info.hasKey() {
			saved, err := updateChain(ctx, conn, record, nil)
			if !errors.Is(err, ErrKeyNotFound) {
				return saved, err
			}
		}

		inserted, err := insertChain(ctx, conn, record)
		return PersistenceSuccess{InsertionSuccess: inserted}, err
	})
}

// Delete removes the row of record and reports whether one existed.
func Delete(ctx context.Context, conn *Conn, record any) (bool, error) {
	return deletePipeline(ctx, conn, record).run(func() (bool, error) {
		info, err := inspectRecord(record)
		if err != nil {
			return false, err
		}

		key, keyValues, err := info.key()
		if err != nil {
			return false, fmt.Errorf("delete from %s: %w", info.table.Name, err)
		}

		res, err := conn.exec(ctx, buildDelete(info.table, key, keyValues))
		if err != nil {
			return false, fmt.Errorf("delete from %s: %w", info.table.Name, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("delete from %s: rows affected: %w", info.table.Name, err)
		}

		return affected > 0, nil
	})
}

// Upsert inserts record, or resolves the conflict when a row with the same
// unique key exists. By default every non primary key column is
// overwritten with its incoming value; see OnConflict and DoUpdate.
//
// The insert hooks run nested in the save hooks exactly like Insert. The
// outcome reports whether a row was inserted or an existing one updated,
// and the key of that row, which is written back into a zero store
// assigned key of record.
func Upsert(ctx context.Context, conn *Conn, record any, options ...UpsertOption) (PersistenceSuccess, error) {
	return upsertChain(ctx, conn, record, newUpsertOption(options), nil)
}

// UpsertAndFetch runs Upsert and returns the resulting row decoded as T.
//
// Decoding happens before DidInsert. When record is a *T it is replaced by
// the decoded row, so DidInsert and DidSave see values the store filled
// in.
//
// When the statement returns no row, because DO NOTHING kept the stored
// row or the dialect has no RETURNING (SQLiteLegacy), the row is read back
// with a SELECT by the affected key, the conflict target or the primary
// key, in that order. That read is a separate statement; run both in a
// transaction when the row may change in between.
func UpsertAndFetch[T any](ctx context.Context, conn *Conn, record any, options ...UpsertOption) (T, error) {
	var fetched T
	_, err := upsertChain(ctx, conn, record, newUpsertOption(options), func(row Row) error {
		v, err := DecodeRow[T](row)
		if err != nil {
			return err
		}
		fetched = v
		if target, ok := record.(*T); ok {
			*target = v
		}
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return fetched, nil
}

func newUpsertOption(options []UpsertOption) *upsertOption {
	opt := &upsertOption{}
	for _, op := range options {
		op(opt)
	}
	return opt
}

func insertChain(ctx context.Context, conn *Conn, record any) (InsertionSuccess, error) {
	return insertPipeline(ctx, conn, record).run(func() (InsertionSuccess, error) {
		info, err := inspectRecord(record)
		if err != nil {
			return InsertionSuccess{}, err
		}

		columns, values := info.insertColumns()
		inserted, err := conn.dialect.execInsert(ctx, conn, insertRequest{
			table:    info.table,
			columns:  columns,
			values:   values,
			keyField: info.table.KeyField,
		})
		if err != nil {
			return InsertionSuccess{}, fmt.Errorf("insert into %s: %w", info.table.Name, err)
		}

		if inserted.RowID.Valid {
			assignRowID(record, info, inserted.RowID.Int64)
		}
		return inserted, nil
	})
}

func updateChain(ctx context.Context, conn *Conn, record any, only []string) (PersistenceSuccess, error) {
	return updatePipeline(ctx, conn, record).run(func() (PersistenceSuccess, error) {
		info, err := inspectRecord(record)
		if err != nil {
			return PersistenceSuccess{}, err
		}

		key, keyValues, err := info.key()
		if err != nil {
			return PersistenceSuccess{}, fmt.Errorf("update %s: %w", info.table.Name, err)
		}

		columns, values, err := info.updateColumns(only)
		if err != nil {
			return PersistenceSuccess{}, err
		}

		res, err := conn.exec(ctx, buildUpdate(info.table, columns, values, key, keyValues))
		if err != nil {
			return PersistenceSuccess{}, fmt.Errorf("update %s: %w", info.table.Name, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return PersistenceSuccess{}, fmt.Errorf("update %s: rows affected: %w", info.table.Name, err)
		}
		if affected == 0 {
			return PersistenceSuccess{}, fmt.Errorf("update %s: %w", info.table.Name, ErrKeyNotFound)
		}

		var saved PersistenceSuccess
		if id, ok := info.rowID(); ok {
			saved.RowID.Int64, saved.RowID.Valid = id, true
		}
		return saved, nil
	})
}

func upsertChain(ctx context.Context, conn *Conn, record any, opt *upsertOption, decode func(Row) error) (PersistenceSuccess, error) {
	return savePipeline(ctx, conn, record).run(func() (PersistenceSuccess, error) {
		inserted, err := insertPipeline(ctx, conn, record).run(func() (InsertionSuccess, error) {
			return performUpsert(ctx, conn, record, opt, decode)
		})
		return PersistenceSuccess{InsertionSuccess: inserted}, err
	})
}

func performUpsert(ctx context.Context, conn *Conn, record any, opt *upsertOption, decode func(Row) error) (InsertionSuccess, error) {
	info, err := inspectRecord(record)
	if err != nil {
		return InsertionSuccess{}, err
	}

	var explicit []Assignment
	if opt.doUpdate != nil {
		explicit = opt.doUpdate(Excluded{})
	}

	plan, err := BuildConflictPlan(info.columns(), info.table.PrimaryField, opt.target, explicit)
	if err != nil {
		return InsertionSuccess{}, fmt.Errorf("upsert into %s: %w", info.table.Name, err)
	}

	columns, values := info.insertColumns()
	res, err := conn.dialect.execUpsert(ctx, conn, upsertRequest{
		table:   info.table,
		columns: columns,
		values:  values,
		plan:    plan,
		fetch:   decode != nil,
	})
	if err != nil {
		return InsertionSuccess{}, fmt.Errorf("upsert into %s: %w", info.table.Name, err)
	}

	if res.RowID.Valid {
		assignRowID(record, info, res.RowID.Int64)
	}

	if decode == nil {
		return res.InsertionSuccess, nil
	}

	row := res.row
	if row == nil {
		// DO NOTHING hit a conflict or the dialect has no RETURNING
		if row, err = fetchStored(ctx, conn, info, res.InsertionSuccess, opt.target); err != nil {
			return InsertionSuccess{}, fmt.Errorf("upsert into %s: %w", info.table.Name, err)
		}
	}

	if err := decode(row); err != nil {
		return InsertionSuccess{}, fmt.Errorf("upsert into %s: %w", info.table.Name, err)
	}

	return res.InsertionSuccess, nil
}

// fetchStored reads the row an upsert left behind: by the key of the
// affected row when known, otherwise by the conflict target or primary key.
func fetchStored(ctx context.Context, conn *Conn, info recordInfo, affected InsertionSuccess, target []string) (Row, error) {
	var key []string
	var values []any
	switch {
	case affected.RowID.Valid && info.table.KeyField != "":
		key, values = []string{info.table.KeyField}, []any{affected.RowID.Int64}
	case len(target) > 0:
		key = target
	default:
		key = info.table.PrimaryField
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: no key to read the stored row by", ErrNoRow)
	}

	if values == nil {
		var err error
		if values, err = info.values(key); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoRow, err)
		}
	}

	row, err := conn.queryRow(ctx, buildSelectByKey(info.table, key, values))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrNoRow
	}
	return row, nil
}
