package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

var (
	// SQLite targets SQLite 3.35 or later (RETURNING, DO UPDATE without
	// a conflict target).
	SQLite Dialect = sqliteDialect{modern: true}

	// SQLiteLegacy targets SQLite 3.24 to 3.34.
	SQLiteLegacy Dialect = sqliteDialect{modern: false}
)

type SQLiteConfig struct {
	Path        string `env:"SQLITE_PATH" validate:"required"`
	BusyTimeout int    `env:"SQLITE_BUSY_TIMEOUT" envDefault:"5000" validate:"gte=0"`
	ForeignKeys bool   `env:"SQLITE_FOREIGN_KEYS" envDefault:"true"`
}

// ConnectSqlite opens a SQLite database limited to a single connection,
// which serializes every write issued through it.
func ConnectSqlite(config SQLiteConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=%t", config.Path, config.BusyTimeout, config.ForeignKeys)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	return db, nil
}

type sqliteDialect struct {
	modern bool
}

func (d sqliteDialect) Name() string {
	if !d.modern {
		return "sqlite (legacy)"
	}
	return "sqlite"
}

func (d sqliteDialect) SupportsReturning() bool      { return d.modern }
func (d sqliteDialect) RequiresConflictTarget() bool { return !d.modern }
func (sqliteDialect) bindType() int                  { return sqlx.QUESTION }

func (sqliteDialect) execInsert(ctx context.Context, c *Conn, req insertRequest) (InsertionSuccess, error) {
	stmt, err := buildInsert(req.table, req.columns, req.values, nil)
	if err != nil {
		return InsertionSuccess{}, err
	}

	res, err := c.exec(ctx, stmt)
	if err != nil {
		return InsertionSuccess{}, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return InsertionSuccess{}, fmt.Errorf("last insert id: %w", err)
	}

	return InsertionSuccess{RowID: sql.NullInt64{Int64: id, Valid: true}, Inserted: true}, nil
}

// execUpsert tells inserts from updates by looking up the row the insert
// would collide with before running it. The lookup and the upsert must run
// on the same serialized connection.
func (d sqliteDialect) execUpsert(ctx context.Context, c *Conn, req upsertRequest) (upsertResult, error) {
	var returning []Expression
	if req.fetch && d.SupportsReturning() {
		returning = []Expression{AllColumns}
	}

	columns, values := req.columns, req.values
	if len(columns) == 0 && req.table.KeyField != "" {
		// a NULL rowid key makes sqlite assign the next one
		columns, values = []string{req.table.KeyField}, []any{nil}
	}

	stmt, err := BuildUpsert(d, req.table, columns, values, req.plan, returning)
	if err != nil {
		return upsertResult{}, err
	}

	keys, err := d.conflictKeys(ctx, c, req.table, req.plan)
	if err != nil {
		return upsertResult{}, err
	}
	existing, found, err := findConflicting(ctx, c, req.table, keys, columns, values)
	if err != nil {
		return upsertResult{}, err
	}

	var res upsertResult
	if len(returning) > 0 {
		if res.row, err = c.queryRow(ctx, stmt); err != nil {
			return upsertResult{}, err
		}
	} else if _, err := c.exec(ctx, stmt); err != nil {
		return upsertResult{}, err
	}

	var changes, last int64
	if err := c.scan(ctx, Statement{SQL: "SELECT changes(), last_insert_rowid()"}, &changes, &last); err != nil {
		return upsertResult{}, err
	}

	switch {
	case changes == 0:
		// DO NOTHING kept the stored row
	case found:
		res.RowID = existing
	default:
		res.Inserted = true
		res.RowID = sql.NullInt64{Int64: last, Valid: true}
	}

	return res, nil
}

// conflictKeys returns the column sets an upsert with plan can collide on:
// its conflict target, or every unique key of the table when sqlite infers
// the constraint.
func (d sqliteDialect) conflictKeys(ctx context.Context, c *Conn, table TableDef, plan ConflictPlan) ([][]string, error) {
	target := Map(plan.target, Column.Name)
	if len(target) == 0 && !plan.DoNothing() && d.RequiresConflictTarget() {
		target = Map(plan.primaryKey, Column.Name)
	}
	if len(target) > 0 {
		return [][]string{target}, nil
	}
	return sqliteUniqueKeys(ctx, c, table)
}

// sqliteUniqueKeys reads the primary key and the unique indexes of table.
// Indexes on expressions are skipped.
func sqliteUniqueKeys(ctx context.Context, c *Conn, table TableDef) ([][]string, error) {
	var keys [][]string

	pk, err := c.queryStrings(ctx, sqlitePragma(table, "table_info", table.Name, " WHERE pk > 0 ORDER BY pk"))
	if err != nil {
		return nil, fmt.Errorf("read primary key of %s: %w", table.Name, err)
	}
	if len(pk) > 0 {
		keys = append(keys, Map(pk, func(n sql.NullString) string { return n.String }))
	}

	indexes, err := c.queryStrings(ctx, sqlitePragma(table, "index_list", table.Name, ` WHERE "unique" = 1`))
	if err != nil {
		return nil, fmt.Errorf("read indexes of %s: %w", table.Name, err)
	}

next:
	for _, index := range indexes {
		names, err := c.queryStrings(ctx, sqlitePragma(table, "index_info", index.String, " ORDER BY seqno"))
		if err != nil {
			return nil, fmt.Errorf("read index %s: %w", index.String, err)
		}
		key := make([]string, 0, len(names))
		for _, n := range names {
			if !n.Valid {
				continue next
			}
			key = append(key, n.String)
		}
		keys = append(keys, key)
	}

	return keys, nil
}

func sqlitePragma(table TableDef, pragma, arg, filter string) Statement {
	if table.Schema != "" {
		return Statement{SQL: "SELECT name FROM pragma_" + pragma + "(?, ?)" + filter, Args: []any{arg, table.Schema}}
	}
	return Statement{SQL: "SELECT name FROM pragma_" + pragma + "(?)" + filter, Args: []any{arg}}
}

// findConflicting looks up a stored row matching one of keys on the values
// about to be inserted and returns its store assigned key. A key with a
// column the insert leaves out cannot be matched and is skipped.
func findConflicting(ctx context.Context, c *Conn, table TableDef, keys [][]string, columns []string, values []any) (sql.NullInt64, bool, error) {
	var selected Expression = Raw("1")
	if table.KeyField != "" {
		selected = Column(table.KeyField)
	}

next:
	for _, key := range keys {
		keyValues := make([]any, len(key))
		for i, k := range key {
			j := slices.Index(columns, k)
			if j < 0 {
				continue next
			}
			keyValues[i] = values[j]
		}

		stmt, err := buildLookup(table, selected, key, keyValues)
		if err != nil {
			return sql.NullInt64{}, false, err
		}

		var stored any
		err = c.scan(ctx, stmt, &stored)
		if errors.Is(err, ErrNoRow) {
			continue
		}
		if err != nil {
			return sql.NullInt64{}, false, fmt.Errorf("look up conflicting row: %w", err)
		}

		var id sql.NullInt64
		if v, ok := stored.(int64); ok && table.KeyField != "" {
			id = sql.NullInt64{Int64: v, Valid: true}
		}
		return id, true, nil
	}

	return sql.NullInt64{}, false, nil
}

func sqliteErrorKind(err error) (ErrorKind, bool) {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return KindOther, false
	}

	switch se.Code {
	case sqlite3.ErrConstraint:
		return KindConstraintViolation, true
	case sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrNotADB:
		return KindConnection, true
	default:
		return KindOther, true
	}
}
