package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Postgres targets PostgreSQL 9.5 or later through pgx or lib/pq.
var Postgres Dialect = postgresDialect{}

const insertedFlag = "__inserted"

type PGConfig struct {
	Host     string `env:"PGHOST" envDefault:"localhost" validate:"required"`
	Port     string `env:"PGPORT" envDefault:"5432" validate:"required,numeric"`
	Database string `env:"PGDATABASE" validate:"required"`
	User     string `env:"PGUSER" validate:"required"`
	Password string `env:"PGPASSWORD"`
	SSLMode  string `env:"PGSSLMODE" envDefault:"disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`
}

// DSN returns the connection URL for config.
func (config PGConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(config.User, config.Password),
		Host:     config.Host + ":" + config.Port,
		Path:     "/" + config.Database,
		RawQuery: "sslmode=" + url.QueryEscape(config.SSLMode),
	}
	return u.String()
}

func ConnectPostgresql(config PGConfig) (*sqlx.DB, error) {
	return sqlx.Open("pgx", config.DSN())
}

type postgresDialect struct{}

func (postgresDialect) Name() string                 { return "postgres" }
func (postgresDialect) SupportsReturning() bool      { return true }
func (postgresDialect) RequiresConflictTarget() bool { return true }
func (postgresDialect) bindType() int                { return sqlx.DOLLAR }

// execInsert returns the store assigned key through RETURNING, since
// PostgreSQL drivers do not implement LastInsertId.
func (postgresDialect) execInsert(ctx context.Context, c *Conn, req insertRequest) (InsertionSuccess, error) {
	if req.keyField == "" || SliceContains(req.columns, req.keyField) {
		stmt, err := buildInsert(req.table, req.columns, req.values, nil)
		if err != nil {
			return InsertionSuccess{}, err
		}
		if _, err := c.exec(ctx, stmt); err != nil {
			return InsertionSuccess{}, err
		}
		return InsertionSuccess{Inserted: true}, nil
	}

	stmt, err := buildInsert(req.table, req.columns, req.values, []Expression{Column(req.keyField)})
	if err != nil {
		return InsertionSuccess{}, err
	}

	var id int64
	if err := c.scan(ctx, stmt, &id); err != nil {
		return InsertionSuccess{}, err
	}

	return InsertionSuccess{RowID: sql.NullInt64{Int64: id, Valid: true}, Inserted: true}, nil
}

// execUpsert asks the store whether the row is new: xmax is zero only for
// a tuple created by this statement.
func (d postgresDialect) execUpsert(ctx context.Context, c *Conn, req upsertRequest) (upsertResult, error) {
	var returning []Expression
	switch {
	case req.fetch:
		returning = append(returning, AllColumns)
	case req.table.KeyField != "":
		returning = append(returning, Column(req.table.KeyField))
	}
	if !req.plan.DoNothing() {
		returning = append(returning, Raw(`(xmax = 0) AS "`+insertedFlag+`"`))
	}

	stmt, err := BuildUpsert(d, req.table, req.columns, req.values, req.plan, returning)
	if err != nil {
		return upsertResult{}, err
	}

	if len(returning) == 0 {
		res, err := c.exec(ctx, stmt)
		if err != nil {
			return upsertResult{}, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return upsertResult{}, fmt.Errorf("rows affected: %w", err)
		}
		return upsertResult{InsertionSuccess: InsertionSuccess{Inserted: affected > 0}}, nil
	}

	row, err := c.queryRow(ctx, stmt)
	if err != nil {
		return upsertResult{}, err
	}
	if row == nil {
		// DO NOTHING hit a conflict
		return upsertResult{}, nil
	}

	res := upsertResult{InsertionSuccess: InsertionSuccess{Inserted: true}}
	if flag, ok := row[insertedFlag]; ok {
		inserted, _ := flag.(bool)
		res.Inserted = inserted
		delete(row, insertedFlag)
	}
	if req.fetch {
		res.row = row
	}
	// the returned key identifies the inserted or the updated row
	switch id := row[req.table.KeyField].(type) {
	case int64:
		res.RowID = sql.NullInt64{Int64: id, Valid: true}
	case int32:
		res.RowID = sql.NullInt64{Int64: int64(id), Valid: true}
	}

	return res, nil
}

func postgresErrorKind(err error) (ErrorKind, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return sqlStateKind(pgErr.Code), true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return sqlStateKind(string(pqErr.Code)), true
	}

	return KindOther, false
}

func sqlStateKind(code string) ErrorKind {
	switch {
	case pgerrcode.IsIntegrityConstraintViolation(code):
		return KindConstraintViolation
	case pgerrcode.IsConnectionException(code):
		return KindConnection
	default:
		return KindOther
	}
}
