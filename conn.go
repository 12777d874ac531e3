package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	cenv "github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
)

// Conn is the handle every persistence operation runs on. It wraps a
// *sqlx.DB or *sqlx.Tx.
//
// Conn does no locking. Writes issued through one Conn must be serialized
// by the caller, for example by a connection limited pool or a
// transaction confined to one goroutine.
type Conn struct {
	ext     sqlx.ExtContext
	dialect Dialect
	logger  *slog.Logger
}

// NewConn wraps ext. The dialect is derived from the driver name unless
// WithDialect is given.
func NewConn(ext sqlx.ExtContext, options ...ConnOption) (*Conn, error) {
	opt := &connOption{}
	for _, op := range options {
		op(opt)
	}

	if opt.dialect == nil {
		d, err := DialectFor(ext.DriverName())
		if err != nil {
			return nil, err
		}
		opt.dialect = d
	}

	if opt.logger == nil {
		opt.logger = slog.New(slog.DiscardHandler)
	}

	return &Conn{
		ext:     ext,
		dialect: opt.dialect,
		logger:  opt.logger.With("dialect", opt.dialect.Name()),
	}, nil
}

func (c *Conn) Dialect() Dialect {
	return c.dialect
}

// Ext returns the wrapped executor for statements outside this package.
func (c *Conn) Ext() sqlx.ExtContext {
	return c.ext
}

func (c *Conn) rebind(stmt Statement) string {
	return sqlx.Rebind(c.dialect.bindType(), stmt.SQL)
}

func (c *Conn) exec(ctx context.Context, stmt Statement) (sql.Result, error) {
	c.logger.DebugContext(ctx, "exec", "sql", stmt.SQL, "args", len(stmt.Args))
	res, err := c.ext.ExecContext(ctx, c.rebind(stmt), stmt.Args...)
	if err != nil {
		return nil, classifyError(err, stmt.SQL)
	}
	return res, nil
}

// queryRow returns the first row produced by stmt, or nil when there is
// none. The cursor is always drained and closed before returning.
func (c *Conn) queryRow(ctx context.Context, stmt Statement) (Row, error) {
	c.logger.DebugContext(ctx, "query", "sql", stmt.SQL, "args", len(stmt.Args))
	rows, err := c.ext.QueryxContext(ctx, c.rebind(stmt), stmt.Args...)
	if err != nil {
		return nil, classifyError(err, stmt.SQL)
	}
	defer rows.Close()

	var row Row
	if rows.Next() {
		row = Row{}
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scan returned row: %w", err)
		}
	}
	for rows.Next() {
	}

	if err := rows.Err(); err != nil {
		return nil, classifyError(err, stmt.SQL)
	}
	if err := rows.Close(); err != nil {
		return nil, classifyError(err, stmt.SQL)
	}

	return row, nil
}

func (c *Conn) scan(ctx context.Context, stmt Statement, dest ...any) error {
	c.logger.DebugContext(ctx, "query", "sql", stmt.SQL, "args", len(stmt.Args))
	err := c.ext.QueryRowxContext(ctx, c.rebind(stmt), stmt.Args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNoRow, stmt.SQL)
	}
	if err != nil {
		return classifyError(err, stmt.SQL)
	}
	return nil
}

// queryStrings returns the first column of every row produced by stmt.
func (c *Conn) queryStrings(ctx context.Context, stmt Statement) ([]sql.NullString, error) {
	c.logger.DebugContext(ctx, "query", "sql", stmt.SQL, "args", len(stmt.Args))
	var values []sql.NullString
	if err := sqlx.SelectContext(ctx, c.ext, &values, c.rebind(stmt), stmt.Args...); err != nil {
		return nil, classifyError(err, stmt.SQL)
	}
	return values, nil
}

// LoadConfig reads a connection config (PGConfig, SQLiteConfig) from the
// environment and validates it.
func LoadConfig[C any]() (C, error) {
	var config C
	if err := cenv.Parse(&config); err != nil {
		return config, fmt.Errorf("failed to parse environment: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&config); err != nil {
		return config, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}
