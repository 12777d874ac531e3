package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jmoiron/sqlx"
)

func classifyError(err error, query string) error {
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Kind: errorKind(err), Query: query, Err: err}
}

func errorKind(err error) ErrorKind {
	if kind, ok := sqliteErrorKind(err); ok {
		return kind
	}

	if kind, ok := postgresErrorKind(err); ok {
		return kind
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return KindConnection
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindConnection
	}

	return KindOther
}

// RunInTransaction runs fn on a Conn bound to a new transaction, committing
// when fn returns nil and rolling back otherwise. Use it when a failing
// did hook must undo the write that preceded it.
func RunInTransaction(ctx context.Context, db *sqlx.DB, fn func(tx *Conn) error, options ...ConnOption) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return classifyError(err, "BEGIN")
	}
	defer tx.Rollback()

	conn, err := NewConn(tx, options...)
	if err != nil {
		return err
	}

	if err := fn(conn); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", classifyError(err, "COMMIT"))
	}

	return nil
}
