package store

import (
	"context"
	"fmt"
)

// Dialect captures what differs between the supported stores when
// executing insert-class statements.
type Dialect interface {
	Name() string
	SupportsReturning() bool
	// RequiresConflictTarget reports whether DO UPDATE needs an explicit
	// conflict target. The primary key is used when none is given.
	RequiresConflictTarget() bool

	bindType() int
	execInsert(ctx context.Context, c *Conn, req insertRequest) (InsertionSuccess, error)
	execUpsert(ctx context.Context, c *Conn, req upsertRequest) (upsertResult, error)
}

type insertRequest struct {
	table    TableDef
	columns  []string
	values   []any
	keyField string
}

type upsertRequest struct {
	table   TableDef
	columns []string
	values  []any
	plan    ConflictPlan
	fetch   bool
}

type upsertResult struct {
	InsertionSuccess
	// row is the RETURNING row. nil when nothing was returned.
	row Row
}

// DialectFor returns the dialect for a database/sql driver name.
func DialectFor(driverName string) (Dialect, error) {
	switch driverName {
	case "sqlite3":
		return SQLite, nil
	case "pgx", "pgx/v5", "postgres":
		return Postgres, nil
	default:
		return nil, fmt.Errorf("no dialect for driver %q", driverName)
	}
}
