package store

import "database/sql"

// InsertionSuccess is the outcome of an insert-class write.
type InsertionSuccess struct {
	// RowID is the store assigned key of the inserted or updated row, when
	// the table has one. It is invalid when DO NOTHING kept the stored row.
	RowID sql.NullInt64
	// Inserted is false when an upsert resolved a conflict instead of
	// inserting a new row.
	Inserted bool
}

// PersistenceSuccess is the outcome of a save-level write: insert, update
// or upsert.
type PersistenceSuccess struct {
	InsertionSuccess
}

// IsInsert reports whether the write logically inserted a row.
func (p PersistenceSuccess) IsInsert() bool {
	return p.Inserted
}

// IsUpdate reports whether the write updated an existing row.
func (p PersistenceSuccess) IsUpdate() bool {
	return !p.Inserted
}
