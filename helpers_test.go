package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE player (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	score INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE counter (
	id INTEGER PRIMARY KEY AUTOINCREMENT
);
CREATE TABLE tag (
	name TEXT PRIMARY KEY
);
CREATE TABLE audit_entry (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	player TEXT NOT NULL,
	action TEXT NOT NULL
);
`

type player struct {
	ID    int64  `db:"id,key auto"`
	Name  string `db:"name"`
	Score int    `db:"score"`
}

type playerRow struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	Score     int    `db:"score"`
	CreatedAt string `db:"created_at"`
}

type counter struct {
	ID int64 `db:"id,key auto"`
}

type tag struct {
	Name string `db:"name,key"`
}

type auditEntry struct {
	ID     int64 `db:",key auto"`
	Player string
	Action string
}

// createTestDB opens a fresh SQLite database with the test schema.
func createTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := ConnectSqlite(SQLiteConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: 5000,
		ForeignKeys: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	return db
}

func createTestConn(t *testing.T) (*Conn, *sqlx.DB) {
	t.Helper()
	db := createTestDB(t)
	conn, err := NewConn(db)
	require.NoError(t, err)
	return conn, db
}

func countRows(t *testing.T, db *sqlx.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.GetContext(context.Background(), &n, "SELECT COUNT(*) FROM "+quoteIdent(table)))
	return n
}
