package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hookedPlayer records every callback it receives.
type hookedPlayer struct {
	ID    int64  `db:"id,key auto"`
	Name  string `db:"name"`
	Score int    `db:"score"`

	calls    []string
	suppress bool
	failDid  error
}

func (p *hookedPlayer) GetTableDef() TableDef {
	return TableDef{Name: "player", KeyField: "id", PrimaryField: []string{"id"}}
}

func (p *hookedPlayer) WillSave(ctx context.Context, conn *Conn) error {
	p.calls = append(p.calls, "willSave")
	return nil
}

func (p *hookedPlayer) AroundSave(ctx context.Context, conn *Conn, save func() (PersistenceSuccess, error)) (PersistenceSuccess, error) {
	p.calls = append(p.calls, "aroundSave-pre")
	saved, err := save()
	p.calls = append(p.calls, "aroundSave-post")
	return saved, err
}

func (p *hookedPlayer) DidSave(ctx context.Context, conn *Conn, saved PersistenceSuccess) error {
	p.calls = append(p.calls, "didSave")
	return p.failDid
}

func (p *hookedPlayer) WillInsert(ctx context.Context, conn *Conn) error {
	p.calls = append(p.calls, "willInsert")
	return nil
}

func (p *hookedPlayer) AroundInsert(ctx context.Context, conn *Conn, insert func() (InsertionSuccess, error)) (InsertionSuccess, error) {
	p.calls = append(p.calls, "aroundInsert-pre")
	if p.suppress {
		return InsertionSuccess{}, nil
	}
	inserted, err := insert()
	p.calls = append(p.calls, "aroundInsert-post")
	return inserted, err
}

func (p *hookedPlayer) DidInsert(ctx context.Context, conn *Conn, inserted InsertionSuccess) error {
	p.calls = append(p.calls, "didInsert")
	return nil
}

func (p *hookedPlayer) WillUpdate(ctx context.Context, conn *Conn) error {
	p.calls = append(p.calls, "willUpdate")
	return nil
}

func (p *hookedPlayer) DidUpdate(ctx context.Context, conn *Conn, updated PersistenceSuccess) error {
	p.calls = append(p.calls, "didUpdate")
	return nil
}

// auditedPlayer writes an audit entry from its did hooks.
type auditedPlayer struct {
	ID    int64  `db:"id,key auto"`
	Name  string `db:"name"`
	Score int    `db:"score"`
}

func (p *auditedPlayer) GetTableDef() TableDef {
	return TableDef{Name: "player", KeyField: "id"}
}

func (p *auditedPlayer) DidInsert(ctx context.Context, conn *Conn, inserted InsertionSuccess) error {
	action := "update"
	if inserted.Inserted {
		action = "insert"
	}
	_, err := Insert(ctx, conn, &auditEntry{Player: p.Name, Action: action})
	return err
}

// normalizedPlayer fixes its name before every save.
type normalizedPlayer struct {
	ID    int64  `db:"id,key auto"`
	Name  string `db:"name"`
	Score int    `db:"score"`
}

func (p *normalizedPlayer) GetTableDef() TableDef {
	return TableDef{Name: "player"}
}

func (p *normalizedPlayer) WillSave(ctx context.Context, conn *Conn) error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	p.Name = "player:" + p.Name
	return nil
}

func TestInsert(t *testing.T) {
	conn, db := createTestConn(t)
	ctx := context.Background()

	p := &player{Name: "alice", Score: 10}
	inserted, err := Insert(ctx, conn, p)
	require.NoError(t, err)
	assert.True(t, inserted.Inserted)
	assert.True(t, inserted.RowID.Valid)
	assert.Equal(t, inserted.RowID.Int64, p.ID)
	assert.Equal(t, 1, countRows(t, db, "player"))

	_, err = Insert(ctx, conn, &player{Name: "alice"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKeyAlreadyExists)
	assert.True(t, IsConstraintViolation(err))
	assert.Equal(t, 1, countRows(t, db, "player"))
}

func TestInsertHookOrder(t *testing.T) {
	conn, _ := createTestConn(t)

	p := &hookedPlayer{Name: "alice"}
	_, err := Insert(context.Background(), conn, p)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"willSave", "aroundSave-pre",
		"willInsert", "aroundInsert-pre", "aroundInsert-post", "didInsert",
		"aroundSave-post", "didSave",
	}, p.calls)
	assert.NotZero(t, p.ID)
}

func TestUpsertHookOrder(t *testing.T) {
	conn, _ := createTestConn(t)

	p := &hookedPlayer{Name: "alice"}
	saved, err := Upsert(context.Background(), conn, p)
	require.NoError(t, err)
	assert.True(t, saved.IsInsert())
	assert.Equal(t, []string{
		"willSave", "aroundSave-pre",
		"willInsert", "aroundInsert-pre", "aroundInsert-post", "didInsert",
		"aroundSave-post", "didSave",
	}, p.calls)
}

func TestUpsertInsertThenUpdate(t *testing.T) {
	conn, db := createTestConn(t)
	ctx := context.Background()

	p := &player{Name: "alice", Score: 10}
	saved, err := Upsert(ctx, conn, p)
	require.NoError(t, err)
	assert.True(t, saved.Inserted)
	assert.True(t, saved.RowID.Valid)
	assert.Equal(t, saved.RowID.Int64, p.ID)

	saved, err = Upsert(ctx, conn, p)
	require.NoError(t, err)
	assert.False(t, saved.Inserted)
	assert.True(t, saved.IsUpdate())
	assert.Equal(t, 1, countRows(t, db, "player"))

	// conflict on the unique name rather than the key
	saved, err = Upsert(ctx, conn, &player{Name: "alice", Score: 99})
	require.NoError(t, err)
	assert.False(t, saved.Inserted)

	var score int
	require.NoError(t, db.Get(&score, `SELECT score FROM player WHERE name = ?`, "alice"))
	assert.Equal(t, 99, score)
}

func TestUpsertInsertedAfterOtherTable(t *testing.T) {
	conn, db := createTestConn(t)
	ctx := context.Background()

	// leaves last_insert_rowid() at 1, the rowid the player gets next
	_, err := Insert(ctx, conn, &counter{})
	require.NoError(t, err)

	p := &player{Name: "alice"}
	saved, err := Upsert(ctx, conn, p)
	require.NoError(t, err)
	assert.True(t, saved.Inserted)
	assert.Equal(t, sql.NullInt64{Int64: 1, Valid: true}, saved.RowID)
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, 1, countRows(t, db, "player"))
}

func TestUpsertReinsertAfterDelete(t *testing.T) {
	conn, db := createTestConn(t)
	ctx := context.Background()

	saved, err := Upsert(ctx, conn, &player{ID: 7, Name: "alice", Score: 1})
	require.NoError(t, err)
	assert.True(t, saved.Inserted)

	deleted, err := Delete(ctx, conn, &player{ID: 7})
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 0, countRows(t, db, "player"))

	saved, err = Upsert(ctx, conn, &player{ID: 7, Name: "alice", Score: 2})
	require.NoError(t, err)
	assert.True(t, saved.Inserted)
	assert.Equal(t, int64(7), saved.RowID.Int64)
}

func TestUpsertConflictAssignsKey(t *testing.T) {
	conn, _ := createTestConn(t)
	ctx := context.Background()

	alice := &player{Name: "alice", Score: 1}
	_, err := Insert(ctx, conn, alice)
	require.NoError(t, err)
	_, err = Insert(ctx, conn, &player{Name: "bob"})
	require.NoError(t, err)

	p := &player{Name: "alice", Score: 2}
	saved, err := Upsert(ctx, conn, p, OnConflict("name"))
	require.NoError(t, err)
	assert.False(t, saved.Inserted)
	assert.True(t, saved.RowID.Valid)
	assert.Equal(t, alice.ID, saved.RowID.Int64)
	assert.Equal(t, alice.ID, p.ID)

	// without a target the unique name index is found as well
	p = &player{Name: "alice", Score: 3}
	saved, err = Upsert(ctx, conn, p)
	require.NoError(t, err)
	assert.False(t, saved.Inserted)
	assert.Equal(t, alice.ID, p.ID)

	// DO NOTHING leaves the record untouched
	keep := DoUpdate(func(Excluded) []Assignment {
		return []Assignment{Column("name").Noop(), Column("score").Noop()}
	})
	p = &player{Name: "alice", Score: 4}
	saved, err = Upsert(ctx, conn, p, keep)
	require.NoError(t, err)
	assert.False(t, saved.Inserted)
	assert.False(t, saved.RowID.Valid)
	assert.Zero(t, p.ID)
}

func TestUpsertExplicitAssignments(t *testing.T) {
	conn, _ := createTestConn(t)
	ctx := context.Background()

	_, err := Upsert(ctx, conn, &player{Name: "alice", Score: 10})
	require.NoError(t, err)

	addScore := DoUpdate(func(excluded Excluded) []Assignment {
		return []Assignment{Column("score").Set(Column("score").Add(excluded.Col("score")))}
	})
	_, err = Upsert(ctx, conn, &player{Name: "alice", Score: 5}, OnConflict("name"), addScore)
	require.NoError(t, err)

	repo, err := CreateRepository[player](conn)
	require.NoError(t, err)
	found, err := repo.Find(ctx, int64(1))
	require.NoError(t, err)
	assert.Equal(t, 15, found.Score)

	keep := DoUpdate(func(Excluded) []Assignment {
		return []Assignment{Column("score").Noop()}
	})
	_, err = Upsert(ctx, conn, &player{Name: "alice", Score: 0}, OnConflict("name"), keep)
	require.NoError(t, err)
	found, err = repo.Find(ctx, int64(1))
	require.NoError(t, err)
	assert.Equal(t, 15, found.Score)
}

func TestUpsertInvalidAssignment(t *testing.T) {
	conn, db := createTestConn(t)

	p := &hookedPlayer{Name: "alice"}
	_, err := Upsert(context.Background(), conn, p, DoUpdate(func(Excluded) []Assignment {
		return []Assignment{Column("id").Set(1)}
	}))
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, 0, countRows(t, db, "player"))
	assert.NotContains(t, p.calls, "didInsert")
}

func TestUpsertSuppressed(t *testing.T) {
	conn, db := createTestConn(t)

	p := &hookedPlayer{Name: "alice", suppress: true}
	_, err := Upsert(context.Background(), conn, p)
	assert.ErrorIs(t, err, ErrSuppressed)
	assert.Equal(t, 0, countRows(t, db, "player"))
	assert.NotContains(t, p.calls, "didInsert")
	assert.NotContains(t, p.calls, "didSave")
	assert.Zero(t, p.ID)
}

func TestUpsertDoNothing(t *testing.T) {
	conn, db := createTestConn(t)
	ctx := context.Background()

	saved, err := Upsert(ctx, conn, &tag{Name: "go"})
	require.NoError(t, err)
	assert.True(t, saved.Inserted)

	saved, err = Upsert(ctx, conn, &tag{Name: "go"})
	require.NoError(t, err)
	assert.False(t, saved.Inserted)
	assert.Equal(t, 1, countRows(t, db, "tag"))

	fetched, err := UpsertAndFetch[tag](ctx, conn, &tag{Name: "go"})
	require.NoError(t, err)
	assert.Equal(t, "go", fetched.Name)
}

func TestUpsertKeyOnlyRecord(t *testing.T) {
	conn, db := createTestConn(t)
	ctx := context.Background()

	c := &counter{}
	saved, err := Upsert(ctx, conn, c)
	require.NoError(t, err)
	assert.True(t, saved.Inserted)
	assert.Equal(t, int64(1), c.ID)

	saved, err = Upsert(ctx, conn, c)
	require.NoError(t, err)
	assert.False(t, saved.Inserted)
	assert.Equal(t, 1, countRows(t, db, "counter"))

	fetched, err := UpsertAndFetch[counter](ctx, conn, &counter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), fetched.ID)
}

func TestUpsertAndFetch(t *testing.T) {
	conn, _ := createTestConn(t)
	ctx := context.Background()

	row, err := UpsertAndFetch[playerRow](ctx, conn, &player{Name: "alice", Score: 10})
	require.NoError(t, err)
	assert.NotZero(t, row.ID)
	assert.Equal(t, "alice", row.Name)
	assert.Equal(t, 10, row.Score)
	assert.NotEmpty(t, row.CreatedAt)

	p := &player{Name: "alice", Score: 20}
	fetched, err := UpsertAndFetch[player](ctx, conn, p, OnConflict("name"))
	require.NoError(t, err)
	assert.Equal(t, row.ID, fetched.ID)
	assert.Equal(t, 20, fetched.Score)
	// the record itself is replaced by the stored row
	assert.Equal(t, row.ID, p.ID)
}

func TestWillSaveChangesRecord(t *testing.T) {
	conn, db := createTestConn(t)
	ctx := context.Background()

	_, err := Upsert(ctx, conn, &normalizedPlayer{Name: "alice"})
	require.NoError(t, err)

	var name string
	require.NoError(t, db.Get(&name, `SELECT name FROM player`))
	assert.Equal(t, "player:alice", name)

	_, err = Upsert(ctx, conn, &normalizedPlayer{})
	assert.EqualError(t, err, "name is required")
}

func TestDidHookWritesReentrant(t *testing.T) {
	conn, db := createTestConn(t)
	ctx := context.Background()

	alice := &auditedPlayer{Name: "alice"}
	_, err := Upsert(ctx, conn, alice)
	require.NoError(t, err)
	_, err = Upsert(ctx, conn, &auditedPlayer{Name: "bob"})
	require.NoError(t, err)
	_, err = Upsert(ctx, conn, alice)
	require.NoError(t, err)

	var actions []string
	require.NoError(t, db.Select(&actions, `SELECT action FROM audit_entry ORDER BY id`))
	assert.Equal(t, []string{"insert", "insert", "update"}, actions)
	assert.Equal(t, 2, countRows(t, db, "player"))
}

func TestDidHookFailureInTransaction(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()
	errAudit := errors.New("audit failed")

	err := RunInTransaction(ctx, db, func(tx *Conn) error {
		_, err := Upsert(ctx, tx, &hookedPlayer{Name: "alice", failDid: errAudit})
		return err
	})
	assert.ErrorIs(t, err, errAudit)
	assert.Equal(t, 0, countRows(t, db, "player"))

	// outside a transaction the write stays
	conn, err := NewConn(db)
	require.NoError(t, err)
	_, err = Upsert(ctx, conn, &hookedPlayer{Name: "alice", failDid: errAudit})
	assert.ErrorIs(t, err, errAudit)
	assert.Equal(t, 1, countRows(t, db, "player"))
}

func TestUpdate(t *testing.T) {
	conn, db := createTestConn(t)
	ctx := context.Background()

	p := &hookedPlayer{Name: "alice", Score: 1}
	_, err := Insert(ctx, conn, p)
	require.NoError(t, err)

	p.calls = nil
	p.Score = 5
	saved, err := Update(ctx, conn, p)
	require.NoError(t, err)
	assert.True(t, saved.IsUpdate())
	assert.Equal(t, p.ID, saved.RowID.Int64)
	assert.Equal(t, []string{
		"willSave", "aroundSave-pre", "willUpdate", "didUpdate", "aroundSave-post", "didSave",
	}, p.calls)

	p.Name, p.Score = "renamed", 100
	_, err = Update(ctx, conn, p, "score")
	require.NoError(t, err)

	var got player
	require.NoError(t, db.Get(&got, `SELECT id, name, score FROM player`))
	assert.Equal(t, "alice", got.Name)
	assert.Equal(t, 100, got.Score)

	_, err = Update(ctx, conn, &player{ID: 99, Name: "ghost"})
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = Update(ctx, conn, &player{Name: "nokey"})
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = Update(ctx, conn, p, "email")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestSave(t *testing.T) {
	conn, db := createTestConn(t)
	ctx := context.Background()

	p := &player{Name: "alice", Score: 1}
	saved, err := Save(ctx, conn, p)
	require.NoError(t, err)
	assert.True(t, saved.IsInsert())
	assert.NotZero(t, p.ID)

	p.Score = 2
	saved, err = Save(ctx, conn, p)
	require.NoError(t, err)
	assert.True(t, saved.IsUpdate())

	// a key that is not stored yet falls back to insert
	saved, err = Save(ctx, conn, &player{ID: 42, Name: "bob"})
	require.NoError(t, err)
	assert.True(t, saved.IsInsert())
	assert.Equal(t, 2, countRows(t, db, "player"))
}

func TestDelete(t *testing.T) {
	conn, db := createTestConn(t)
	ctx := context.Background()

	p := &player{Name: "alice"}
	_, err := Insert(ctx, conn, p)
	require.NoError(t, err)

	deleted, err := Delete(ctx, conn, p)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 0, countRows(t, db, "player"))

	deleted, err = Delete(ctx, conn, p)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestInvalidRecord(t *testing.T) {
	conn, _ := createTestConn(t)
	ctx := context.Background()

	_, err := Upsert(ctx, conn, player{Name: "value"})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = Insert(ctx, conn, (*player)(nil))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestRepository(t *testing.T) {
	conn, _ := createTestConn(t)
	ctx := context.Background()

	repo, err := CreateRepository[player](conn)
	require.NoError(t, err)
	assert.Equal(t, TableDef{Name: "player", KeyField: "id", PrimaryField: []string{"id"}}, repo.GetTableDef())
	assert.Same(t, conn, repo.Conn())

	p := &player{Name: "alice", Score: 3}
	_, err = repo.Insert(ctx, p)
	require.NoError(t, err)

	found, err := repo.Find(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, *p, found)

	p.Score = 4
	_, err = repo.Save(ctx, p)
	require.NoError(t, err)

	fetched, err := repo.UpsertAndFetch(ctx, &player{Name: "alice", Score: 8}, OnConflict("name"))
	require.NoError(t, err)
	assert.Equal(t, p.ID, fetched.ID)
	assert.Equal(t, 8, fetched.Score)

	deleted, err := repo.Delete(ctx, p)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = repo.Find(ctx, p.ID)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = repo.Find(ctx)
	assert.ErrorIs(t, err, ErrConfiguration)
}
