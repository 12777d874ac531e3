package store

import "context"

// Records opt into persistence callbacks by implementing any of the
// interfaces below. A missing interface is a stage that does nothing.
//
// Will hooks run before the statement is built and may change the record.
// Around hooks receive the write as a function and must call it once for
// the write to happen; not calling it suppresses the operation. They may
// replace the outcome or the error of that call. Did hooks run after a
// successful write; their error is returned to the caller although the
// write already happened.
//
// Insert, update and upsert nest their own stages inside the save stages:
//
//	WillSave, AroundSave(WillInsert, AroundInsert(write), DidInsert), DidSave
//
// Delete has no save stages.

type WillInsertHook interface {
	WillInsert(ctx context.Context, conn *Conn) error
}

type AroundInsertHook interface {
	AroundInsert(ctx context.Context, conn *Conn, insert func() (InsertionSuccess, error)) (InsertionSuccess, error)
}

type DidInsertHook interface {
	DidInsert(ctx context.Context, conn *Conn, inserted InsertionSuccess) error
}

type WillUpdateHook interface {
	WillUpdate(ctx context.Context, conn *Conn) error
}

type AroundUpdateHook interface {
	AroundUpdate(ctx context.Context, conn *Conn, update func() (PersistenceSuccess, error)) (PersistenceSuccess, error)
}

type DidUpdateHook interface {
	DidUpdate(ctx context.Context, conn *Conn, updated PersistenceSuccess) error
}

type WillSaveHook interface {
	WillSave(ctx context.Context, conn *Conn) error
}

type AroundSaveHook interface {
	AroundSave(ctx context.Context, conn *Conn, save func() (PersistenceSuccess, error)) (PersistenceSuccess, error)
}

type DidSaveHook interface {
	DidSave(ctx context.Context, conn *Conn, saved PersistenceSuccess) error
}

type WillDeleteHook interface {
	WillDelete(ctx context.Context, conn *Conn) error
}

type AroundDeleteHook interface {
	AroundDelete(ctx context.Context, conn *Conn, remove func() (bool, error)) (bool, error)
}

type DidDeleteHook interface {
	DidDelete(ctx context.Context, conn *Conn, deleted bool) error
}
