package store

import "context"

// pipeline sequences will, around(perform) and did for one write. Each
// run keeps its state on the stack so hooks can start other writes.
type pipeline[R any] struct {
	will   func() error
	around func(perform func() (R, error)) (R, error)
	did    func(R) error
}

func (p pipeline[R]) run(perform func() (R, error)) (R, error) {
	var zero R

	if p.will != nil {
		if err := p.will(); err != nil {
			return zero, err
		}
	}

	performed := false
	once := func() (R, error) {
		if performed {
			return zero, configErrorf("around hook performed the write more than once")
		}
		performed = true
		return perform()
	}

	var (
		out R
		err error
	)
	if p.around != nil {
		out, err = p.around(once)
	} else {
		out, err = once()
	}
	if err != nil {
		return zero, err
	}
	if !performed {
		return zero, ErrSuppressed
	}

	if p.did != nil {
		if err := p.did(out); err != nil {
			return zero, err
		}
	}

	return out, nil
}

func insertPipeline(ctx context.Context, conn *Conn, record any) pipeline[InsertionSuccess] {
	var p pipeline[InsertionSuccess]
	if h, ok := record.(WillInsertHook); ok {
		p.will = func() error { return h.WillInsert(ctx, conn) }
	}
	if h, ok := record.(AroundInsertHook); ok {
		p.around = func(perform func() (InsertionSuccess, error)) (InsertionSuccess, error) {
			return h.AroundInsert(ctx, conn, perform)
		}
	}
	if h, ok := record.(DidInsertHook); ok {
		p.did = func(r InsertionSuccess) error { return h.DidInsert(ctx, conn, r) }
	}
	return p
}

func updatePipeline(ctx context.Context, conn *Conn, record any) pipeline[PersistenceSuccess] {
	var p pipeline[PersistenceSuccess]
	if h, ok := record.(WillUpdateHook); ok {
		p.will = func() error { return h.WillUpdate(ctx, conn) }
	}
	if h, ok := record.(AroundUpdateHook); ok {
		p.around = func(perform func() (PersistenceSuccess, error)) (PersistenceSuccess, error) {
			return h.AroundUpdate(ctx, conn, perform)
		}
	}
	if h, ok := record.(DidUpdateHook); ok {
		p.did = func(r PersistenceSuccess) error { return h.DidUpdate(ctx, conn, r) }
	}
	return p
}

func savePipeline(ctx context.Context, conn *Conn, record any) pipeline[PersistenceSuccess] {
	var p pipeline[PersistenceSuccess]
	if h, ok := record.(WillSaveHook); ok {
		p.will = func() error { return h.WillSave(ctx, conn) }
	}
	if h, ok := record.(AroundSaveHook); ok {
		p.around = func(perform func() (PersistenceSuccess, error)) (PersistenceSuccess, error) {
			return h.AroundSave(ctx, conn, perform)
		}
	}
	if h, ok := record.(DidSaveHook); ok {
		p.did = func(r PersistenceSuccess) error { return h.DidSave(ctx, conn, r) }
	}
	return p
}

func deletePipeline(ctx context.Context, conn *Conn, record any) pipeline[bool] {
	var p pipeline[bool]
	if h, ok := record.(WillDeleteHook); ok {
		p.will = func() error { return h.WillDelete(ctx, conn) }
	}
	if h, ok := record.(AroundDeleteHook); ok {
		p.around = func(perform func() (bool, error)) (bool, error) {
			return h.AroundDelete(ctx, conn, perform)
		}
	}
	if h, ok := record.(DidDeleteHook); ok {
		p.did = func(r bool) error { return h.DidDelete(ctx, conn, r) }
	}
	return p
}
