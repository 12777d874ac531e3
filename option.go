package store

import "log/slog"

type ConnOption func(o *connOption)

type connOption struct {
	dialect Dialect
	logger  *slog.Logger
}

// WithDialect overrides the dialect derived from the driver name.
func WithDialect(d Dialect) ConnOption {
	return func(o *connOption) {
		o.dialect = d
	}
}

// WithLogger sets the logger statements are reported to at debug level.
func WithLogger(l *slog.Logger) ConnOption {
	return func(o *connOption) {
		o.logger = l
	}
}

type UpsertOption func(o *upsertOption)

type upsertOption struct {
	target   []string
	doUpdate func(excluded Excluded) []Assignment
}

// OnConflict sets the conflict target. Without it the store infers the
// violated uniqueness constraint.
func OnConflict(columns ...string) UpsertOption {
	return func(o *upsertOption) {
		o.target = columns
	}
}

// DoUpdate supplies explicit assignments for the conflict case. Columns it
// does not mention are overwritten with their incoming value, except the
// primary key.
//
// example:
//
//	DoUpdate(func(excluded Excluded) []Assignment {
//		return []Assignment{
//			Column("score").Set(Column("score").Add(excluded.Col("score"))),
//			Column("name").Noop(),
//		}
//	})
func DoUpdate(fn func(excluded Excluded) []Assignment) UpsertOption {
	return func(o *upsertOption) {
		o.doUpdate = fn
	}
}
