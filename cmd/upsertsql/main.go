package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	store "github.com/likearthian/recordstore"
)

type options struct {
	Table     string
	Schema    string
	Columns   []string
	PK        []string
	Target    []string
	Set       []string
	Noop      []string
	Returning []string
	Dialect   string
	Verbose   bool
}

var dialects = map[string]struct {
	dialect store.Dialect
	driver  string
}{
	"sqlite":        {store.SQLite, "sqlite3"},
	"sqlite-legacy": {store.SQLiteLegacy, "sqlite3"},
	"postgres":      {store.Postgres, "postgres"},
}

func main() {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.Kitchen,
		}),
	))

	if err := newRootCommand().Execute(); err != nil {
		slog.Error("failed to build statement", "error", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "upsertsql",
		Short: "Print the upsert statement generated for a table",
		Long: `Print the INSERT ... ON CONFLICT statement generated for a table and
the number of parameters it binds. Values are left as placeholders.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(tint.NewHandler(cmd.ErrOrStderr(), &tint.Options{
				Level:      level,
				TimeFormat: time.Kitchen,
			}))

			return run(cmd, opts, logger)
		},
	}

	cmd.Flags().StringVar(&opts.Table, "table", "", "table name")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "schema name")
	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "inserted columns, in order")
	cmd.Flags().StringSliceVar(&opts.PK, "pk", nil, "primary key columns")
	cmd.Flags().StringSliceVar(&opts.Target, "target", nil, "conflict target columns")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "explicit assignment as column=sql, repeatable")
	cmd.Flags().StringSliceVar(&opts.Noop, "noop", nil, "columns kept unchanged on conflict")
	cmd.Flags().StringSliceVar(&opts.Returning, "returning", nil, "RETURNING columns, * for all")
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "sqlite", "sqlite, sqlite-legacy or postgres")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("columns")

	return cmd
}

func run(cmd *cobra.Command, opts *options, logger *slog.Logger) error {
	d, ok := dialects[opts.Dialect]
	if !ok {
		return fmt.Errorf("unknown dialect %q", opts.Dialect)
	}

	var explicit []store.Assignment
	for _, s := range opts.Set {
		column, expr, ok := strings.Cut(s, "=")
		if !ok {
			return fmt.Errorf("invalid assignment %q: expected column=sql", s)
		}
		explicit = append(explicit, store.Column(strings.TrimSpace(column)).Set(store.Raw(strings.TrimSpace(expr))))
	}
	for _, c := range opts.Noop {
		explicit = append(explicit, store.Column(c).Noop())
	}

	plan, err := store.BuildConflictPlan(opts.Columns, opts.PK, opts.Target, explicit)
	if err != nil {
		return err
	}
	logger.Debug("resolved conflict plan", "overwrite", plan.OverwriteSet(), "doNothing", plan.DoNothing())

	returning := store.Map(opts.Returning, func(r string) store.Expression {
		if r == "*" {
			return store.AllColumns
		}
		return store.Column(r)
	})

	table := store.TableDef{Schema: opts.Schema, Name: opts.Table, PrimaryField: opts.PK}
	values := make([]any, len(opts.Columns))
	stmt, err := store.BuildUpsert(d.dialect, table, opts.Columns, values, plan, returning)
	if err != nil {
		return err
	}

	sql := sqlx.Rebind(sqlx.BindType(d.driver), stmt.SQL)
	fmt.Fprintln(cmd.OutOrStdout(), sql)
	fmt.Fprintf(cmd.OutOrStdout(), "-- %d parameters\n", len(stmt.Args))

	return nil
}
