package store

// Statement is a ready to execute SQL statement. The text always uses ?
// placeholders; the connection rebinds them for its driver.
type Statement struct {
	SQL  string
	Args []any
}

// BuildUpsert combines an INSERT of columns/values with plan and an
// optional RETURNING list. Without columns the row is inserted with
// DEFAULT VALUES.
//
// Parameters are the insert values in column order, followed by the
// parameters embedded in the SET assignments, then those of the RETURNING
// expressions.
func BuildUpsert(d Dialect, table TableDef, columns []string, values []any, plan ConflictPlan, returning []Expression) (Statement, error) {
	if _, ok := d.(sqliteDialect); ok && len(columns) == 0 {
		return Statement{}, configErrorf("sqlite cannot combine DEFAULT VALUES with ON CONFLICT in %s", table.Name)
	}
	if len(columns) != len(values) {
		return Statement{}, configErrorf("upsert into %s has %d columns but %d values", table.Name, len(columns), len(values))
	}
	if len(returning) > 0 && !d.SupportsReturning() {
		return Statement{}, configErrorf("%s does not support RETURNING", d.Name())
	}

	target := plan.target
	if len(target) == 0 && !plan.DoNothing() && d.RequiresConflictTarget() {
		target = plan.primaryKey
		if len(target) == 0 {
			return Statement{}, configErrorf("%s requires a conflict target for DO UPDATE and %s has no primary key", d.Name(), table.Name)
		}
	}

	var w sqlWriter
	writeInsertHead(&w, table, columns, values)
	w.WriteByte(' ')
	if err := plan.writeClause(&w, target); err != nil {
		return Statement{}, err
	}
	if err := writeReturning(&w, returning); err != nil {
		return Statement{}, err
	}

	return Statement{SQL: w.String(), Args: w.args}, nil
}

func writeInsertHead(w *sqlWriter, table TableDef, columns []string, values []any) {
	w.WriteString("INSERT INTO ")
	table.writeSQL(w)
	if len(columns) == 0 {
		w.WriteString(" DEFAULT VALUES")
		return
	}

	w.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteString(quoteIdent(c))
	}
	w.WriteString(") VALUES (")
	for i, v := range values {
		if i > 0 {
			w.WriteByte(',')
		}
		w.bind(v)
	}
	w.WriteByte(')')
}

func writeReturning(w *sqlWriter, returning []Expression) error {
	if len(returning) == 0 {
		return nil
	}
	w.WriteString(" RETURNING ")
	for i, e := range returning {
		if i > 0 {
			w.WriteString(", ")
		}
		if err := e.writeSQL(w); err != nil {
			return err
		}
	}
	return nil
}

func buildInsert(table TableDef, columns []string, values []any, returning []Expression) (Statement, error) {
	var w sqlWriter
	writeInsertHead(&w, table, columns, values)
	if err := writeReturning(&w, returning); err != nil {
		return Statement{}, err
	}
	return Statement{SQL: w.String(), Args: w.args}, nil
}

func buildUpdate(table TableDef, columns []string, values []any, key []string, keyValues []any) Statement {
	var w sqlWriter
	w.WriteString("UPDATE ")
	table.writeSQL(&w)
	w.WriteString(" SET ")
	if len(columns) == 0 {
		// nothing to change, touch the key so the row count still tells
		// whether the row exists
		w.WriteString(quoteIdent(key[0]) + " = " + quoteIdent(key[0]))
	}
	for i, c := range columns {
		if i > 0 {
			w.WriteString(", ")
		}
		w.WriteString(quoteIdent(c) + " = ")
		w.bind(values[i])
	}
	writeKeyFilter(&w, key, keyValues)
	return Statement{SQL: w.String(), Args: w.args}
}

func buildDelete(table TableDef, key []string, keyValues []any) Statement {
	var w sqlWriter
	w.WriteString("DELETE FROM ")
	table.writeSQL(&w)
	writeKeyFilter(&w, key, keyValues)
	return Statement{SQL: w.String(), Args: w.args}
}

func buildSelectByKey(table TableDef, key []string, keyValues []any) Statement {
	var w sqlWriter
	w.WriteString("SELECT * FROM ")
	table.writeSQL(&w)
	writeKeyFilter(&w, key, keyValues)
	return Statement{SQL: w.String(), Args: w.args}
}

// buildLookup selects one expression from the row matching key.
func buildLookup(table TableDef, selected Expression, key []string, keyValues []any) (Statement, error) {
	var w sqlWriter
	w.WriteString("SELECT ")
	if err := selected.writeSQL(&w); err != nil {
		return Statement{}, err
	}
	w.WriteString(" FROM ")
	table.writeSQL(&w)
	writeKeyFilter(&w, key, keyValues)
	w.WriteString(" LIMIT 1")
	return Statement{SQL: w.String(), Args: w.args}, nil
}

func writeKeyFilter(w *sqlWriter, key []string, keyValues []any) {
	w.WriteString(" WHERE ")
	for i, c := range key {
		if i > 0 {
			w.WriteString(" AND ")
		}
		w.WriteString(quoteIdent(c) + " = ")
		w.bind(keyValues[i])
	}
}
