package store

// Assignment is one column = expression pair of a DO UPDATE SET clause.
type Assignment struct {
	Column Column
	Expr   Expression
}

// IsNoop reports whether the assignment keeps the stored value.
func (a Assignment) IsNoop() bool {
	_, ok := a.Expr.(noopExpr)
	return ok
}

// ConflictPlan is the resolved ON CONFLICT clause of one upsert. It is
// immutable once built.
type ConflictPlan struct {
	target      []Column
	primaryKey  []Column
	assignments []Assignment
}

// BuildConflictPlan resolves the overwrite set for an upsert.
//
// Explicit assignments come first, in the order their column first appears;
// a later assignment to the same column replaces the earlier expression.
// Every other non primary key column is then overwritten with its incoming
// value, in column order. No-op assignments drop their column from the
// overwrite set.
func BuildConflictPlan(columns, primaryKey, target []string, explicit []Assignment) (ConflictPlan, error) {
	known := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		known[c] = struct{}{}
	}

	pk := make(map[string]struct{}, len(primaryKey))
	for _, c := range primaryKey {
		if _, ok := known[c]; !ok {
			return ConflictPlan{}, configErrorf("primary key column %q is not a column of the record", c)
		}
		pk[c] = struct{}{}
	}

	plan := ConflictPlan{
		target:     Map(target, func(c string) Column { return Column(c) }),
		primaryKey: Map(primaryKey, func(c string) Column { return Column(c) }),
	}

	for _, c := range target {
		if _, ok := known[c]; !ok {
			return ConflictPlan{}, configErrorf("conflict target references unknown column %q", c)
		}
	}

	var order []Column
	exprs := make(map[Column]Expression, len(columns))
	for _, a := range explicit {
		name := a.Column.Name()
		if _, ok := known[name]; !ok {
			return ConflictPlan{}, configErrorf("assignment references unknown column %q", name)
		}
		if _, ok := pk[name]; ok {
			return ConflictPlan{}, configErrorf("primary key column %q cannot be overwritten on conflict", name)
		}
		if a.Expr == nil {
			return ConflictPlan{}, configErrorf("assignment to %q has no expression", name)
		}
		if _, seen := exprs[a.Column]; !seen {
			order = append(order, a.Column)
		}
		exprs[a.Column] = a.Expr
	}

	for _, c := range columns {
		col := Column(c)
		if _, ok := pk[c]; ok {
			continue
		}
		if _, ok := exprs[col]; ok {
			continue
		}
		order = append(order, col)
		exprs[col] = Excluded{}.Col(c)
	}

	for _, col := range order {
		a := Assignment{Column: col, Expr: exprs[col]}
		if a.IsNoop() {
			continue
		}
		plan.assignments = append(plan.assignments, a)
	}

	return plan, nil
}

// Target returns the conflict target. Empty means the store infers the
// constraint.
func (p ConflictPlan) Target() []Column {
	return append([]Column(nil), p.target...)
}

// Assignments returns the resolved SET assignments.
func (p ConflictPlan) Assignments() []Assignment {
	return append([]Assignment(nil), p.assignments...)
}

// OverwriteSet returns the columns replaced on conflict.
func (p ConflictPlan) OverwriteSet() []Column {
	return Map(p.assignments, func(a Assignment) Column { return a.Column })
}

// DoNothing reports whether the plan renders DO NOTHING.
func (p ConflictPlan) DoNothing() bool {
	return len(p.assignments) == 0
}

// SQL renders the ON CONFLICT clause with its parameters.
func (p ConflictPlan) SQL() (string, []any, error) {
	var w sqlWriter
	if err := p.writeClause(&w, p.target); err != nil {
		return "", nil, err
	}
	return w.String(), w.args, nil
}

func (p ConflictPlan) writeClause(w *sqlWriter, target []Column) error {
	w.WriteString("ON CONFLICT")
	if len(target) > 0 {
		w.WriteString(" (")
		for i, c := range target {
			if i > 0 {
				w.WriteByte(',')
			}
			c.write(w)
		}
		w.WriteByte(')')
	}

	if p.DoNothing() {
		w.WriteString(" DO NOTHING")
		return nil
	}

	w.WriteString(" DO UPDATE SET ")
	for i, a := range p.assignments {
		if i > 0 {
			w.WriteString(", ")
		}
		a.Column.write(w)
		w.WriteString(" = ")
		if err := a.Expr.writeSQL(w); err != nil {
			return err
		}
	}
	return nil
}
