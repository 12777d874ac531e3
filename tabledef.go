package store

// TableDef describes the table a record persists into.
type TableDef struct {
	Schema string
	Name   string
	// KeyField is the column assigned by the store on insert (an
	// autoincrement identifier). It is part of the primary key.
	KeyField     string
	PrimaryField []string
}

// FullTableName returns the delimited, schema qualified table name.
func (t TableDef) FullTableName() string {
	if t.Schema == "" {
		return quoteIdent(t.Name)
	}
	return quoteIdent(t.Schema) + "." + quoteIdent(t.Name)
}

func (t TableDef) writeSQL(w *sqlWriter) {
	w.WriteString(t.FullTableName())
}
