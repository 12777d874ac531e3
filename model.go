package store

// Model lets a record name its table and key explicitly instead of
// relying on struct tags and the type name.
type Model interface {
	GetTableDef() TableDef
}

type ColumnValue struct {
	Column string
	Value  any
}

// ColumnEncoder replaces struct field reflection: the record lists its own
// columns and values, in insert order. Its primary key must then come from
// GetTableDef.
type ColumnEncoder interface {
	EncodeColumns() []ColumnValue
}

// IDSetter receives the identifier the store assigned on insert.
type IDSetter interface {
	SetID(id int64)
}
