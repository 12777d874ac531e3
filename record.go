package store

import (
	"database/sql/driver"
	"fmt"
	"reflect"

	"github.com/iancoleman/strcase"
)

// recordInfo is the column view of one record, taken right before its
// statement is built so will hooks' changes are included.
type recordInfo struct {
	table  TableDef
	fields []recordField
	// keyIndex is the struct field holding table.KeyField, -1 if none.
	keyIndex int
}

type recordField struct {
	column string
	value  any
	zero   bool
}

func inspectRecord(record any) (recordInfo, error) {
	rv := reflect.ValueOf(record)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return recordInfo{}, configErrorf("record must be a non-nil pointer to a struct, got %T", record)
	}
	rv = rv.Elem()
	rt := rv.Type()

	info := recordInfo{keyIndex: -1}
	var tagKeys []string
	var tagAuto string
	fieldIndex := make(map[string]int)

	if enc, ok := record.(ColumnEncoder); ok {
		for _, cv := range enc.EncodeColumns() {
			info.fields = append(info.fields, recordField{column: cv.Column, value: cv.Value, zero: isZeroValue(cv.Value)})
		}
	} else {
		for i := 0; i < rt.NumField(); i++ {
			field := rt.Field(i)
			if !field.IsExported() || field.Anonymous {
				continue
			}

			tag := field.Tag.Get("db")
			if tag == "-" {
				continue
			}

			name, _, isAuto, isKey, _ := ParseDBTag(tag)
			if name == "" {
				name = strcase.ToSnake(field.Name)
			}

			fv := rv.Field(i)
			val, err := fieldValue(fv)
			if err != nil {
				return recordInfo{}, fmt.Errorf("failed to get value of %s.%s: %w", rt.Name(), field.Name, err)
			}

			if isKey {
				tagKeys = append(tagKeys, name)
			}
			if isAuto {
				tagAuto = name
			}
			fieldIndex[name] = i
			info.fields = append(info.fields, recordField{column: name, value: val, zero: fv.IsZero()})
		}
	}

	td := TableDef{Name: strcase.ToSnake(rt.Name())}
	if m, ok := record.(Model); ok {
		td = m.GetTableDef()
		if td.Name == "" {
			return recordInfo{}, configErrorf("table definition of %T has no name", record)
		}
	}
	if len(td.PrimaryField) == 0 {
		td.PrimaryField = tagKeys
	}
	if td.KeyField == "" {
		td.KeyField = tagAuto
	}
	if td.KeyField != "" && !SliceContains(td.PrimaryField, td.KeyField) {
		td.PrimaryField = append([]string{td.KeyField}, td.PrimaryField...)
	}
	for _, c := range td.PrimaryField {
		if _, ok := info.field(c); !ok {
			return recordInfo{}, configErrorf("primary key column %q is not a column of %T", c, record)
		}
	}
	if i, ok := fieldIndex[td.KeyField]; ok {
		info.keyIndex = i
	}

	info.table = td
	return info, nil
}

func fieldValue(v reflect.Value) (any, error) {
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, nil
	}

	val := v.Interface()
	if valuer, ok := val.(driver.Valuer); ok {
		return valuer.Value()
	}

	return val, nil
}

func isZeroValue(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}

func (r recordInfo) field(column string) (recordField, bool) {
	for _, f := range r.fields {
		if f.column == column {
			return f, true
		}
	}
	return recordField{}, false
}

func (r recordInfo) columns() []string {
	return Map(r.fields, func(f recordField) string { return f.column })
}

// insertColumns leaves out a zero store assigned key so the store picks
// one.
func (r recordInfo) insertColumns() ([]string, []any) {
	fields := Filter(r.fields, func(f recordField) bool {
		return f.column != r.table.KeyField || !f.zero
	})
	return Map(fields, func(f recordField) string { return f.column }),
		Map(fields, func(f recordField) any { return f.value })
}

// values returns the values of columns, failing when one of them is an
// unassigned store key.
func (r recordInfo) values(columns []string) ([]any, error) {
	values := make([]any, len(columns))
	for i, c := range columns {
		f, ok := r.field(c)
		if !ok {
			return nil, configErrorf("unknown column %q in %s", c, r.table.Name)
		}
		if c == r.table.KeyField && f.zero {
			return nil, fmt.Errorf("%w: %s has no %s yet", ErrKeyNotFound, r.table.Name, c)
		}
		values[i] = f.value
	}
	return values, nil
}

func (r recordInfo) key() ([]string, []any, error) {
	if len(r.table.PrimaryField) == 0 {
		return nil, nil, configErrorf("%s has no primary key", r.table.Name)
	}
	values, err := r.values(r.table.PrimaryField)
	if err != nil {
		return nil, nil, err
	}
	return r.table.PrimaryField, values, nil
}

// hasKey reports whether the record can address an existing row.
func (r recordInfo) hasKey() bool {
	_, _, err := r.key()
	return err == nil
}

// updateColumns returns the non key columns to write, restricted to only
// when it is not empty.
func (r recordInfo) updateColumns(only []string) ([]string, []any, error) {
	for _, c := range only {
		if _, ok := r.field(c); !ok {
			return nil, nil, configErrorf("unknown column %q in %s", c, r.table.Name)
		}
	}

	fields := Filter(r.fields, func(f recordField) bool {
		if SliceContains(r.table.PrimaryField, f.column) {
			return false
		}
		return len(only) == 0 || SliceContains(only, f.column)
	})
	return Map(fields, func(f recordField) string { return f.column }),
		Map(fields, func(f recordField) any { return f.value }), nil
}

func (r recordInfo) rowID() (int64, bool) {
	f, ok := r.field(r.table.KeyField)
	if !ok || f.zero {
		return 0, false
	}
	rv := reflect.ValueOf(f.value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), true
	}
	return 0, false
}

func assignRowID(record any, info recordInfo, id int64) {
	if setter, ok := record.(IDSetter); ok {
		setter.SetID(id)
		return
	}

	if info.keyIndex < 0 {
		return
	}

	f := reflect.ValueOf(record).Elem().Field(info.keyIndex)
	switch f.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f.SetInt(id)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f.SetUint(uint64(id))
	}
}
