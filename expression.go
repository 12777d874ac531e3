package store

import (
	"strconv"
	"strings"
)

// Expression is an SQL expression usable on the right side of an
// assignment or in a RETURNING clause.
type Expression interface {
	writeSQL(w *sqlWriter) error
}

type sqlWriter struct {
	strings.Builder
	args []any
}

func (w *sqlWriter) bind(v any) {
	w.WriteByte('?')
	w.args = append(w.args, v)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Column references a column by name.
type Column string

func (c Column) Name() string {
	return string(c)
}

func (c Column) writeSQL(w *sqlWriter) error {
	c.write(w)
	return nil
}

func (c Column) write(w *sqlWriter) {
	w.WriteString(quoteIdent(string(c)))
}

// Set assigns v to the column. Values that are not an Expression are bound
// as parameters.
func (c Column) Set(v any) Assignment {
	return Assignment{Column: c, Expr: toExpression(v)}
}

// Noop keeps the stored value of the column when a conflict occurs.
func (c Column) Noop() Assignment {
	return Assignment{Column: c, Expr: noopExpr{}}
}

func (c Column) Add(v any) Expression    { return binaryExpr{op: "+", left: c, right: toExpression(v)} }
func (c Column) Sub(v any) Expression    { return binaryExpr{op: "-", left: c, right: toExpression(v)} }
func (c Column) Mul(v any) Expression    { return binaryExpr{op: "*", left: c, right: toExpression(v)} }
func (c Column) Div(v any) Expression    { return binaryExpr{op: "/", left: c, right: toExpression(v)} }
func (c Column) Concat(v any) Expression { return binaryExpr{op: "||", left: c, right: toExpression(v)} }

// Excluded is the handle on the row that was about to be inserted when a
// conflict occurred.
type Excluded struct{}

func (Excluded) Col(name string) Expression {
	return scopedColumn{scope: "excluded", name: name}
}

type scopedColumn struct {
	scope string
	name  string
}

func (s scopedColumn) writeSQL(w *sqlWriter) error {
	w.WriteString(quoteIdent(s.scope))
	w.WriteByte('.')
	w.WriteString(quoteIdent(s.name))
	return nil
}

// Value binds v as a statement parameter.
func Value(v any) Expression {
	return boundValue{v: v}
}

type boundValue struct {
	v any
}

func (b boundValue) writeSQL(w *sqlWriter) error {
	w.bind(b.v)
	return nil
}

// Literal renders numbers, booleans and nil inline. Any other value is
// bound as a parameter.
func Literal(v any) Expression {
	return literal{v: v}
}

type literal struct {
	v any
}

func (l literal) writeSQL(w *sqlWriter) error {
	switch v := l.v.(type) {
	case nil:
		w.WriteString("NULL")
	case bool:
		if v {
			w.WriteString("TRUE")
		} else {
			w.WriteString("FALSE")
		}
	case int:
		w.WriteString(strconv.FormatInt(int64(v), 10))
	case int8:
		w.WriteString(strconv.FormatInt(int64(v), 10))
	case int16:
		w.WriteString(strconv.FormatInt(int64(v), 10))
	case int32:
		w.WriteString(strconv.FormatInt(int64(v), 10))
	case int64:
		w.WriteString(strconv.FormatInt(v, 10))
	case uint:
		w.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint8:
		w.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint16:
		w.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint32:
		w.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint64:
		w.WriteString(strconv.FormatUint(v, 10))
	case float32:
		w.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	case float64:
		w.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	default:
		w.bind(v)
	}
	return nil
}

// Raw inserts an SQL fragment verbatim. Each ? in sql must have a matching
// entry in args.
func Raw(sql string, args ...any) Expression {
	return rawExpr{sql: sql, args: args}
}

type rawExpr struct {
	sql  string
	args []any
}

func (r rawExpr) writeSQL(w *sqlWriter) error {
	w.WriteString(r.sql)
	w.args = append(w.args, r.args...)
	return nil
}

type binaryExpr struct {
	op    string
	left  Expression
	right Expression
}

func (b binaryExpr) writeSQL(w *sqlWriter) error {
	if err := writeOperand(w, b.left); err != nil {
		return err
	}
	w.WriteString(" " + b.op + " ")
	return writeOperand(w, b.right)
}

func writeOperand(w *sqlWriter, e Expression) error {
	if _, nested := e.(binaryExpr); !nested {
		return e.writeSQL(w)
	}
	w.WriteByte('(')
	if err := e.writeSQL(w); err != nil {
		return err
	}
	w.WriteByte(')')
	return nil
}

// Null is the SQL NULL. Assigning it is not the same as a no-op.
var Null Expression = nullExpr{}

type nullExpr struct{}

func (nullExpr) writeSQL(w *sqlWriter) error {
	w.WriteString("NULL")
	return nil
}

// AllColumns renders as *.
var AllColumns Expression = allColumns{}

type allColumns struct{}

func (allColumns) writeSQL(w *sqlWriter) error {
	w.WriteByte('*')
	return nil
}

type noopExpr struct{}

func (noopExpr) writeSQL(*sqlWriter) error {
	return configErrorf("no-op marker cannot be rendered as an expression")
}

func toExpression(v any) Expression {
	if e, ok := v.(Expression); ok {
		return e
	}
	return Value(v)
}
