package predicate

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hugr-lab/entityfilter/schema"
)

// EncoderOptions configures encoding behavior.
type EncoderOptions struct {
	// ColumnMapping maps top-level column names to target names.
	// Columns not in the map use their original names.
	ColumnMapping map[string]string

	// ColumnExpressions maps top-level column names to SQL expressions.
	// Takes precedence over ColumnMapping.
	// Use for computed columns or complex transformations.
	ColumnExpressions map[string]string
}

// DuckDBEncoder translates predicates into DuckDB boolean expressions.
//
// Every leaf is encoded so that it yields TRUE or FALSE, never NULL, which
// keeps NOT and the in-memory evaluator in agreement:
//
//	x.A == c      ->  (a IS NOT DISTINCT FROM c)
//	x.A > c       ->  COALESCE((a > c), false)
//	x.A in [...]  ->  COALESCE((a IN (...)), false)
//	any(x.L, ...) ->  COALESCE((len(list_filter(l, __x1 -> ...)) > 0), false)
//
// The encoder holds no state between calls and may be shared.
type DuckDBEncoder struct {
	opts *EncoderOptions
}

// NewDuckDBEncoder creates a new DuckDB SQL encoder.
// If opts is nil, default options are used.
func NewDuckDBEncoder(opts *EncoderOptions) *DuckDBEncoder {
	if opts == nil {
		opts = &EncoderOptions{}
	}
	return &DuckDBEncoder{opts: opts}
}

// Encode returns the condition of a WHERE clause, without the keyword.
// A nil predicate encodes to the empty string.
func (e *DuckDBEncoder) Encode(p *Predicate) (string, error) {
	if p == nil {
		return "", nil
	}
	var b strings.Builder
	enc := &sqlEncoding{DuckDBEncoder: e, root: p.Param}
	if err := enc.encode(&b, p.Root); err != nil {
		return "", err
	}
	return b.String(), nil
}

// sqlEncoding is the state of one Encode call.
type sqlEncoding struct {
	*DuckDBEncoder
	root *Param
}

func (e *sqlEncoding) encode(b *strings.Builder, x Expr) error {
	switch n := x.(type) {
	case *And:
		return e.binary(b, n.L, " AND ", n.R)
	case *Or:
		return e.binary(b, n.L, " OR ", n.R)
	case *Not:
		b.WriteString("(NOT ")
		if err := e.encode(b, n.X); err != nil {
			return err
		}
		b.WriteByte(')')
		return nil

	case *IsNotNull:
		col, err := e.operand(n.X)
		if err != nil {
			return err
		}
		b.WriteString("(" + col + " IS NOT NULL)")
		return nil

	case *Compare:
		return e.encodeCompare(b, n)

	case *In:
		col, err := e.operand(n.X)
		if err != nil {
			return err
		}
		values := make([]string, 0, len(n.Values))
		for _, c := range n.Values {
			if c.Value == nil {
				continue
			}
			v, err := formatConst(c)
			if err != nil {
				return err
			}
			values = append(values, v)
		}
		if len(values) == 0 {
			b.WriteString("false")
			return nil
		}
		b.WriteString("COALESCE((" + col + " IN (" + strings.Join(values, ", ") + ")), false)")
		return nil

	case *Contains:
		col, err := e.operand(n.X)
		if err != nil {
			return err
		}
		textCol := "CAST(" + col + " AS VARCHAR)"
		if t := n.X.Type(); t != nil && t.Kind == schema.KindTime {
			textCol = "strftime(" + col + ", '" + containsTimeFormat + "')"
		}
		b.WriteString("COALESCE(contains(lower(" + textCol + "), " + quoteLiteral(n.Substr) + "), false)")
		return nil

	case *Exists:
		col, err := e.operand(n.Collection)
		if err != nil {
			return err
		}
		if n.Pred == nil {
			b.WriteString("COALESCE((len(" + col + ") > 0), false)")
			return nil
		}
		var body strings.Builder
		if err := e.encode(&body, n.Pred); err != nil {
			return err
		}
		b.WriteString("COALESCE((len(list_filter(" + col + ", " + lambdaParam(n.Elem) + " -> " + body.String() + ")) > 0), false)")
		return nil
	}
	return fmt.Errorf("predicate: cannot encode %T", x)
}

func (e *sqlEncoding) binary(b *strings.Builder, l Expr, op string, r Expr) error {
	b.WriteByte('(')
	if err := e.encode(b, l); err != nil {
		return err
	}
	b.WriteString(op)
	if err := e.encode(b, r); err != nil {
		return err
	}
	b.WriteByte(')')
	return nil
}

func (e *sqlEncoding) encodeCompare(b *strings.Builder, c *Compare) error {
	left, err := e.operand(c.Left)
	if err != nil {
		return err
	}
	var right string
	if _, ok := c.Left.(*DateOf); ok && c.Right.Value != nil {
		tm, ok := c.Right.Value.(time.Time)
		if !ok {
			return fmt.Errorf("predicate: date constant %s is not a time", c.Right)
		}
		right = "DATE '" + tm.Format(time.DateOnly) + "'"
	} else if right, err = formatConst(c.Right); err != nil {
		return err
	}

	switch c.Op {
	case OpEq:
		b.WriteString("(" + left + " IS NOT DISTINCT FROM " + right + ")")
	case OpNe:
		b.WriteString("(" + left + " IS DISTINCT FROM " + right + ")")
	default:
		b.WriteString("COALESCE((" + left + " " + c.Op.String() + " " + right + "), false)")
	}
	return nil
}

// operand encodes a member access or the date part of one.
func (e *sqlEncoding) operand(op Operand) (string, error) {
	switch o := op.(type) {
	case *DateOf:
		inner, err := e.operand(o.X)
		if err != nil {
			return "", err
		}
		return "CAST(" + inner + " AS DATE)", nil
	case *Const:
		return formatConst(o)
	case *Member:
		return e.member(o)
	}
	return "", fmt.Errorf("predicate: cannot encode operand %T", op)
}

// member encodes a member chain. The first member of the root parameter is
// a column; deeper members and members of lambda parameters are
// struct_extract calls.
func (e *sqlEncoding) member(m *Member) (string, error) {
	path := m.Path
	var base string
	if m.Param == e.root {
		if len(path) == 0 {
			return "", fmt.Errorf("predicate: cannot encode the entity %s as a column", m.Param.Type)
		}
		base = e.column(path[0].Column)
		path = path[1:]
	} else {
		base = lambdaParam(m.Param)
	}
	for _, f := range path {
		base = "struct_extract(" + base + ", " + quoteLiteral(f.Column) + ")"
	}
	return base, nil
}

func (e *sqlEncoding) column(name string) string {
	// Check for expression mapping first (takes precedence)
	if e.opts.ColumnExpressions != nil {
		if expr, ok := e.opts.ColumnExpressions[name]; ok {
			return expr
		}
	}
	if e.opts.ColumnMapping != nil {
		if mapped, ok := e.opts.ColumnMapping[name]; ok {
			name = mapped
		}
	}
	return quoteIdentifier(name)
}

// containsTimeFormat renders time members for Contains.
const containsTimeFormat = "%Y-%m-%d %H:%M:%S"

// lambdaParam names the lambda parameter bound to an Exists element. The
// prefix keeps it from shadowing columns.
func lambdaParam(p *Param) string { return "__" + p.Name }

// formatConst formats a constant as a DuckDB literal.
func formatConst(c *Const) (string, error) {
	if c.Value == nil {
		return "NULL", nil
	}

	switch v := c.Value.(type) {
	case time.Time:
		return "TIMESTAMP '" + v.UTC().Format("2006-01-02 15:04:05.999999") + "'", nil
	case uuid.UUID:
		return quoteLiteral(v.String()) + "::UUID", nil
	}

	rv := reflect.ValueOf(c.Value)
	switch rv.Kind() {
	case reflect.String:
		return quoteLiteral(rv.String()), nil
	case reflect.Bool:
		if rv.Bool() {
			return "TRUE", nil
		}
		return "FALSE", nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		switch {
		case math.IsNaN(f):
			return "'nan'::DOUBLE", nil
		case math.IsInf(f, 1):
			return "'inf'::DOUBLE", nil
		case math.IsInf(f, -1):
			return "'-inf'::DOUBLE", nil
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case reflect.Struct:
		if rv.Type().ConvertibleTo(reflect.TypeOf(time.Time{})) {
			return formatConst(&Const{Value: canonical(c.Value), T: schema.Time})
		}
	case reflect.Array:
		if rv.Type().ConvertibleTo(reflect.TypeOf(uuid.UUID{})) {
			return formatConst(&Const{Value: canonical(c.Value), T: schema.UUID})
		}
	}
	return "", fmt.Errorf("predicate: cannot encode constant %v of %s", c.Value, c.T)
}

// escapeString escapes single quotes in a string value for SQL.
func escapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// quoteLiteral returns a SQL string literal with proper escaping.
func quoteLiteral(s string) string {
	return "'" + escapeString(s) + "'"
}

// quoteIdentifier returns a quoted identifier if needed.
// DuckDB uses double quotes for identifiers.
func quoteIdentifier(name string) string {
	if needsQuoting(name) {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return name
}

func needsQuoting(name string) bool {
	if len(name) == 0 {
		return true
	}
	if c := name[0]; !isLetter(c) && c != '_' {
		return true
	}
	for i := 1; i < len(name); i++ {
		if c := name[i]; !isLetter(c) && !isDigit(c) && c != '_' {
			return true
		}
	}
	return reservedWords[strings.ToUpper(name)]
}

// reservedWords is a simplified list of keywords that must be quoted when
// used as identifiers.
var reservedWords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "AND": true, "OR": true, "NOT": true,
	"NULL": true, "TRUE": true, "FALSE": true, "INSERT": true, "UPDATE": true,
	"DELETE": true, "CREATE": true, "DROP": true, "ALTER": true, "TABLE": true,
	"INDEX": true, "JOIN": true, "LEFT": true, "RIGHT": true, "INNER": true,
	"OUTER": true, "ON": true, "AS": true, "IN": true, "IS": true, "LIKE": true,
	"BETWEEN": true, "EXISTS": true, "CASE": true, "WHEN": true, "THEN": true,
	"ELSE": true, "END": true, "ORDER": true, "BY": true, "GROUP": true,
	"HAVING": true, "LIMIT": true, "OFFSET": true, "UNION": true, "EXCEPT": true,
	"INTERSECT": true, "ALL": true, "DISTINCT": true, "VALUES": true, "SET": true,
	"INTO": true, "PRIMARY": true, "KEY": true, "FOREIGN": true, "REFERENCES": true,
	"CONSTRAINT": true, "DEFAULT": true, "CHECK": true, "UNIQUE": true, "ASC": true,
	"DESC": true, "NULLS": true, "FIRST": true, "LAST": true, "CAST": true,
	"INTERVAL": true, "DATE": true, "TIME": true, "TIMESTAMP": true, "LAMBDA": true,
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
