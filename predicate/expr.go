package predicate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hugr-lab/entityfilter/schema"
)

// Expr is a node of a compiled boolean expression.
// The concrete types are *Compare, *Contains, *In, *IsNotNull, *Exists,
// *And, *Or and *Not.
type Expr interface {
	fmt.Stringer
	expr()
}

// Operand is a typed value an Expr tests: a member access, the date part of
// a member, or a constant.
type Operand interface {
	fmt.Stringer
	Type() *schema.Type
	operand()
}

// Param is the entity a predicate, or the body of an Exists, is evaluated
// against.
type Param struct {
	Name string
	Type *schema.Type
}

func (p *Param) String() string { return p.Name }

// CompareOp is a comparison operator.
type CompareOp uint8

const (
	OpEq CompareOp = iota
	OpNe
	OpGt
	OpLt
	OpGe
	OpLe
)

var compareOpSymbols = [...]string{
	OpEq: "==",
	OpNe: "!=",
	OpGt: ">",
	OpLt: "<",
	OpGe: ">=",
	OpLe: "<=",
}

func (op CompareOp) String() string {
	if int(op) < len(compareOpSymbols) {
		return compareOpSymbols[op]
	}
	return "CompareOp(" + strconv.Itoa(int(op)) + ")"
}

// Member reads a chain of members starting at Param. An empty Path refers to
// the parameter itself.
type Member struct {
	Param *Param
	Path  []*schema.Field
}

// Type returns the type of the last member, or the parameter type.
func (m *Member) Type() *schema.Type {
	if len(m.Path) == 0 {
		return m.Param.Type
	}
	return m.Path[len(m.Path)-1].Type
}

func (m *Member) String() string {
	var b strings.Builder
	b.WriteString(m.Param.Name)
	for _, f := range m.Path {
		b.WriteByte('.')
		b.WriteString(f.Name)
	}
	return b.String()
}

// DateOf truncates a time operand to its calendar date.
type DateOf struct {
	X Operand
}

func (d *DateOf) Type() *schema.Type { return schema.Time }
func (d *DateOf) String() string     { return d.X.String() + ".Date" }

// Const is a constant whose Value has exactly the Go type of Type, or is nil.
type Const struct {
	Value any
	T     *schema.Type
}

func (c *Const) Type() *schema.Type { return c.T }

func (c *Const) String() string {
	switch v := c.Value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case uuid.UUID:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Compare compares an operand with a constant.
type Compare struct {
	Op    CompareOp
	Left  Operand
	Right *Const
}

func (c *Compare) String() string {
	return "(" + c.Left.String() + " " + c.Op.String() + " " + c.Right.String() + ")"
}

// Contains tests whether the lower-cased text of X contains Substr.
// Substr is lower-cased at compile time.
type Contains struct {
	X      Operand
	Substr string
}

func (c *Contains) String() string {
	return "contains(lower(" + c.X.String() + "), " + strconv.Quote(c.Substr) + ")"
}

// In tests whether X equals one of Values. An empty list matches nothing.
type In struct {
	X      Operand
	Values []*Const
}

func (in *In) String() string {
	parts := make([]string, len(in.Values))
	for i, v := range in.Values {
		parts[i] = v.String()
	}
	return "(" + in.X.String() + " in [" + strings.Join(parts, ", ") + "])"
}

// IsNotNull tests that X is present.
type IsNotNull struct {
	X Operand
}

func (n *IsNotNull) String() string { return "(" + n.X.String() + " != null)" }

// Exists tests whether some element of the collection satisfies Pred, with
// the element bound to Elem. A nil Pred tests that the collection is not
// empty.
type Exists struct {
	Collection Operand
	Elem       *Param
	Pred       Expr
}

func (e *Exists) String() string {
	if e.Pred == nil {
		return "any(" + e.Collection.String() + ")"
	}
	return "any(" + e.Collection.String() + ", " + e.Elem.Name + " => " + e.Pred.String() + ")"
}

// And is the short-circuit conjunction of two expressions.
type And struct {
	L, R Expr
}

func (a *And) String() string { return "(" + a.L.String() + " && " + a.R.String() + ")" }

// Or is the short-circuit disjunction of two expressions.
type Or struct {
	L, R Expr
}

func (o *Or) String() string { return "(" + o.L.String() + " || " + o.R.String() + ")" }

// Not negates an expression.
type Not struct {
	X Expr
}

func (n *Not) String() string { return "!" + n.X.String() }

func (*Compare) expr()   {}
func (*Contains) expr()  {}
func (*In) expr()        {}
func (*IsNotNull) expr() {}
func (*Exists) expr()    {}
func (*And) expr()       {}
func (*Or) expr()        {}
func (*Not) expr()       {}

func (*Member) operand() {}
func (*DateOf) operand() {}
func (*Const) operand()  {}
