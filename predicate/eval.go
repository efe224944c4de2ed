package predicate

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hugr-lab/entityfilter/schema"
)

// cursor is a read position inside an entity: the entity itself, one of its
// members, or an element of a collection member.
type cursor interface {
	IsNull() bool
	Field(f *schema.Field) (cursor, error)
	Len() int
	Index(i int) cursor
	// Value returns the scalar at the cursor in its native Go form.
	Value() any
}

// env binds parameters to cursors. Exists bodies push the element binding
// in front of the outer ones.
type env struct {
	param *Param
	cur   cursor
	next  *env
}

func (e *env) lookup(p *Param) (cursor, error) {
	for b := e; b != nil; b = b.next {
		if b.param == p {
			return b.cur, nil
		}
	}
	return nil, fmt.Errorf("predicate: unbound parameter %s", p.Name)
}

// eval evaluates x with lifted null semantics: a null operand compares equal
// only to a null constant, and ordered comparisons, In and date tests on
// null are false. Every node therefore yields true or false and Not is a
// plain negation.
func eval(x Expr, e *env) (bool, error) {
	switch n := x.(type) {
	case *And:
		ok, err := eval(n.L, e)
		if err != nil || !ok {
			return false, err
		}
		return eval(n.R, e)

	case *Or:
		ok, err := eval(n.L, e)
		if err != nil || ok {
			return ok, err
		}
		return eval(n.R, e)

	case *Not:
		ok, err := eval(n.X, e)
		return !ok, err

	case *IsNotNull:
		_, null, err := operand(n.X, e)
		if err != nil {
			return false, err
		}
		return !null, nil

	case *Compare:
		v, null, err := operand(n.Left, e)
		if err != nil {
			return false, err
		}
		return compare(n.Op, v, null, n.Right)

	case *In:
		v, null, err := operand(n.X, e)
		if err != nil || null {
			return false, err
		}
		for _, c := range n.Values {
			if c.Value == nil {
				continue
			}
			if cmp, ok := compareValues(v, c.Value); ok && cmp == 0 {
				return true, nil
			}
		}
		return false, nil

	case *Contains:
		v, null, err := operand(n.X, e)
		if err != nil || null {
			return false, err
		}
		return strings.Contains(strings.ToLower(text(v)), n.Substr), nil

	case *Exists:
		c, err := collection(n.Collection, e)
		if err != nil || c == nil {
			return false, err
		}
		if n.Pred == nil {
			return c.Len() > 0, nil
		}
		for i := range c.Len() {
			ok, err := eval(n.Pred, &env{param: n.Elem, cur: c.Index(i), next: e})
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("predicate: unknown expression %T", x)
}

// operand returns the scalar value of op, or reports that it is null.
func operand(op Operand, e *env) (any, bool, error) {
	switch o := op.(type) {
	case *Const:
		return o.Value, o.Value == nil, nil
	case *DateOf:
		v, null, err := operand(o.X, e)
		if err != nil || null {
			return nil, true, err
		}
		tm, ok := canonical(v).(time.Time)
		if !ok {
			return nil, false, fmt.Errorf("predicate: %s is not a time", o.X)
		}
		return dateOf(tm), false, nil
	case *Member:
		c, err := member(o, e)
		if err != nil || c == nil {
			return nil, true, err
		}
		return c.Value(), false, nil
	}
	return nil, false, fmt.Errorf("predicate: unknown operand %T", op)
}

// member walks the member chain. A nil cursor means some link was null.
func member(m *Member, e *env) (cursor, error) {
	c, err := e.lookup(m.Param)
	if err != nil {
		return nil, err
	}
	for _, f := range m.Path {
		if c.IsNull() {
			return nil, nil
		}
		if c, err = c.Field(f); err != nil {
			return nil, err
		}
	}
	if c.IsNull() {
		return nil, nil
	}
	return c, nil
}

func collection(op Operand, e *env) (cursor, error) {
	m, ok := op.(*Member)
	if !ok {
		return nil, fmt.Errorf("predicate: %s is not a collection", op)
	}
	return member(m, e)
}

func compare(op CompareOp, v any, null bool, c *Const) (bool, error) {
	switch op {
	case OpEq, OpNe:
		eq := null && c.Value == nil
		if !null && c.Value != nil {
			cmp, ok := compareValues(v, c.Value)
			eq = ok && cmp == 0
		}
		return eq == (op == OpEq), nil
	}

	if null || c.Value == nil {
		return false, nil
	}
	cmp, ok := compareValues(v, c.Value)
	if !ok {
		return false, fmt.Errorf("predicate: cannot order %T and %T", v, c.Value)
	}
	switch op {
	case OpGt:
		return cmp > 0, nil
	case OpLt:
		return cmp < 0, nil
	case OpGe:
		return cmp >= 0, nil
	case OpLe:
		return cmp <= 0, nil
	}
	return false, fmt.Errorf("predicate: unknown comparison %s", op)
}

// compareValues compares two scalars. ok is false when the values
// cannot be compared.
func compareValues(a, b any) (int, bool) {
	a, b = canonical(a), canonical(b)
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return strings.Compare(x, y), ok
	case int64:
		switch y := b.(type) {
		case int64:
			return cmpOrdered(x, y), true
		case uint64:
			if x < 0 {
				return -1, true
			}
			return cmpOrdered(uint64(x), y), true
		case float64:
			return cmpOrdered(float64(x), y), true
		}
	case uint64:
		switch y := b.(type) {
		case uint64:
			return cmpOrdered(x, y), true
		case int64:
			if y < 0 {
				return 1, true
			}
			return cmpOrdered(x, uint64(y)), true
		case float64:
			return cmpOrdered(float64(x), y), true
		}
	case float64:
		switch y := b.(type) {
		case float64:
			return cmpOrdered(x, y), true
		case int64:
			return cmpOrdered(x, float64(y)), true
		case uint64:
			return cmpOrdered(x, float64(y)), true
		}
	case bool:
		y, ok := b.(bool)
		if !ok || x == y {
			return 0, ok
		}
		return 1, true
	case time.Time:
		y, ok := b.(time.Time)
		return x.Compare(y), ok
	case uuid.UUID:
		y, ok := b.(uuid.UUID)
		if !ok {
			return 0, false
		}
		return strings.Compare(x.String(), y.String()), true
	}
	return 0, false
}

func cmpOrdered[T int64 | uint64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// canonical maps named and sized scalar types onto string, int64, uint64,
// float64, bool, time.Time and uuid.UUID.
func canonical(v any) any {
	switch x := v.(type) {
	case string, int64, uint64, float64, bool, time.Time, uuid.UUID:
		return v
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case [16]byte:
		return uuid.UUID(x)
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Struct:
		if rv.Type().ConvertibleTo(reflect.TypeOf(time.Time{})) {
			return rv.Convert(reflect.TypeOf(time.Time{})).Interface()
		}
	case reflect.Array:
		if rv.Type().ConvertibleTo(reflect.TypeOf(uuid.UUID{})) {
			return rv.Convert(reflect.TypeOf(uuid.UUID{})).Interface()
		}
	}
	return rv.Interface()
}

// containsTimeLayout renders times for Contains, in UTC. It matches
// containsTimeFormat of the DuckDB encoder.
const containsTimeLayout = "2006-01-02 15:04:05"

// text is the form Contains searches in.
func text(v any) string {
	if tm, ok := canonical(v).(time.Time); ok {
		return tm.UTC().Format(containsTimeLayout)
	}
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
