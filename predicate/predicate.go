package predicate

import (
	"fmt"
	"reflect"

	"github.com/hugr-lab/entityfilter/schema"
)

// Predicate is a compiled filter: a boolean expression over one parameter of
// the entity type. Predicates are immutable and safe for concurrent use.
type Predicate struct {
	Root  Expr
	Param *Param
	Type  *schema.Type
}

func (p *Predicate) String() string {
	if p == nil {
		return "<none>"
	}
	return p.Param.Name + " => " + p.Root.String()
}

// Match evaluates the predicate against a Go value: a struct described by
// p.Type (or a pointer to one), or a map[string]any keyed by member name.
// A nil predicate matches everything.
func (p *Predicate) Match(entity any) (bool, error) {
	if p == nil {
		return true, nil
	}
	return eval(p.Root, &env{param: p.Param, cur: newValueCursor(reflect.ValueOf(entity))})
}

// Where returns the items the predicate matches, in order. A nil predicate
// keeps every item.
func Where[T any](p *Predicate, items []T) ([]T, error) {
	if p == nil {
		return items, nil
	}
	out := make([]T, 0, len(items))
	for i := range items {
		ok, err := p.Match(items[i])
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if ok {
			out = append(out, items[i])
		}
	}
	return out, nil
}

// valueCursor reads Go values through reflection. Struct members are read
// by field index, map members by name.
type valueCursor struct {
	v reflect.Value
}

func newValueCursor(v reflect.Value) *valueCursor {
	return &valueCursor{v: v}
}

// deref follows pointers and interfaces. It returns an invalid value for nil.
func (c *valueCursor) deref() reflect.Value {
	v := c.v
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func (c *valueCursor) IsNull() bool {
	v := c.deref()
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		return v.IsNil()
	}
	return false
}

func (c *valueCursor) Field(f *schema.Field) (cursor, error) {
	v := c.deref()
	switch v.Kind() {
	case reflect.Struct:
		if len(f.Index) == 0 {
			return nil, fmt.Errorf("predicate: member %s has no field index for %s", f.Name, v.Type())
		}
		fv, err := v.FieldByIndexErr(f.Index)
		if err != nil {
			return newValueCursor(reflect.Value{}), nil
		}
		return newValueCursor(fv), nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			break
		}
		fv := v.MapIndex(reflect.ValueOf(f.Name).Convert(v.Type().Key()))
		if !fv.IsValid() && f.Column != f.Name {
			fv = v.MapIndex(reflect.ValueOf(f.Column).Convert(v.Type().Key()))
		}
		return newValueCursor(fv), nil
	}
	return nil, fmt.Errorf("predicate: cannot read member %s of %s", f.Name, v.Type())
}

func (c *valueCursor) Len() int {
	v := c.deref()
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return v.Len()
	}
	return 0
}

func (c *valueCursor) Index(i int) cursor {
	return newValueCursor(c.deref().Index(i))
}

func (c *valueCursor) Value() any {
	v := c.deref()
	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}
