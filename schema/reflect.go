package schema

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// Registry holds descriptors for a fixed set of Go types. It is built once
// and read concurrently afterwards.
type Registry struct {
	types  map[reflect.Type]*Type
	byName map[string]*Type
	roots  []*Type
}

// NewRegistry reflects the given types and everything reachable from them.
//
// Member names come from the `filter` struct tag or the Go field name;
// `filter:"-"` hides a member. The storage column comes from the `db` tag.
// Pointer members are nullable, slices and arrays (except []byte) are lists,
// embedded structs are flattened. Members whose type cannot be described
// (maps, funcs, interfaces) are not filterable and are left out.
func NewRegistry(types ...reflect.Type) (*Registry, error) {
	b := &builder{types: make(map[reflect.Type]*Type)}
	r := &Registry{byName: make(map[string]*Type)}

	for _, rt := range types {
		if rt == nil {
			return nil, fmt.Errorf("%w: nil type", ErrUnsupportedType)
		}
		for rt.Kind() == reflect.Pointer {
			rt = rt.Elem()
		}
		t, err := b.describe(rt)
		if err != nil {
			return nil, err
		}
		if prev, ok := r.byName[t.Name]; ok && prev.GoType != t.GoType {
			return nil, fmt.Errorf("schema: duplicate type name %q", t.Name)
		}
		r.byName[t.Name] = t
		r.roots = append(r.roots, t)
	}
	b.finish()

	r.types = b.types
	return r, nil
}

// Lookup returns the descriptor of rt. Pointer types resolve to their
// element type.
func (r *Registry) Lookup(rt reflect.Type) (*Type, bool) {
	for rt != nil && rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	t, ok := r.types[rt]
	return t, ok
}

// ByName returns a registered root type by name.
func (r *Registry) ByName(name string) (*Type, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Types returns the registered root types in registration order.
func (r *Registry) Types() []*Type {
	return append([]*Type(nil), r.roots...)
}

// Describe reflects a single Go type.
func Describe(rt reflect.Type) (*Type, error) {
	r, err := NewRegistry(rt)
	if err != nil {
		return nil, err
	}
	return r.roots[0], nil
}

// Of reflects T.
func Of[T any]() (*Type, error) {
	return Describe(reflect.TypeFor[T]())
}

type fixup struct {
	copy, base *Type
}

type builder struct {
	types   map[reflect.Type]*Type
	pending []fixup
}

func (b *builder) describe(rt reflect.Type) (*Type, error) {
	nullable := false
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
		nullable = true
	}

	t, err := b.base(rt)
	if err != nil {
		return nil, err
	}
	if !nullable {
		return t, nil
	}

	n := t.nullable()
	if t.Kind == KindStruct {
		// t may still be under construction when the type is recursive.
		b.pending = append(b.pending, fixup{copy: n, base: t})
	}
	return n, nil
}

func (b *builder) base(rt reflect.Type) (*Type, error) {
	if t, ok := b.types[rt]; ok {
		return t, nil
	}

	var t *Type
	switch {
	case rt == timeType:
		t = &Type{Name: rt.String(), Kind: KindTime, GoType: rt}
	case rt == uuidType:
		t = &Type{Name: rt.String(), Kind: KindUUID, GoType: rt}
	case isEnum(rt):
		t = &Type{Name: rt.String(), Kind: KindEnum, GoType: rt}
	default:
		switch rt.Kind() {
		case reflect.String:
			t = &Type{Name: rt.String(), Kind: KindString, GoType: rt}
		case reflect.Bool:
			t = &Type{Name: rt.String(), Kind: KindBool, GoType: rt}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			t = &Type{Name: rt.String(), Kind: KindInt, GoType: rt}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			t = &Type{Name: rt.String(), Kind: KindUint, GoType: rt}
		case reflect.Float32, reflect.Float64:
			t = &Type{Name: rt.String(), Kind: KindFloat, GoType: rt}
		case reflect.Struct:
			return b.structType(rt)
		case reflect.Slice, reflect.Array:
			if rt.Elem().Kind() == reflect.Uint8 {
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, rt)
			}
			elem, err := b.describe(rt.Elem())
			if err != nil {
				return nil, err
			}
			t = &Type{Name: rt.String(), Kind: KindList, GoType: rt, Elem: elem}
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, rt)
		}
	}

	b.types[rt] = t
	return t, nil
}

func (b *builder) structType(rt reflect.Type) (*Type, error) {
	name := rt.Name()
	if name == "" {
		name = rt.String()
	}
	t := &Type{Name: name, Kind: KindStruct, GoType: rt}
	b.types[rt] = t

	fields, err := b.fields(rt, nil, map[reflect.Type]bool{rt: true})
	if err != nil {
		delete(b.types, rt)
		return nil, err
	}
	for i, f := range fields {
		f.Ordinal = i
	}
	t.Fields = fields
	t.seal()
	return t, nil
}

func (b *builder) fields(rt reflect.Type, prefix []int, embedded map[reflect.Type]bool) ([]*Field, error) {
	var (
		out    []*Field
		byName = map[string]int{}
	)

	add := func(f *Field) {
		if i, ok := byName[f.Name]; ok {
			// The shallower member wins, as with Go field promotion.
			if len(f.Index) < len(out[i].Index) {
				out[i] = f
			}
			return
		}
		byName[f.Name] = len(out)
		out = append(out, f)
	}

	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		tag := sf.Tag.Get("filter")
		if tag == "-" {
			continue
		}
		index := append(append([]int(nil), prefix...), i)

		if sf.Anonymous && tag == "" && sf.Type.Kind() == reflect.Struct && sf.Type != timeType {
			if embedded[sf.Type] {
				continue
			}
			embedded[sf.Type] = true
			sub, err := b.fields(sf.Type, index, embedded)
			delete(embedded, sf.Type)
			if err != nil {
				return nil, err
			}
			for _, f := range sub {
				add(f)
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}

		ft, err := b.describe(sf.Type)
		if errors.Is(err, ErrUnsupportedType) {
			continue
		}
		if err != nil {
			return nil, err
		}

		name := sf.Name
		if tagName, _, _ := strings.Cut(tag, ","); tagName != "" {
			name = tagName
		}
		column := name
		if db, _, _ := strings.Cut(sf.Tag.Get("db"), ","); db != "" && db != "-" {
			column = db
		}

		add(&Field{Name: name, Column: column, Type: ft, Index: index})
	}
	return out, nil
}

// finish completes nullable copies of recursive struct types.
func (b *builder) finish() {
	for _, p := range b.pending {
		p.copy.Fields = p.base.Fields
		p.copy.index = p.base.index
		p.copy.fold = p.base.fold
	}
	b.pending = nil
}

// isEnum reports whether rt is a named integer type that can be parsed
// from its text form.
func isEnum(rt reflect.Type) bool {
	if rt.Name() == "" || rt.PkgPath() == "" {
		return false
	}
	switch rt.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return reflect.PointerTo(rt).Implements(textUnmarshalerType)
	}
	return false
}
