// Package schema describes the shape of filterable entities: which members
// an entity has, what kind of value each member holds and the exact runtime
// type a constant compared against it must have.
//
// Descriptors are built once, either by reflecting Go types (NewRegistry,
// Describe) or from Arrow schemas (FromArrow), and are immutable afterwards.
// They are safe for concurrent use.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUnsupportedType is returned when a Go or Arrow type has no descriptor.
var ErrUnsupportedType = errors.New("schema: unsupported type")

// Kind classifies the values of a Type.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindBool
	KindInt
	KindUint
	KindFloat
	KindTime
	KindUUID
	KindEnum
	KindStruct
	KindList
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindString:  "string",
	KindBool:    "bool",
	KindInt:     "int",
	KindUint:    "uint",
	KindFloat:   "float",
	KindTime:    "time",
	KindUUID:    "uuid",
	KindEnum:    "enum",
	KindStruct:  "struct",
	KindList:    "list",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Scalar reports whether values of this kind are leaves.
func (k Kind) Scalar() bool {
	return k != KindInvalid && k != KindStruct && k != KindList
}

// Ordered reports whether values of this kind support <, <=, > and >=.
func (k Kind) Ordered() bool {
	switch k {
	case KindString, KindInt, KindUint, KindFloat, KindTime, KindEnum:
		return true
	}
	return false
}

// Type describes an entity type or a member type.
type Type struct {
	// Name is the type name used in error messages.
	Name string

	Kind Kind

	// GoType is the exact type of a constant compared against this type,
	// without pointer indirection. Nil for structs and lists built from
	// Arrow schemas.
	GoType reflect.Type

	// Nullable is set when values of this type may be absent at the place
	// the type is used (pointer members, nullable Arrow fields).
	Nullable bool

	// Fields are the members of a struct type, in declaration order.
	Fields []*Field

	// Elem is the element type of a list type.
	Elem *Type

	index map[string]*Field
	fold  map[string]*Field
}

// Field is a member of a struct type.
type Field struct {
	// Name is the member name used in filter property paths.
	Name string

	// Column is the storage column name (the db tag, or Name).
	Column string

	Type *Type

	// Index is the reflect field index path for Go types, nil for Arrow.
	Index []int

	// Ordinal is the child index within an Arrow struct or schema, or the
	// position among Fields for Go types.
	Ordinal int
}

// Field returns the member with the given name. Names match exactly first,
// then case-insensitively.
func (t *Type) Field(name string) (*Field, bool) {
	if t == nil || t.Kind != KindStruct {
		return nil, false
	}
	if t.index == nil {
		for _, f := range t.Fields {
			if f.Name == name {
				return f, true
			}
		}
		for _, f := range t.Fields {
			if strings.EqualFold(f.Name, name) {
				return f, true
			}
		}
		return nil, false
	}
	if f, ok := t.index[name]; ok {
		return f, true
	}
	f, ok := t.fold[strings.ToLower(name)]
	return f, ok
}

// IsScalar reports whether t is a leaf type.
func (t *Type) IsScalar() bool { return t != nil && t.Kind.Scalar() }

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	var b strings.Builder
	if t.Nullable {
		b.WriteByte('?')
	}
	switch {
	case t.Kind == KindList && t.Elem != nil:
		b.WriteString("[]")
		b.WriteString(t.Elem.String())
	case t.Name != "":
		b.WriteString(t.Name)
	default:
		b.WriteString(t.Kind.String())
	}
	return b.String()
}

// nullable returns a copy of t marked as nullable. Struct copies share the
// member list with t once it is sealed.
func (t *Type) nullable() *Type {
	if t.Nullable {
		return t
	}
	c := *t
	c.Nullable = true
	return &c
}

// seal builds the member lookup tables. Types are read-only afterwards.
func (t *Type) seal() {
	if t.Kind != KindStruct || t.index != nil {
		return
	}
	t.index = make(map[string]*Field, len(t.Fields))
	t.fold = make(map[string]*Field, len(t.Fields))
	for _, f := range t.Fields {
		if _, ok := t.index[f.Name]; !ok {
			t.index[f.Name] = f
		}
		key := strings.ToLower(f.Name)
		if _, ok := t.fold[key]; !ok {
			t.fold[key] = f
		}
	}
}

var (
	timeType = reflect.TypeOf(time.Time{})
	uuidType = reflect.TypeOf(uuid.UUID{})
)

// Scalar types with the canonical Go representation of each kind.
var (
	String = &Type{Name: "string", Kind: KindString, GoType: reflect.TypeOf("")}
	Bool   = &Type{Name: "bool", Kind: KindBool, GoType: reflect.TypeOf(false)}
	Int    = &Type{Name: "int64", Kind: KindInt, GoType: reflect.TypeOf(int64(0))}
	Uint   = &Type{Name: "uint64", Kind: KindUint, GoType: reflect.TypeOf(uint64(0))}
	Float  = &Type{Name: "float64", Kind: KindFloat, GoType: reflect.TypeOf(float64(0))}
	Time   = &Type{Name: "time", Kind: KindTime, GoType: timeType}
	UUID   = &Type{Name: "uuid", Kind: KindUUID, GoType: uuidType}
)

// ListOf returns a list type with the given element type.
func ListOf(elem *Type) *Type {
	return &Type{Name: "[]" + elem.Name, Kind: KindList, Elem: elem}
}

// StructOf returns a struct type with the given members. Ordinals are
// assigned from the member positions.
func StructOf(name string, fields ...*Field) *Type {
	t := &Type{Name: name, Kind: KindStruct, Fields: fields}
	for i, f := range fields {
		f.Ordinal = i
		if f.Column == "" {
			f.Column = f.Name
		}
	}
	t.seal()
	return t
}

// Nullable returns a nullable copy of t.
func Nullable(t *Type) *Type { return t.nullable() }
