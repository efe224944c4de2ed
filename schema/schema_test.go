package schema

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/extensions"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type status int

func (s *status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "active":
		*s = 1
	case "blocked":
		*s = 2
	default:
		return fmt.Errorf("unknown status %q", text)
	}
	return nil
}

type audit struct {
	CreatedAt time.Time `db:"created_at"`
	Name      string
}

type address struct {
	City string
	Zip  *int
}

type person struct {
	audit
	ID       uuid.UUID
	Name     string `filter:"FullName" db:"full_name"`
	Age      *int
	Status   status
	Home     *address
	Tags     []string
	Friends  []*person
	Secret   string `filter:"-"`
	Meta     map[string]any
	Avatar   []byte
	internal int
}

func TestDescribeStruct(t *testing.T) {
	pt, err := Of[person]()
	require.NoError(t, err)

	assert.Equal(t, KindStruct, pt.Kind)
	assert.Equal(t, "person", pt.Name)
	assert.False(t, pt.Nullable)

	names := make([]string, len(pt.Fields))
	for i, f := range pt.Fields {
		names[i] = f.Name
		assert.Equal(t, i, f.Ordinal)
	}
	assert.Equal(t, []string{"CreatedAt", "Name", "ID", "FullName", "Age", "Status", "Home", "Tags", "Friends"}, names)
}

func TestDescribeMembers(t *testing.T) {
	pt, err := Of[person]()
	require.NoError(t, err)

	created, ok := pt.Field("CreatedAt")
	require.True(t, ok)
	assert.Equal(t, KindTime, created.Type.Kind)
	assert.Equal(t, "created_at", created.Column)
	assert.Equal(t, []int{0, 0}, created.Index)

	name, ok := pt.Field("FullName")
	require.True(t, ok)
	assert.Equal(t, "full_name", name.Column)
	assert.Equal(t, KindString, name.Type.Kind)

	id, ok := pt.Field("ID")
	require.True(t, ok)
	assert.Equal(t, KindUUID, id.Type.Kind)

	age, ok := pt.Field("Age")
	require.True(t, ok)
	assert.Equal(t, KindInt, age.Type.Kind)
	assert.True(t, age.Type.Nullable)
	assert.Equal(t, reflect.TypeOf(0), age.Type.GoType)

	st, ok := pt.Field("Status")
	require.True(t, ok)
	assert.Equal(t, KindEnum, st.Type.Kind)
	assert.Equal(t, reflect.TypeOf(status(0)), st.Type.GoType)

	tags, ok := pt.Field("Tags")
	require.True(t, ok)
	assert.Equal(t, KindList, tags.Type.Kind)
	assert.Equal(t, KindString, tags.Type.Elem.Kind)

	for _, hidden := range []string{"Secret", "Meta", "Avatar", "internal"} {
		_, ok := pt.Field(hidden)
		assert.False(t, ok, hidden)
	}
}

func TestFieldCaseInsensitive(t *testing.T) {
	pt, err := Of[person]()
	require.NoError(t, err)

	f, ok := pt.Field("fullname")
	require.True(t, ok)
	assert.Equal(t, "FullName", f.Name)

	_, ok = pt.Field("Missing")
	assert.False(t, ok)
}

func TestDescribeRecursive(t *testing.T) {
	pt, err := Of[person]()
	require.NoError(t, err)

	friends, ok := pt.Field("Friends")
	require.True(t, ok)
	elem := friends.Type.Elem
	require.NotNil(t, elem)
	assert.Equal(t, KindStruct, elem.Kind)
	assert.True(t, elem.Nullable)

	home, ok := elem.Field("Home")
	require.True(t, ok)
	assert.True(t, home.Type.Nullable)

	city, ok := home.Type.Field("City")
	require.True(t, ok)
	assert.Equal(t, KindString, city.Type.Kind)

	// The nullable copy exposes the same members as the base type.
	assert.Len(t, elem.Fields, len(pt.Fields))
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(reflect.TypeOf(&person{}), reflect.TypeOf(address{}))
	require.NoError(t, err)

	pt, ok := r.ByName("person")
	require.True(t, ok)
	assert.False(t, pt.Nullable)

	at, ok := r.Lookup(reflect.TypeOf(&address{}))
	require.True(t, ok)
	assert.Equal(t, "address", at.Name)

	assert.Len(t, r.Types(), 2)

	_, err = NewRegistry(reflect.TypeOf(map[string]int{}))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDescribeScalarRoot(t *testing.T) {
	st, err := Of[string]()
	require.NoError(t, err)
	assert.True(t, st.IsScalar())
	assert.Equal(t, KindString, st.Kind)
}

func TestFromArrow(t *testing.T) {
	s := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: extensions.NewUUIDType()},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "payload", Type: arrow.MapOf(arrow.BinaryTypes.String, arrow.BinaryTypes.String)},
		{Name: "age", Type: arrow.PrimitiveTypes.Int16, Nullable: true},
		{Name: "born", Type: arrow.FixedWidthTypes.Date32},
		{Name: "address", Type: arrow.StructOf(
			arrow.Field{Name: "city", Type: arrow.BinaryTypes.String, Nullable: true},
		), Nullable: true},
		{Name: "orders", Type: arrow.ListOf(arrow.StructOf(
			arrow.Field{Name: "total", Type: arrow.PrimitiveTypes.Float64},
		))},
	}, nil)

	et, err := FromArrow("people", s)
	require.NoError(t, err)
	require.Len(t, et.Fields, 6)

	id, ok := et.Field("id")
	require.True(t, ok)
	assert.Equal(t, KindUUID, id.Type.Kind)
	assert.Equal(t, 0, id.Ordinal)

	_, ok = et.Field("payload")
	assert.False(t, ok)

	age, ok := et.Field("age")
	require.True(t, ok)
	assert.Equal(t, 3, age.Ordinal)
	assert.True(t, age.Type.Nullable)
	assert.Equal(t, reflect.TypeOf(int16(0)), age.Type.GoType)

	born, ok := et.Field("born")
	require.True(t, ok)
	assert.Equal(t, KindTime, born.Type.Kind)

	addr, ok := et.Field("Address")
	require.True(t, ok)
	city, ok := addr.Type.Field("city")
	require.True(t, ok)
	assert.Equal(t, 0, city.Ordinal)

	orders, ok := et.Field("orders")
	require.True(t, ok)
	assert.Equal(t, KindList, orders.Type.Kind)
	total, ok := orders.Type.Elem.Field("total")
	require.True(t, ok)
	assert.Equal(t, KindFloat, total.Type.Kind)
}

func TestKindOrdered(t *testing.T) {
	for _, k := range []Kind{KindString, KindInt, KindUint, KindFloat, KindTime, KindEnum} {
		assert.True(t, k.Ordered(), k.String())
	}
	for _, k := range []Kind{KindBool, KindUUID, KindStruct, KindList} {
		assert.False(t, k.Ordered(), k.String())
	}
}
