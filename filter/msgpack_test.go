package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

func TestMsgpackRoundTrip(t *testing.T) {
	id := uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2")
	src := And(
		Expr("Id", TypeEqual, id),
		Expr("Tags", TypeIn, []string{"a", "b"}),
		Expr("Score", TypeMoreThan, 1.25),
		Any("Orders", Or(
			Expr("Total", TypeLessThanOrEqual, int64(99)),
			Expr("Note", TypeContains, nil),
		)),
	)

	data, err := EncodeMsgpack(src)
	if err != nil {
		t.Fatalf("EncodeMsgpack failed: %v", err)
	}

	got, err := ParseMsgpack(data)
	if err != nil {
		t.Fatalf("ParseMsgpack failed: %v", err)
	}

	if len(got.Expressions) != 4 {
		t.Fatalf("expected 4 expressions, got %d", len(got.Expressions))
	}

	if s, ok := got.Expressions[0].Value.Interface().(string); !ok || s != id.String() {
		t.Errorf("uuid should travel as string, got %#v", got.Expressions[0].Value.Interface())
	}

	tags := got.Expressions[1].Value
	if tags.Kind() != KindRaw {
		t.Fatalf("array should stay raw, got %s", tags.Kind())
	}
	if codec, _ := tags.Raw(); codec != CodecMsgpack {
		t.Errorf("expected msgpack codec, got %s", codec)
	}
	elems, err := tags.Elements()
	if err != nil {
		t.Fatalf("Elements failed: %v", err)
	}
	if len(elems) != 2 || elems[0].Interface() != "a" {
		t.Errorf("unexpected elements %v", elems)
	}

	if f, ok := got.Expressions[2].Value.Interface().(float64); !ok || f != 1.25 {
		t.Errorf("expected float64 1.25, got %#v", got.Expressions[2].Value.Interface())
	}

	orders, err := got.Expressions[3].Value.AsFilter()
	if err != nil {
		t.Fatalf("AsFilter failed: %v", err)
	}
	if orders.LogicalOperator != OperatorOr || len(orders.Expressions) != 2 {
		t.Fatalf("nested filter not preserved: %+v", orders)
	}
	if orders.Expressions[0].ExpressionType != TypeLessThanOrEqual {
		t.Errorf("expected LessThanOrEqual, got %s", orders.Expressions[0].ExpressionType)
	}
	if v, ok := orders.Expressions[0].Value.Interface().(int64); !ok || v != 99 {
		t.Errorf("expected int64 99, got %#v", orders.Expressions[0].Value.Interface())
	}
	if !orders.Expressions[1].Value.IsNull() {
		t.Errorf("expected null value")
	}
}

func TestMsgpackFromJSON(t *testing.T) {
	f, err := Parse([]byte(`{"logicalOperator": "Or", "expressions": [
		{"property": "Age", "expressionType": "In", "value": [1, 2, 30000000000]},
		{"property": "Name", "expressionType": "Equal", "value": "x"}
	]}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	data, err := EncodeMsgpack(f)
	if err != nil {
		t.Fatalf("EncodeMsgpack failed: %v", err)
	}
	got, err := ParseMsgpack(data)
	if err != nil {
		t.Fatalf("ParseMsgpack failed: %v", err)
	}

	elems, err := got.Expressions[0].Value.Elements()
	if err != nil {
		t.Fatalf("Elements failed: %v", err)
	}
	if len(elems) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(elems))
	}
	if v, ok := elems[2].Interface().(int64); !ok || v != 30000000000 {
		t.Errorf("expected int64 element, got %#v", elems[2].Interface())
	}
}

func TestMsgpackOperatorNames(t *testing.T) {
	data, err := msgpack.Marshal(map[string]any{
		"logicalOperator": "not",
		"expressions": []any{
			map[string]any{"property": "A", "expressionType": "EqualToDate", "value": time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		},
	})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	f, err := ParseMsgpack(data)
	if err != nil {
		t.Fatalf("ParseMsgpack failed: %v", err)
	}
	if f.LogicalOperator != OperatorNot {
		t.Errorf("expected Not, got %s", f.LogicalOperator)
	}
	if f.Expressions[0].ExpressionType != TypeEqualToDate {
		t.Errorf("expected EqualToDate, got %s", f.Expressions[0].ExpressionType)
	}
	if _, ok := f.Expressions[0].Value.Interface().(time.Time); !ok {
		t.Errorf("expected time.Time scalar, got %T", f.Expressions[0].Value.Interface())
	}
}

func TestMsgpackUnknownOperator(t *testing.T) {
	data, err := msgpack.Marshal(map[string]any{
		"logicalOperator": 7,
		"expressions":     []any{},
	})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	_, err = ParseMsgpack(data)
	if !errors.Is(err, ErrUnknownOperator) {
		t.Errorf("expected ErrUnknownOperator, got %v", err)
	}
}

func TestMsgpackEmpty(t *testing.T) {
	f, err := ParseMsgpack(nil)
	if err != nil {
		t.Fatalf("ParseMsgpack failed: %v", err)
	}
	if !f.IsEmpty() {
		t.Error("expected empty filter")
	}

	data, err := EncodeMsgpack(nil)
	if err != nil {
		t.Fatalf("EncodeMsgpack failed: %v", err)
	}
	f, err = ParseMsgpack(data)
	if err != nil {
		t.Fatalf("ParseMsgpack failed: %v", err)
	}
	if !f.IsEmpty() {
		t.Error("expected empty filter after round trip")
	}
}

func TestMsgpackValueToJSON(t *testing.T) {
	raw, err := msgpack.Marshal([]any{"a", int64(1)})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	data, err := RawMsgpack(raw).MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}
	if string(data) != `["a",1]` {
		t.Errorf("unexpected JSON %s", data)
	}
}

func TestMsgpackOversizedArrayHeader(t *testing.T) {
	// {"expressions": array32 of 0x7fffffff elements} with no elements following.
	data := append([]byte{0x81, 0xab}, "expressions"...)
	data = append(data, 0xdd, 0x7f, 0xff, 0xff, 0xff)

	if _, err := ParseMsgpack(data); err == nil {
		t.Fatal("expected error for truncated expressions array")
	}

	nested := append([]byte{0x81, 0xab}, "expressions"...)
	nested = append(nested, 0x91, 0x83,
		0xa8, 'p', 'r', 'o', 'p', 'e', 'r', 't', 'y', 0xc0,
		0xae, 'e', 'x', 'p', 'r', 'e', 's', 's', 'i', 'o', 'n', 'T', 'y', 'p', 'e', 0x0a,
		0xa5, 'v', 'a', 'l', 'u', 'e')
	nested = append(nested, data...)

	if _, err := ParseMsgpack(nested); err == nil {
		t.Fatal("expected error for truncated nested filter")
	}

	// A well-formed embedded filter whose own header lies about its size.
	inner := append([]byte{0x81, 0xab}, "expressions"...)
	inner = append(inner, 0xdd, 0x7f, 0xff, 0xff, 0xff)
	if _, err := RawMsgpack(inner).AsFilter(); err == nil {
		t.Fatal("expected error for truncated embedded filter")
	}
}
