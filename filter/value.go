package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	// KindNull is an absent value.
	KindNull ValueKind = iota
	// KindScalar is a native Go value (string, number, bool, time, uuid...).
	KindScalar
	// KindRaw is an undecoded structured wire value (array or object).
	KindRaw
	// KindFilter is an embedded filter built in Go.
	KindFilter
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindRaw:
		return "raw"
	case KindFilter:
		return "filter"
	default:
		return "unknown"
	}
}

// Codec identifies the encoding of a raw value.
type Codec uint8

const (
	CodecJSON Codec = iota
	CodecMsgpack
)

func (c Codec) String() string {
	if c == CodecMsgpack {
		return "msgpack"
	}
	return "json"
}

// Value is the operand of a filter expression. It is either absent, a native
// scalar, an undecoded structured wire value, or an embedded filter. Raw
// values are decoded only when the target type is known.
type Value struct {
	kind   ValueKind
	scalar any
	codec  Codec
	raw    []byte
	filter *Filter
}

// Null returns the absent value.
func Null() Value { return Value{} }

// Scalar wraps a native Go value. nil yields Null.
func Scalar(v any) Value {
	if v == nil {
		return Value{}
	}
	return Value{kind: KindScalar, scalar: v}
}

// RawJSON wraps an undecoded JSON document.
func RawJSON(data []byte) Value {
	return Value{kind: KindRaw, codec: CodecJSON, raw: data}
}

// RawMsgpack wraps an undecoded MessagePack document.
func RawMsgpack(data []byte) Value {
	return Value{kind: KindRaw, codec: CodecMsgpack, raw: data}
}

// Nested wraps an embedded filter. A nil filter yields Null.
func Nested(f *Filter) Value {
	if f == nil {
		return Value{}
	}
	return Value{kind: KindFilter, filter: f}
}

// ValueOf converts an arbitrary Go value into a Value.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case *Filter:
		return Nested(x)
	case Filter:
		return Nested(&x)
	case json.RawMessage:
		return parseJSONValue(x)
	case msgpack.RawMessage:
		return RawMsgpack(x)
	default:
		return Scalar(v)
	}
}

// Kind returns the variant tag.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is absent.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Interface returns the scalar held by v, or nil for other variants.
func (v Value) Interface() any { return v.scalar }

// Raw returns the codec and bytes of a raw value.
func (v Value) Raw() (Codec, []byte) { return v.codec, v.raw }

// Decode unmarshals a raw value into dst using its codec.
func (v Value) Decode(dst any) error {
	if v.kind != KindRaw {
		return fmt.Errorf("filter: cannot decode %s value", v.kind)
	}
	switch v.codec {
	case CodecMsgpack:
		return msgpack.Unmarshal(v.raw, dst)
	default:
		dec := json.NewDecoder(bytes.NewReader(v.raw))
		dec.UseNumber()
		return dec.Decode(dst)
	}
}

// AsFilter returns the embedded filter. Raw values are decoded as a Filter;
// Null yields (nil, nil).
func (v Value) AsFilter() (*Filter, error) {
	switch v.kind {
	case KindNull:
		return nil, nil
	case KindFilter:
		return v.filter, nil
	case KindRaw:
		var f Filter
		if err := v.Decode(&f); err != nil {
			return nil, fmt.Errorf("filter: embedded filter: %w", err)
		}
		return &f, nil
	default:
		if f, ok := v.scalar.(*Filter); ok {
			return f, nil
		}
		return nil, fmt.Errorf("filter: expected embedded filter, got %T", v.scalar)
	}
}

// Elements splits an array-like value into element values. Raw arrays are
// materialized element by element; scalar slices are wrapped per element.
func (v Value) Elements() ([]Value, error) {
	switch v.kind {
	case KindRaw:
		return v.rawElements()
	case KindScalar:
		rv := reflect.ValueOf(v.scalar)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("filter: expected array, got %T", v.scalar)
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, fmt.Errorf("filter: expected array, got %T", v.scalar)
		}
		out := make([]Value, rv.Len())
		for i := range out {
			out[i] = Scalar(rv.Index(i).Interface())
		}
		return out, nil
	default:
		return nil, fmt.Errorf("filter: expected array, got %s value", v.kind)
	}
}

func (v Value) rawElements() ([]Value, error) {
	switch v.codec {
	case CodecMsgpack:
		var items []msgpack.RawMessage
		if err := msgpack.Unmarshal(v.raw, &items); err != nil {
			return nil, fmt.Errorf("filter: expected array: %w", err)
		}
		out := make([]Value, len(items))
		for i, item := range items {
			ev, err := valueFromMsgpack(item)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	default:
		var items []json.RawMessage
		if err := json.Unmarshal(v.raw, &items); err != nil {
			return nil, fmt.Errorf("filter: expected array: %w", err)
		}
		out := make([]Value, len(items))
		for i, item := range items {
			out[i] = parseJSONValue(item)
		}
		return out, nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindScalar:
		return fmt.Sprintf("%v", v.scalar)
	case KindRaw:
		if v.codec == CodecJSON {
			return string(v.raw)
		}
		var x any
		if err := msgpack.Unmarshal(v.raw, &x); err != nil {
			return "<msgpack>"
		}
		return fmt.Sprintf("%v", x)
	default:
		return "<filter>"
	}
}
