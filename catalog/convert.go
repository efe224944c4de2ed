package catalog

import (
	"fmt"
	"math/big"
	"reflect"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/extensions"
	"github.com/google/uuid"
)

// appendValue appends a value scanned from the database driver to b.
// Nested values arrive as []any (lists) and map[string]any (structs).
func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	switch b := b.(type) {
	case *array.BooleanBuilder:
		x, ok := v.(bool)
		if !ok {
			return mismatch(v, b.Type())
		}
		b.Append(x)
	case *array.Int8Builder:
		x, err := toInt64(v)
		if err != nil {
			return err
		}
		b.Append(int8(x))
	case *array.Int16Builder:
		x, err := toInt64(v)
		if err != nil {
			return err
		}
		b.Append(int16(x))
	case *array.Int32Builder:
		x, err := toInt64(v)
		if err != nil {
			return err
		}
		b.Append(int32(x))
	case *array.Int64Builder:
		x, err := toInt64(v)
		if err != nil {
			return err
		}
		b.Append(x)
	case *array.Uint8Builder:
		x, err := toUint64(v)
		if err != nil {
			return err
		}
		b.Append(uint8(x))
	case *array.Uint16Builder:
		x, err := toUint64(v)
		if err != nil {
			return err
		}
		b.Append(uint16(x))
	case *array.Uint32Builder:
		x, err := toUint64(v)
		if err != nil {
			return err
		}
		b.Append(uint32(x))
	case *array.Uint64Builder:
		x, err := toUint64(v)
		if err != nil {
			return err
		}
		b.Append(x)
	case *array.Float32Builder:
		x, err := toFloat64(v)
		if err != nil {
			return err
		}
		b.Append(float32(x))
	case *array.Float64Builder:
		x, err := toFloat64(v)
		if err != nil {
			return err
		}
		b.Append(x)
	case *array.StringBuilder:
		switch x := v.(type) {
		case string:
			b.Append(x)
		case []byte:
			b.Append(string(x))
		case fmt.Stringer:
			b.Append(x.String())
		default:
			return mismatch(v, b.Type())
		}
	case *array.BinaryBuilder:
		switch x := v.(type) {
		case []byte:
			b.Append(x)
		case string:
			b.AppendString(x)
		default:
			return mismatch(v, b.Type())
		}
	case *array.Date32Builder:
		t, ok := v.(time.Time)
		if !ok {
			return mismatch(v, b.Type())
		}
		b.Append(arrow.Date32FromTime(t))
	case *array.Time64Builder:
		t, ok := v.(time.Time)
		if !ok {
			return mismatch(v, b.Type())
		}
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		b.Append(arrow.Time64(t.Sub(midnight) / time.Microsecond))
	case *array.TimestampBuilder:
		t, ok := v.(time.Time)
		if !ok {
			return mismatch(v, b.Type())
		}
		ts, err := arrow.TimestampFromTime(t, b.Type().(*arrow.TimestampType).Unit)
		if err != nil {
			return err
		}
		b.Append(ts)
	case *extensions.UUIDBuilder:
		u, err := toUUID(v)
		if err != nil {
			return err
		}
		b.Append(u)
	case *array.ListBuilder:
		items, ok := v.([]any)
		if !ok {
			return mismatch(v, b.Type())
		}
		b.Append(true)
		for _, item := range items {
			if err := appendValue(b.ValueBuilder(), item); err != nil {
				return err
			}
		}
	case *array.StructBuilder:
		fields, ok := v.(map[string]any)
		if !ok {
			return mismatch(v, b.Type())
		}
		b.Append(true)
		for i, f := range b.Type().(*arrow.StructType).Fields() {
			if err := appendValue(b.FieldBuilder(i), fields[f.Name]); err != nil {
				return fmt.Errorf("field %s: %w", f.Name, err)
			}
		}
	default:
		return fmt.Errorf("unsupported arrow type %s", b.Type())
	}
	return nil
}

func mismatch(v any, dt arrow.DataType) error {
	return fmt.Errorf("cannot store %T in %s", v, dt)
}

func toInt64(v any) (int64, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), nil
	}
	return 0, fmt.Errorf("cannot convert %T to an integer", v)
}

func toUint64(v any) (uint64, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return uint64(rv.Int()), nil
	}
	return 0, fmt.Errorf("cannot convert %T to an unsigned integer", v)
}

// toFloat64 also accepts nested decimals and huge integers, which the
// driver returns as its own types.
func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case *big.Int:
		f, _ := new(big.Float).SetInt(x).Float64()
		return f, nil
	case interface{ Float64() float64 }:
		return x.Float64(), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	}
	return 0, fmt.Errorf("cannot convert %T to a float", v)
}

func toUUID(v any) (uuid.UUID, error) {
	switch x := v.(type) {
	case uuid.UUID:
		return x, nil
	case string:
		return uuid.Parse(x)
	case []byte:
		if len(x) == 16 {
			return uuid.FromBytes(x)
		}
		return uuid.ParseBytes(x)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Array && rv.Len() == 16 && rv.Type().Elem().Kind() == reflect.Uint8 {
		var u uuid.UUID
		reflect.Copy(reflect.ValueOf(u[:]), rv)
		return u, nil
	}
	return uuid.Nil, fmt.Errorf("cannot convert %T to a uuid", v)
}
