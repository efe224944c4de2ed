package predicate

import (
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hugr-lab/entityfilter/filter"
	"github.com/hugr-lab/entityfilter/schema"
)

// timeLayouts are tried in order when a string is coerced to a time.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// coerceScalar converts v into a constant of exactly t's Go type. Null is
// accepted for every type and yields a null constant.
func coerceScalar(v filter.Value, t *schema.Type) (*Const, error) {
	switch v.Kind() {
	case filter.KindNull:
		return &Const{T: t}, nil
	case filter.KindFilter:
		return nil, fmt.Errorf("cannot use a filter as %s value", t)
	case filter.KindRaw:
		if t.GoType == nil {
			return nil, fmt.Errorf("cannot decode value into %s", t)
		}
		ptr := reflect.New(t.GoType)
		if err := v.Decode(ptr.Interface()); err != nil {
			return nil, fmt.Errorf("cannot decode %s into %s: %w", v, t, err)
		}
		return &Const{Value: ptr.Elem().Interface(), T: t}, nil
	}

	x := v.Interface()
	rv := reflect.ValueOf(x)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return &Const{T: t}, nil
		}
		rv = rv.Elem()
	}

	out, err := convert(rv, t)
	if err != nil {
		return nil, err
	}
	return &Const{Value: out, T: t}, nil
}

// coerceArray converts an array-like value into constants of t.
func coerceArray(v filter.Value, t *schema.Type) ([]*Const, error) {
	elems, err := v.Elements()
	if err != nil {
		return nil, err
	}
	out := make([]*Const, len(elems))
	for i, e := range elems {
		c, err := coerceScalar(e, t)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}

// coerceText extracts the search text of a Contains value. Numbers are
// searched in their decimal form whichever codec carried them. Values that
// have no text form report false and the expression is skipped.
func coerceText(v filter.Value) (string, bool) {
	if v.Kind() != filter.KindScalar {
		return "", false
	}
	switch x := v.Interface().(type) {
	case json.Number:
		return x.String(), true
	case string:
		return x, true
	}
	rv := reflect.ValueOf(v.Interface())
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
	}
	return "", false
}

// convert turns rv into a value of t.GoType.
func convert(rv reflect.Value, t *schema.Type) (any, error) {
	if t.GoType == nil || !t.IsScalar() {
		return nil, fmt.Errorf("%s is not a scalar type", t)
	}
	if rv.Type() == t.GoType {
		return rv.Interface(), nil
	}

	switch t.Kind {
	case schema.KindString:
		s, ok := toText(rv)
		if !ok {
			return nil, mismatch(rv, t)
		}
		return reflect.ValueOf(s).Convert(t.GoType).Interface(), nil

	case schema.KindBool:
		var b bool
		switch {
		case rv.Kind() == reflect.Bool:
			b = rv.Bool()
		case rv.Kind() == reflect.String:
			var err error
			if b, err = strconv.ParseBool(strings.TrimSpace(rv.String())); err != nil {
				return nil, mismatch(rv, t)
			}
		default:
			return nil, mismatch(rv, t)
		}
		return reflect.ValueOf(b).Convert(t.GoType).Interface(), nil

	case schema.KindInt:
		n, err := toInt(rv)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", mismatch(rv, t), err)
		}
		out := reflect.New(t.GoType).Elem()
		if out.OverflowInt(n) {
			return nil, fmt.Errorf("%d overflows %s", n, t)
		}
		out.SetInt(n)
		return out.Interface(), nil

	case schema.KindUint:
		n, err := toUint(rv)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", mismatch(rv, t), err)
		}
		out := reflect.New(t.GoType).Elem()
		if out.OverflowUint(n) {
			return nil, fmt.Errorf("%d overflows %s", n, t)
		}
		out.SetUint(n)
		return out.Interface(), nil

	case schema.KindFloat:
		f, err := toFloat(rv)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", mismatch(rv, t), err)
		}
		out := reflect.New(t.GoType).Elem()
		if out.OverflowFloat(f) {
			return nil, fmt.Errorf("%g overflows %s", f, t)
		}
		out.SetFloat(f)
		return out.Interface(), nil

	case schema.KindTime:
		tm, err := toTime(rv)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(tm).Convert(t.GoType).Interface(), nil

	case schema.KindUUID:
		id, err := toUUID(rv)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(id).Convert(t.GoType).Interface(), nil

	case schema.KindEnum:
		return toEnum(rv, t)
	}
	return nil, mismatch(rv, t)
}

func mismatch(rv reflect.Value, t *schema.Type) error {
	return fmt.Errorf("cannot convert %v (%s) to %s", rv.Interface(), rv.Type(), t)
}

func isNumber(rv reflect.Value) bool {
	return rv.Type() == reflect.TypeOf(json.Number(""))
}

func toText(rv reflect.Value) (string, bool) {
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, rv.Type().Bits()), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	}
	if s, ok := rv.Interface().(fmt.Stringer); ok {
		return s.String(), true
	}
	return "", false
}

func toInt(rv reflect.Value) (int64, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return floatToInt(rv.Float())
	case reflect.String:
		s := strings.TrimSpace(rv.String())
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", s)
		}
		return floatToInt(f)
	}
	return 0, fmt.Errorf("%s is not numeric", rv.Type())
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%g is not an integer", f)
	}
	return int64(f), nil
}

func toUint(rv reflect.Value) (uint64, error) {
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), nil
	case reflect.String:
		s := strings.TrimSpace(rv.String())
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n, nil
		}
	}
	n, err := toInt(rv)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%d is negative", n)
	}
	return uint64(n), nil
}

func toFloat(rv reflect.Value) (float64, error) {
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(rv.String()), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", rv.String())
		}
		return f, nil
	}
	return 0, fmt.Errorf("%s is not numeric", rv.Type())
}

func toTime(rv reflect.Value) (time.Time, error) {
	if tm, ok := rv.Interface().(time.Time); ok {
		return tm, nil
	}
	if rv.Kind() == reflect.String && !isNumber(rv) {
		return parseTime(rv.String())
	}
	return time.Time{}, fmt.Errorf("cannot convert %v (%s) to time", rv.Interface(), rv.Type())
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if tm, err := time.Parse(layout, s); err == nil {
			return tm, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as time", s)
}

func toUUID(rv reflect.Value) (uuid.UUID, error) {
	switch x := rv.Interface().(type) {
	case uuid.UUID:
		return x, nil
	case [16]byte:
		return uuid.UUID(x), nil
	case []byte:
		if len(x) == 16 {
			return uuid.FromBytes(x)
		}
		return uuid.ParseBytes(x)
	}
	if rv.Kind() == reflect.String {
		id, err := uuid.Parse(strings.TrimSpace(rv.String()))
		if err != nil {
			return uuid.UUID{}, fmt.Errorf("cannot parse %q as uuid: %w", rv.String(), err)
		}
		return id, nil
	}
	return uuid.UUID{}, fmt.Errorf("cannot convert %v (%s) to uuid", rv.Interface(), rv.Type())
}

// toEnum accepts the enum's text form or its numeric value.
func toEnum(rv reflect.Value, t *schema.Type) (any, error) {
	out := reflect.New(t.GoType)
	if rv.Kind() == reflect.String && !isNumber(rv) {
		if u, ok := out.Interface().(encoding.TextUnmarshaler); ok {
			if err := u.UnmarshalText([]byte(rv.String())); err == nil {
				return out.Elem().Interface(), nil
			}
		}
	}

	elem := out.Elem()
	switch elem.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toUint(rv)
		if err != nil || elem.OverflowUint(n) {
			return nil, mismatch(rv, t)
		}
		elem.SetUint(n)
	default:
		n, err := toInt(rv)
		if err != nil || elem.OverflowInt(n) {
			return nil, mismatch(rv, t)
		}
		elem.SetInt(n)
	}
	return elem.Interface(), nil
}

// dateOf truncates tm to midnight of its calendar date, expressed in UTC so
// dates from different locations compare equal.
func dateOf(tm time.Time) time.Time {
	y, m, d := tm.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
