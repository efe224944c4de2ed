package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

type jsonFilter struct {
	Expressions     []Expression    `json:"expressions"`
	LogicalOperator LogicalOperator `json:"logicalOperator"`
}

type jsonExpression struct {
	Property       string         `json:"property,omitempty"`
	ExpressionType ExpressionType `json:"expressionType"`
	Value          Value          `json:"value"`
}

// MarshalJSON implements json.Marshaler. Operators are written by name.
func (f Filter) MarshalJSON() ([]byte, error) {
	exprs := f.Expressions
	if exprs == nil {
		exprs = []Expression{}
	}
	return json.Marshal(jsonFilter{Expressions: exprs, LogicalOperator: f.LogicalOperator})
}

// MarshalJSON implements json.Marshaler.
func (e Expression) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonExpression(e))
}

// MarshalJSON implements json.Marshaler. Raw MessagePack values are decoded
// and re-encoded as JSON.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindFilter:
		return json.Marshal(v.filter)
	case KindRaw:
		if v.codec == CodecJSON {
			return v.raw, nil
		}
		x, err := decodeMsgpackAny(v.raw)
		if err != nil {
			return nil, err
		}
		return json.Marshal(x)
	default:
		return json.Marshal(jsonScalar(v.scalar))
	}
}

// jsonScalar maps scalars without a natural JSON form.
func jsonScalar(v any) any {
	switch x := v.(type) {
	case uuid.UUID:
		return x.String()
	case []byte:
		return string(x)
	default:
		return v
	}
}

func decodeMsgpackAny(raw []byte) (any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	x, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return nil, fmt.Errorf("filter: invalid MessagePack value: %w", err)
	}
	return normalizeMsgpack(x), nil
}

// normalizeMsgpack converts decoded maps to string-keyed maps so they can be
// re-encoded as JSON.
func normalizeMsgpack(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, item := range x {
			x[k] = normalizeMsgpack(item)
		}
		return x
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[fmt.Sprint(k)] = normalizeMsgpack(item)
		}
		return out
	case []any:
		for i, item := range x {
			x[i] = normalizeMsgpack(item)
		}
		return x
	default:
		return v
	}
}

// normalizeJSON converts json.Number leaves into int64 or float64.
func normalizeJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		return numberValue(x)
	case map[string]any:
		for k, item := range x {
			x[k] = normalizeJSON(item)
		}
		return x
	case []any:
		for i, item := range x {
			x[i] = normalizeJSON(item)
		}
		return x
	default:
		return v
	}
}

func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if u, err := strconv.ParseUint(string(n), 10, 64); err == nil {
		return u
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return string(n)
}
