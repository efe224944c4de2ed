package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Parse parses a JSON filter tree.
// Empty input yields an empty filter, which compiles to no predicate.
//
// Error conditions:
//   - Invalid JSON syntax
//   - Unknown expression type or logical operator (wraps ErrUnknownOperator)
func Parse(data []byte) (*Filter, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &Filter{}, nil
	}

	var f Filter
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("filter: invalid JSON: %w", err)
	}
	return &f, nil
}

// rawFilter is the intermediate structure for JSON parsing.
type rawFilter struct {
	Expressions     []json.RawMessage `json:"expressions"`
	LogicalOperator json.RawMessage   `json:"logicalOperator"`
}

// rawExpression keeps the value undecoded until its shape is inspected.
type rawExpression struct {
	Property       *string         `json:"property"`
	ExpressionType json.RawMessage `json:"expressionType"`
	Value          json.RawMessage `json:"value"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Filter) UnmarshalJSON(data []byte) error {
	if isJSONNull(data) {
		return nil
	}

	var raw rawFilter
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	op, err := parseJSONEnum(raw.LogicalOperator, ParseLogicalOperator, LogicalOperatorFromInt)
	if err != nil {
		return err
	}

	exprs := make([]Expression, 0, len(raw.Expressions))
	for i, data := range raw.Expressions {
		var e Expression
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("expression %d: %w", i, err)
		}
		exprs = append(exprs, e)
	}

	f.Expressions = exprs
	f.LogicalOperator = op
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Expression) UnmarshalJSON(data []byte) error {
	if isJSONNull(data) {
		return nil
	}

	var raw rawExpression
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t, err := parseJSONEnum(raw.ExpressionType, ParseExpressionType, ExpressionTypeFromInt)
	if err != nil {
		return err
	}

	e.Property = ""
	if raw.Property != nil {
		e.Property = *raw.Property
	}
	e.ExpressionType = t
	e.Value = parseJSONValue(raw.Value)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	*v = parseJSONValue(data)
	return nil
}

// parseJSONEnum decodes an enum given either as a JSON string or a number.
// A missing value yields the zero value.
func parseJSONEnum[T ~uint8](data json.RawMessage, byName func(string) (T, error), byInt func(int64) (T, error)) (T, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || isJSONNull(data) {
		return 0, nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, err
		}
		return byName(s)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid enum value %s: %w", data, ErrUnknownOperator)
	}
	return byInt(n)
}

// parseJSONValue classifies a JSON value: null → Null, string/bool/number →
// Scalar (numbers as json.Number), arrays and objects → Raw.
func parseJSONValue(data []byte) Value {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || isJSONNull(data) {
		return Null()
	}

	switch data[0] {
	case '{', '[':
		return RawJSON(append([]byte(nil), data...))
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return RawJSON(append([]byte(nil), data...))
		}
		return Scalar(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return RawJSON(append([]byte(nil), data...))
		}
		return Scalar(b)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return RawJSON(append([]byte(nil), data...))
		}
		return Scalar(n)
	}
}

func isJSONNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
