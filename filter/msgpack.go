package filter

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

var (
	_ msgpack.CustomEncoder = Filter{}
	_ msgpack.CustomDecoder = (*Filter)(nil)
	_ msgpack.CustomEncoder = Expression{}
	_ msgpack.CustomDecoder = (*Expression)(nil)
	_ msgpack.CustomEncoder = Value{}
	_ msgpack.CustomDecoder = (*Value)(nil)
)

// ParseMsgpack decodes a MessagePack filter tree. Field names match the JSON
// form; operators may be integers or names.
func ParseMsgpack(data []byte) (*Filter, error) {
	if len(data) == 0 {
		return &Filter{}, nil
	}

	var f Filter
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("filter: invalid MessagePack: %w", err)
	}
	return &f, nil
}

// EncodeMsgpack encodes f as MessagePack. Operators are written as integers.
func EncodeMsgpack(f *Filter) ([]byte, error) {
	if f == nil {
		f = &Filter{}
	}
	data, err := msgpack.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("filter: encode MessagePack: %w", err)
	}
	return data, nil
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (f Filter) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(2); err != nil {
		return err
	}
	if err := enc.EncodeString("expressions"); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(len(f.Expressions)); err != nil {
		return err
	}
	for _, e := range f.Expressions {
		if err := e.EncodeMsgpack(enc); err != nil {
			return err
		}
	}
	if err := enc.EncodeString("logicalOperator"); err != nil {
		return err
	}
	return f.LogicalOperator.EncodeMsgpack(enc)
}

// maxPrealloc caps slice capacity taken from array headers.
const maxPrealloc = 64

// DecodeMsgpack implements msgpack.CustomDecoder.
func (f *Filter) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	if n == -1 {
		return nil
	}

	var out Filter
	for range n {
		key, err := dec.DecodeString()
		if err != nil {
			return err
		}
		switch key {
		case "expressions":
			size, err := dec.DecodeArrayLen()
			if err != nil {
				return err
			}
			if size <= 0 {
				continue
			}
			// size is client input; grow as elements actually decode.
			out.Expressions = make([]Expression, 0, min(size, maxPrealloc))
			for i := range size {
				var e Expression
				if err := e.DecodeMsgpack(dec); err != nil {
					return fmt.Errorf("expression %d: %w", i, err)
				}
				out.Expressions = append(out.Expressions, e)
			}
		case "logicalOperator":
			if err := out.LogicalOperator.DecodeMsgpack(dec); err != nil {
				return err
			}
		default:
			if err := dec.Skip(); err != nil {
				return err
			}
		}
	}

	*f = out
	return nil
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (e Expression) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(3); err != nil {
		return err
	}
	if err := enc.EncodeString("property"); err != nil {
		return err
	}
	if e.Property == "" {
		if err := enc.EncodeNil(); err != nil {
			return err
		}
	} else if err := enc.EncodeString(e.Property); err != nil {
		return err
	}
	if err := enc.EncodeString("expressionType"); err != nil {
		return err
	}
	if err := e.ExpressionType.EncodeMsgpack(enc); err != nil {
		return err
	}
	if err := enc.EncodeString("value"); err != nil {
		return err
	}
	return e.Value.EncodeMsgpack(enc)
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (e *Expression) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	if n == -1 {
		return nil
	}

	var out Expression
	for range n {
		key, err := dec.DecodeString()
		if err != nil {
			return err
		}
		switch key {
		case "property":
			v, err := dec.DecodeInterfaceLoose()
			if err != nil {
				return err
			}
			if s, ok := v.(string); ok {
				out.Property = s
			}
		case "expressionType":
			if err := out.ExpressionType.DecodeMsgpack(dec); err != nil {
				return err
			}
		case "value":
			if err := out.Value.DecodeMsgpack(dec); err != nil {
				return err
			}
		default:
			if err := dec.Skip(); err != nil {
				return err
			}
		}
	}

	*e = out
	return nil
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	switch v.kind {
	case KindNull:
		return enc.EncodeNil()
	case KindFilter:
		return v.filter.EncodeMsgpack(enc)
	case KindRaw:
		if v.codec == CodecMsgpack {
			return enc.Encode(msgpack.RawMessage(v.raw))
		}
		dec := json.NewDecoder(bytes.NewReader(v.raw))
		dec.UseNumber()
		var x any
		if err := dec.Decode(&x); err != nil {
			return fmt.Errorf("filter: invalid JSON value: %w", err)
		}
		return enc.Encode(normalizeJSON(x))
	default:
		switch x := v.scalar.(type) {
		case json.Number:
			return enc.Encode(numberValue(x))
		case uuid.UUID:
			return enc.EncodeString(x.String())
		default:
			return enc.Encode(x)
		}
	}
}

// DecodeMsgpack implements msgpack.CustomDecoder. Arrays and maps stay raw
// until the target type is known.
func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	raw, err := dec.DecodeRaw()
	if err != nil {
		return err
	}
	val, err := valueFromMsgpack(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (t ExpressionType) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeUint8(uint8(t))
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (t *ExpressionType) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := decodeMsgpackEnum(dec, ParseExpressionType, ExpressionTypeFromInt)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (op LogicalOperator) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeUint8(uint8(op))
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (op *LogicalOperator) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := decodeMsgpackEnum(dec, ParseLogicalOperator, LogicalOperatorFromInt)
	if err != nil {
		return err
	}
	*op = v
	return nil
}

func decodeMsgpackEnum[T ~uint8](dec *msgpack.Decoder, byName func(string) (T, error), byInt func(int64) (T, error)) (T, error) {
	v, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case nil:
		return 0, nil
	case string:
		return byName(x)
	case int64:
		return byInt(x)
	case uint64:
		if x > 1<<32 {
			return 0, unknownOperator("operator", fmt.Sprint(x))
		}
		return byInt(int64(x))
	default:
		return 0, unknownOperator("operator", fmt.Sprint(x))
	}
}

// valueFromMsgpack classifies an encoded MessagePack value: nil → Null,
// arrays and maps → Raw, everything else → Scalar.
func valueFromMsgpack(raw msgpack.RawMessage) (Value, error) {
	if len(raw) == 0 {
		return Null(), nil
	}

	c := raw[0]
	switch {
	case c == msgpcode.Nil:
		return Null(), nil
	case msgpcode.IsFixedArray(c), msgpcode.IsFixedMap(c),
		c == msgpcode.Array16, c == msgpcode.Array32,
		c == msgpcode.Map16, c == msgpcode.Map32:
		return RawMsgpack(append([]byte(nil), raw...)), nil
	}

	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	x, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return Value{}, fmt.Errorf("filter: invalid MessagePack value: %w", err)
	}
	return Scalar(x), nil
}
