package schema

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/extensions"
)

// FromArrow derives a struct descriptor from an Arrow schema. Field.Ordinal
// is the column index in the schema. Columns whose Arrow type has no
// descriptor are left out.
func FromArrow(name string, s *arrow.Schema) (*Type, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil arrow schema", ErrUnsupportedType)
	}
	fields, err := arrowFields(s.Fields())
	if err != nil {
		return nil, err
	}
	t := &Type{Name: name, Kind: KindStruct, Fields: fields}
	t.seal()
	return t, nil
}

// FromArrowType describes a single Arrow data type.
func FromArrowType(dt arrow.DataType) (*Type, error) {
	return arrowType(dt, false)
}

func arrowFields(fields []arrow.Field) ([]*Field, error) {
	out := make([]*Field, 0, len(fields))
	for i, af := range fields {
		ft, err := arrowType(af.Type, af.Nullable)
		if err != nil {
			if errors.Is(err, ErrUnsupportedType) {
				continue
			}
			return nil, err
		}
		out = append(out, &Field{Name: af.Name, Column: af.Name, Type: ft, Ordinal: i})
	}
	return out, nil
}

func arrowType(dt arrow.DataType, nullable bool) (*Type, error) {
	scalar := func(kind Kind, goType reflect.Type) *Type {
		return &Type{Name: dt.String(), Kind: kind, GoType: goType, Nullable: nullable}
	}

	if _, ok := dt.(*extensions.UUIDType); ok {
		return scalar(KindUUID, uuidType), nil
	}

	switch dt.ID() {
	case arrow.BOOL:
		return scalar(KindBool, reflect.TypeOf(false)), nil
	case arrow.INT8:
		return scalar(KindInt, reflect.TypeOf(int8(0))), nil
	case arrow.INT16:
		return scalar(KindInt, reflect.TypeOf(int16(0))), nil
	case arrow.INT32:
		return scalar(KindInt, reflect.TypeOf(int32(0))), nil
	case arrow.INT64:
		return scalar(KindInt, reflect.TypeOf(int64(0))), nil
	case arrow.UINT8:
		return scalar(KindUint, reflect.TypeOf(uint8(0))), nil
	case arrow.UINT16:
		return scalar(KindUint, reflect.TypeOf(uint16(0))), nil
	case arrow.UINT32:
		return scalar(KindUint, reflect.TypeOf(uint32(0))), nil
	case arrow.UINT64:
		return scalar(KindUint, reflect.TypeOf(uint64(0))), nil
	case arrow.FLOAT32:
		return scalar(KindFloat, reflect.TypeOf(float32(0))), nil
	case arrow.FLOAT64:
		return scalar(KindFloat, reflect.TypeOf(float64(0))), nil
	case arrow.STRING, arrow.LARGE_STRING:
		return scalar(KindString, reflect.TypeOf("")), nil
	case arrow.TIMESTAMP, arrow.DATE32, arrow.DATE64:
		return scalar(KindTime, timeType), nil
	case arrow.STRUCT:
		st := dt.(*arrow.StructType)
		fields, err := arrowFields(st.Fields())
		if err != nil {
			return nil, err
		}
		t := &Type{Name: dt.String(), Kind: KindStruct, Nullable: nullable, Fields: fields}
		t.seal()
		return t, nil
	case arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST:
		lt := dt.(arrow.ListLikeType)
		elemField := lt.ElemField()
		elem, err := arrowType(elemField.Type, elemField.Nullable)
		if err != nil {
			return nil, err
		}
		return &Type{Name: dt.String(), Kind: KindList, Nullable: nullable, Elem: elem}, nil
	}
	return nil, fmt.Errorf("%w: arrow %s", ErrUnsupportedType, dt)
}
