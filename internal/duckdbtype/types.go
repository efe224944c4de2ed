// Package duckdbtype parses DuckDB type names as reported by
// information_schema and DESCRIBE, and maps them to Arrow types.
package duckdbtype

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/extensions"
)

// LogicalTypeID identifies DuckDB data types.
type LogicalTypeID string

const (
	TypeIDBoolean      LogicalTypeID = "BOOLEAN"
	TypeIDTinyInt      LogicalTypeID = "TINYINT"
	TypeIDSmallInt     LogicalTypeID = "SMALLINT"
	TypeIDInteger      LogicalTypeID = "INTEGER"
	TypeIDBigInt       LogicalTypeID = "BIGINT"
	TypeIDUTinyInt     LogicalTypeID = "UTINYINT"
	TypeIDUSmallInt    LogicalTypeID = "USMALLINT"
	TypeIDUInteger     LogicalTypeID = "UINTEGER"
	TypeIDUBigInt      LogicalTypeID = "UBIGINT"
	TypeIDHugeInt      LogicalTypeID = "HUGEINT"
	TypeIDUHugeInt     LogicalTypeID = "UHUGEINT"
	TypeIDFloat        LogicalTypeID = "FLOAT"
	TypeIDDouble       LogicalTypeID = "DOUBLE"
	TypeIDDecimal      LogicalTypeID = "DECIMAL"
	TypeIDVarchar      LogicalTypeID = "VARCHAR"
	TypeIDChar         LogicalTypeID = "CHAR"
	TypeIDBlob         LogicalTypeID = "BLOB"
	TypeIDDate         LogicalTypeID = "DATE"
	TypeIDTime         LogicalTypeID = "TIME"
	TypeIDTimestampSec LogicalTypeID = "TIMESTAMP_SEC"
	TypeIDTimestampMs  LogicalTypeID = "TIMESTAMP_MS"
	TypeIDTimestamp    LogicalTypeID = "TIMESTAMP"
	TypeIDTimestampNs  LogicalTypeID = "TIMESTAMP_NS"
	TypeIDTimestampTZ  LogicalTypeID = "TIMESTAMP_TZ"
	TypeIDInterval     LogicalTypeID = "INTERVAL"
	TypeIDUUID         LogicalTypeID = "UUID"
	TypeIDEnum         LogicalTypeID = "ENUM"
	TypeIDStruct       LogicalTypeID = "STRUCT"
	TypeIDList         LogicalTypeID = "LIST"
	TypeIDArray        LogicalTypeID = "ARRAY"
	TypeIDMap          LogicalTypeID = "MAP"
)

// typeIDMapping maps DuckDB aliases and full SQL names to normalized IDs.
var typeIDMapping = map[LogicalTypeID]LogicalTypeID{
	"TIMESTAMP WITH TIME ZONE":    TypeIDTimestampTZ,
	"TIMESTAMPTZ":                 TypeIDTimestampTZ,
	"TIMESTAMP_S":                 TypeIDTimestampSec,
	"TIMESTAMP WITHOUT TIME ZONE": TypeIDTimestamp,
	"DATETIME":                    TypeIDTimestamp,
	"INT":                         TypeIDInteger,
	"INT4":                        TypeIDInteger,
	"SIGNED":                      TypeIDInteger,
	"INT8":                        TypeIDBigInt,
	"LONG":                        TypeIDBigInt,
	"INT2":                        TypeIDSmallInt,
	"SHORT":                       TypeIDSmallInt,
	"INT1":                        TypeIDTinyInt,
	"UINT8":                       TypeIDUBigInt,
	"UINT4":                       TypeIDUInteger,
	"UINT2":                       TypeIDUSmallInt,
	"UINT1":                       TypeIDUTinyInt,
	"INT128":                      TypeIDHugeInt,
	"UINT128":                     TypeIDUHugeInt,
	"FLOAT4":                      TypeIDFloat,
	"REAL":                        TypeIDFloat,
	"FLOAT8":                      TypeIDDouble,
	"NUMERIC":                     TypeIDDecimal,
	"STRING":                      TypeIDVarchar,
	"TEXT":                        TypeIDVarchar,
	"BPCHAR":                      TypeIDVarchar,
	"BOOL":                        TypeIDBoolean,
	"LOGICAL":                     TypeIDBoolean,
	"BYTEA":                       TypeIDBlob,
	"BINARY":                      TypeIDBlob,
	"VARBINARY":                   TypeIDBlob,
}

// Normalize returns the canonical LogicalTypeID for the given type ID.
func (t LogicalTypeID) Normalize() LogicalTypeID {
	if mapped, ok := typeIDMapping[t]; ok {
		return mapped
	}
	return t
}

// LogicalType is a parsed DuckDB type.
type LogicalType struct {
	ID LogicalTypeID

	// Width and Scale are set for DECIMAL.
	Width int
	Scale int

	// Child is the element type of LIST and ARRAY.
	Child *LogicalType
	// Size is the length of a fixed-size ARRAY.
	Size int

	// Fields are the members of a STRUCT.
	Fields []StructField

	// Key and Value are the entry types of a MAP.
	Key   *LogicalType
	Value *LogicalType
}

// StructField is a member of a STRUCT type.
type StructField struct {
	Name string
	Type LogicalType
}

// Parse parses a DuckDB type name such as "INTEGER", "VARCHAR[]",
// "DECIMAL(18,3)" or "STRUCT(city VARCHAR, zip INTEGER)".
func Parse(s string) (LogicalType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return LogicalType{}, fmt.Errorf("duckdbtype: empty type name")
	}

	if strings.HasSuffix(s, "]") {
		open := strings.LastIndexByte(s, '[')
		if open <= 0 {
			return LogicalType{}, fmt.Errorf("duckdbtype: invalid type %q", s)
		}
		child, err := Parse(s[:open])
		if err != nil {
			return LogicalType{}, err
		}
		size := strings.TrimSpace(s[open+1 : len(s)-1])
		if size == "" {
			return LogicalType{ID: TypeIDList, Child: &child}, nil
		}
		n, err := strconv.Atoi(size)
		if err != nil {
			return LogicalType{}, fmt.Errorf("duckdbtype: invalid array size in %q", s)
		}
		return LogicalType{ID: TypeIDArray, Child: &child, Size: n}, nil
	}

	name, args := s, ""
	if open := strings.IndexByte(s, '('); open >= 0 {
		if !strings.HasSuffix(s, ")") {
			return LogicalType{}, fmt.Errorf("duckdbtype: unbalanced parentheses in %q", s)
		}
		name, args = strings.TrimSpace(s[:open]), s[open+1:len(s)-1]
	}

	id := LogicalTypeID(strings.ToUpper(name)).Normalize()
	switch id {
	case TypeIDDecimal:
		t := LogicalType{ID: id, Width: 18, Scale: 3}
		if args != "" {
			parts := splitTopLevel(args)
			w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
			if err != nil {
				return LogicalType{}, fmt.Errorf("duckdbtype: invalid decimal width in %q", s)
			}
			t.Width, t.Scale = w, 0
			if len(parts) > 1 {
				if t.Scale, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
					return LogicalType{}, fmt.Errorf("duckdbtype: invalid decimal scale in %q", s)
				}
			}
		}
		return t, nil
	case TypeIDStruct:
		t := LogicalType{ID: id}
		for _, part := range splitTopLevel(args) {
			fieldName, fieldType := splitFieldDef(strings.TrimSpace(part))
			ft, err := Parse(fieldType)
			if err != nil {
				return LogicalType{}, fmt.Errorf("duckdbtype: struct field %q: %w", fieldName, err)
			}
			t.Fields = append(t.Fields, StructField{Name: fieldName, Type: ft})
		}
		return t, nil
	case TypeIDMap:
		parts := splitTopLevel(args)
		if len(parts) != 2 {
			return LogicalType{}, fmt.Errorf("duckdbtype: invalid map type %q", s)
		}
		k, err := Parse(parts[0])
		if err != nil {
			return LogicalType{}, err
		}
		v, err := Parse(parts[1])
		if err != nil {
			return LogicalType{}, err
		}
		return LogicalType{ID: id, Key: &k, Value: &v}, nil
	case TypeIDList:
		child, err := Parse(args)
		if err != nil {
			return LogicalType{}, err
		}
		return LogicalType{ID: id, Child: &child}, nil
	}

	// VARCHAR(255), ENUM('a','b') and friends: the arguments do not change
	// the representation.
	return LogicalType{ID: id}, nil
}

// splitTopLevel splits s on commas that are not nested in parentheses or
// quotes.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// splitFieldDef splits `name TYPE` or `"quoted name" TYPE`.
func splitFieldDef(s string) (string, string) {
	if strings.HasPrefix(s, `"`) {
		for i := 1; i < len(s); i++ {
			if s[i] != '"' {
				continue
			}
			if i+1 < len(s) && s[i+1] == '"' {
				i++
				continue
			}
			name := strings.ReplaceAll(s[1:i], `""`, `"`)
			return name, strings.TrimSpace(s[i+1:])
		}
	}
	name, rest, _ := strings.Cut(s, " ")
	return name, strings.TrimSpace(rest)
}

// IsNumeric returns true if the type is a numeric type.
func (t LogicalTypeID) IsNumeric() bool {
	switch t {
	case TypeIDTinyInt, TypeIDSmallInt, TypeIDInteger, TypeIDBigInt,
		TypeIDUTinyInt, TypeIDUSmallInt, TypeIDUInteger, TypeIDUBigInt,
		TypeIDHugeInt, TypeIDUHugeInt, TypeIDFloat, TypeIDDouble, TypeIDDecimal:
		return true
	}
	return false
}

// IsTemporal returns true if the type is a date/time type.
func (t LogicalTypeID) IsTemporal() bool {
	switch t {
	case TypeIDDate, TypeIDTime, TypeIDTimestamp, TypeIDTimestampTZ,
		TypeIDTimestampMs, TypeIDTimestampNs, TypeIDTimestampSec, TypeIDInterval:
		return true
	}
	return false
}

// IsComplex returns true if the type is a nested type.
func (t LogicalTypeID) IsComplex() bool {
	switch t {
	case TypeIDList, TypeIDStruct, TypeIDMap, TypeIDArray:
		return true
	}
	return false
}

// ScanCast returns the SQL type a column of this type has to be cast to
// before it can be scanned into its Arrow representation, or "" when the
// driver value can be used directly.
func (t LogicalType) ScanCast() string {
	switch t.ID {
	case TypeIDDecimal, TypeIDHugeInt, TypeIDUHugeInt:
		return "DOUBLE"
	case TypeIDUUID, TypeIDEnum, TypeIDChar:
		return "VARCHAR"
	}
	return ""
}

// Arrow returns the Arrow type used to carry values of t.
func (t LogicalType) Arrow() (arrow.DataType, error) {
	switch t.ID {
	case TypeIDBoolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case TypeIDTinyInt:
		return arrow.PrimitiveTypes.Int8, nil
	case TypeIDSmallInt:
		return arrow.PrimitiveTypes.Int16, nil
	case TypeIDInteger:
		return arrow.PrimitiveTypes.Int32, nil
	case TypeIDBigInt:
		return arrow.PrimitiveTypes.Int64, nil
	case TypeIDUTinyInt:
		return arrow.PrimitiveTypes.Uint8, nil
	case TypeIDUSmallInt:
		return arrow.PrimitiveTypes.Uint16, nil
	case TypeIDUInteger:
		return arrow.PrimitiveTypes.Uint32, nil
	case TypeIDUBigInt:
		return arrow.PrimitiveTypes.Uint64, nil
	case TypeIDFloat:
		return arrow.PrimitiveTypes.Float32, nil
	case TypeIDDouble, TypeIDDecimal, TypeIDHugeInt, TypeIDUHugeInt:
		return arrow.PrimitiveTypes.Float64, nil
	case TypeIDVarchar, TypeIDChar, TypeIDEnum:
		return arrow.BinaryTypes.String, nil
	case TypeIDBlob:
		return arrow.BinaryTypes.Binary, nil
	case TypeIDDate:
		return arrow.FixedWidthTypes.Date32, nil
	case TypeIDTime:
		return arrow.FixedWidthTypes.Time64us, nil
	case TypeIDTimestamp:
		return &arrow.TimestampType{Unit: arrow.Microsecond}, nil
	case TypeIDTimestampSec:
		return &arrow.TimestampType{Unit: arrow.Second}, nil
	case TypeIDTimestampMs:
		return &arrow.TimestampType{Unit: arrow.Millisecond}, nil
	case TypeIDTimestampNs:
		return &arrow.TimestampType{Unit: arrow.Nanosecond}, nil
	case TypeIDTimestampTZ:
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}, nil
	case TypeIDUUID:
		return extensions.NewUUIDType(), nil
	case TypeIDList, TypeIDArray:
		if t.Child == nil {
			return nil, fmt.Errorf("duckdbtype: %s without element type", t.ID)
		}
		elem, err := t.Child.Arrow()
		if err != nil {
			return nil, err
		}
		return arrow.ListOf(elem), nil
	case TypeIDStruct:
		fields := make([]arrow.Field, 0, len(t.Fields))
		for _, f := range t.Fields {
			ft, err := f.Type.Arrow()
			if err != nil {
				return nil, fmt.Errorf("duckdbtype: struct field %q: %w", f.Name, err)
			}
			fields = append(fields, arrow.Field{Name: f.Name, Type: ft, Nullable: true})
		}
		return arrow.StructOf(fields...), nil
	}
	return nil, fmt.Errorf("duckdbtype: unsupported type %s", t.ID)
}

func (t LogicalType) String() string {
	switch t.ID {
	case TypeIDDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Width, t.Scale)
	case TypeIDList:
		if t.Child != nil {
			return t.Child.String() + "[]"
		}
	case TypeIDArray:
		if t.Child != nil {
			return fmt.Sprintf("%s[%d]", t.Child.String(), t.Size)
		}
	case TypeIDMap:
		if t.Key != nil && t.Value != nil {
			return "MAP(" + t.Key.String() + ", " + t.Value.String() + ")"
		}
	case TypeIDStruct:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = `"` + strings.ReplaceAll(f.Name, `"`, `""`) + `" ` + f.Type.String()
		}
		return "STRUCT(" + strings.Join(parts, ", ") + ")"
	}
	return string(t.ID)
}
