package filter

import (
	"errors"
	"strconv"
	"strings"
)

// ErrUnknownOperator is returned when a wire value names an expression type or
// logical operator outside the supported set.
var ErrUnknownOperator = errors.New("filter: unknown operator")

// ExpressionType identifies the operation a filter expression performs.
// The numeric values are the wire encoding used by integer-enum clients.
type ExpressionType uint8

const (
	TypeContains ExpressionType = iota
	TypeEqual
	TypeNotEqual
	TypeMoreThan
	TypeLessThan
	TypeMoreThanOrEqual
	TypeLessThanOrEqual
	TypeIn
	TypeEqualToDate
	TypeAny
	TypeFilter

	numExpressionTypes
)

var expressionTypeNames = [numExpressionTypes]string{
	TypeContains:        "Contains",
	TypeEqual:           "Equal",
	TypeNotEqual:        "NotEqual",
	TypeMoreThan:        "MoreThan",
	TypeLessThan:        "LessThan",
	TypeMoreThanOrEqual: "MoreThanOrEqual",
	TypeLessThanOrEqual: "LessThanOrEqual",
	TypeIn:              "In",
	TypeEqualToDate:     "EqualToDate",
	TypeAny:             "Any",
	TypeFilter:          "Filter",
}

// Valid reports whether t is one of the supported expression types.
func (t ExpressionType) Valid() bool { return t < numExpressionTypes }

func (t ExpressionType) String() string {
	if !t.Valid() {
		return "ExpressionType(" + strconv.Itoa(int(t)) + ")"
	}
	return expressionTypeNames[t]
}

// MarshalText encodes the expression type by name.
func (t ExpressionType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, unknownOperator("expression type", strconv.Itoa(int(t)))
	}
	return []byte(expressionTypeNames[t]), nil
}

// UnmarshalText accepts a case-insensitive name or a decimal wire number.
func (t *ExpressionType) UnmarshalText(text []byte) error {
	v, err := ParseExpressionType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseExpressionType resolves an expression type from its name
// (case-insensitive) or its decimal wire number.
func ParseExpressionType(s string) (ExpressionType, error) {
	for i, name := range expressionTypeNames {
		if strings.EqualFold(name, s) {
			return ExpressionType(i), nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ExpressionTypeFromInt(n)
	}
	return 0, unknownOperator("expression type", s)
}

// ExpressionTypeFromInt converts a wire integer into an ExpressionType.
func ExpressionTypeFromInt(n int64) (ExpressionType, error) {
	if n < 0 || n >= int64(numExpressionTypes) {
		return 0, unknownOperator("expression type", strconv.FormatInt(n, 10))
	}
	return ExpressionType(n), nil
}

// LogicalOperator controls how the expressions of one Filter are folded.
// The zero value is OperatorAnd.
type LogicalOperator uint8

const (
	OperatorAnd LogicalOperator = iota
	OperatorOr
	OperatorNot

	numLogicalOperators
)

var logicalOperatorNames = [numLogicalOperators]string{
	OperatorAnd: "And",
	OperatorOr:  "Or",
	OperatorNot: "Not",
}

// Valid reports whether op is one of the supported operators.
func (op LogicalOperator) Valid() bool { return op < numLogicalOperators }

func (op LogicalOperator) String() string {
	if !op.Valid() {
		return "LogicalOperator(" + strconv.Itoa(int(op)) + ")"
	}
	return logicalOperatorNames[op]
}

// MarshalText encodes the operator by name.
func (op LogicalOperator) MarshalText() ([]byte, error) {
	if !op.Valid() {
		return nil, unknownOperator("logical operator", strconv.Itoa(int(op)))
	}
	return []byte(logicalOperatorNames[op]), nil
}

// UnmarshalText accepts a case-insensitive name or a decimal wire number.
func (op *LogicalOperator) UnmarshalText(text []byte) error {
	v, err := ParseLogicalOperator(string(text))
	if err != nil {
		return err
	}
	*op = v
	return nil
}

// ParseLogicalOperator resolves an operator from its name (case-insensitive)
// or its decimal wire number.
func ParseLogicalOperator(s string) (LogicalOperator, error) {
	for i, name := range logicalOperatorNames {
		if strings.EqualFold(name, s) {
			return LogicalOperator(i), nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return LogicalOperatorFromInt(n)
	}
	return 0, unknownOperator("logical operator", s)
}

// LogicalOperatorFromInt converts a wire integer into a LogicalOperator.
func LogicalOperatorFromInt(n int64) (LogicalOperator, error) {
	if n < 0 || n >= int64(numLogicalOperators) {
		return 0, unknownOperator("logical operator", strconv.FormatInt(n, 10))
	}
	return LogicalOperator(n), nil
}

func unknownOperator(what, value string) error {
	return &OperatorError{What: what, Value: value}
}

// OperatorError describes a rejected enum value. It matches ErrUnknownOperator
// with errors.Is.
type OperatorError struct {
	What  string
	Value string
}

func (e *OperatorError) Error() string {
	return "filter: unknown " + e.What + " " + strconv.Quote(e.Value)
}

func (e *OperatorError) Is(target error) bool { return target == ErrUnknownOperator }

// Filter is one node of a filter tree: an ordered list of expressions folded
// together with LogicalOperator.
type Filter struct {
	Expressions     []Expression
	LogicalOperator LogicalOperator
}

// IsEmpty reports whether the filter has no expressions. Empty filters compile
// to no predicate at all.
func (f *Filter) IsEmpty() bool {
	return f == nil || len(f.Expressions) == 0
}

// Expression is a leaf or nested node of a filter tree.
type Expression struct {
	// Property is a dot-separated member path, e.g. "Address.City".
	// Empty means absent.
	Property string

	ExpressionType ExpressionType

	// Value is the operand. Its shape depends on ExpressionType: a scalar for
	// comparisons, an array for In, an embedded Filter for Filter and for Any
	// with a per-element predicate.
	Value Value
}

// And builds a filter whose expressions are combined with AND.
func And(exprs ...Expression) *Filter {
	return &Filter{Expressions: exprs, LogicalOperator: OperatorAnd}
}

// Or builds a filter whose expressions are combined with OR.
func Or(exprs ...Expression) *Filter {
	return &Filter{Expressions: exprs, LogicalOperator: OperatorOr}
}

// Not builds a filter with the Not operator. Note that Not negates every
// expression individually and ANDs the negations together.
func Not(exprs ...Expression) *Filter {
	return &Filter{Expressions: exprs, LogicalOperator: OperatorNot}
}

// Expr builds an expression on property. value may be a native scalar, a
// slice (for In), a *Filter, or a Value.
func Expr(property string, t ExpressionType, value any) Expression {
	return Expression{Property: property, ExpressionType: t, Value: ValueOf(value)}
}

// Group embeds f as a Filter expression evaluated on the same entity.
func Group(f *Filter) Expression {
	return Expression{ExpressionType: TypeFilter, Value: Nested(f)}
}

// Any builds an existential test over the collection property. A nil f only
// checks that the collection is not empty.
func Any(property string, f *Filter) Expression {
	e := Expression{Property: property, ExpressionType: TypeAny}
	if f != nil {
		e.Value = Nested(f)
	}
	return e
}
