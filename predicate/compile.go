package predicate

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hugr-lab/entityfilter/filter"
	"github.com/hugr-lab/entityfilter/schema"
)

// DefaultMaxDepth bounds how deeply Filter and Any nodes may nest.
const DefaultMaxDepth = 64

// Options configures a Compiler.
type Options struct {
	// MaxDepth is the maximum nesting of Filter and Any nodes.
	// OPTIONAL: Defaults to DefaultMaxDepth.
	MaxDepth int

	// Logger receives debug records about skipped expressions.
	// OPTIONAL: Defaults to slog.Default().
	Logger *slog.Logger
}

// Compiler turns filter trees into predicates. It holds no mutable state
// and may be shared between goroutines.
type Compiler struct {
	maxDepth int
	logger   *slog.Logger
}

// NewCompiler creates a compiler. opts may be nil.
func NewCompiler(opts *Options) *Compiler {
	c := &Compiler{maxDepth: DefaultMaxDepth, logger: slog.Default()}
	if opts != nil {
		if opts.MaxDepth > 0 {
			c.maxDepth = opts.MaxDepth
		}
		if opts.Logger != nil {
			c.logger = opts.Logger
		}
	}
	return c
}

// Compile compiles f with a default Compiler.
func Compile(f *filter.Filter, t *schema.Type) (*Predicate, error) {
	return NewCompiler(nil).Compile(f, t)
}

// Compile builds a predicate over entities of type t.
//
// It returns (nil, nil) when f has no expressions, or when every expression
// was skipped. Errors wrap one of ErrUnsupportedOperation,
// ErrUnresolvablePath, ErrUnknownOperator, ErrValueCoercion or ErrMaxDepth.
func (c *Compiler) Compile(f *filter.Filter, t *schema.Type) (*Predicate, error) {
	if t == nil {
		return nil, errors.New("predicate: nil entity type")
	}
	if f.IsEmpty() {
		return nil, nil
	}

	b := &build{c: c}
	param := b.param(t)
	root, err := b.filter(param, f, 0)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, nil
	}
	return &Predicate{Root: root, Param: param, Type: t}, nil
}

// build carries the state of one Compile call.
type build struct {
	c      *Compiler
	params int
}

// param returns a fresh parameter. The root is "x", the elements of nested
// Any nodes are "x1", "x2", ...
func (b *build) param(t *schema.Type) *Param {
	name := "x"
	if b.params > 0 {
		name = fmt.Sprintf("x%d", b.params)
	}
	b.params++
	return &Param{Name: name, Type: t}
}

// filter folds the expressions of f left to right. The first expression
// is negated when the operator is Not; each later one is combined as
// acc OR e, acc AND e, or acc AND NOT e. Skipped expressions leave the
// accumulator unchanged.
func (b *build) filter(p *Param, f *filter.Filter, depth int) (Expr, error) {
	if depth > b.c.maxDepth {
		return nil, compileErr(ErrMaxDepth, "", "nesting exceeds %d levels", b.c.maxDepth)
	}
	if !f.LogicalOperator.Valid() {
		return nil, compileErr(ErrUnknownOperator, "", "logical operator %s", f.LogicalOperator)
	}

	var acc Expr
	for _, e := range f.Expressions {
		cur, err := b.expression(p, e, depth)
		if err != nil {
			return nil, err
		}
		if cur == nil {
			b.c.logger.Debug("filter expression skipped",
				"property", e.Property,
				"expression_type", e.ExpressionType.String(),
				"value", e.Value.String(),
			)
			continue
		}

		switch {
		case acc == nil && f.LogicalOperator == filter.OperatorNot:
			acc = &Not{X: cur}
		case acc == nil:
			acc = cur
		case f.LogicalOperator == filter.OperatorOr:
			acc = &Or{L: acc, R: cur}
		case f.LogicalOperator == filter.OperatorNot:
			acc = &And{L: acc, R: &Not{X: cur}}
		default:
			acc = &And{L: acc, R: cur}
		}
	}
	return acc, nil
}

// expression builds one node. A nil Expr with a nil error means the
// expression contributes nothing.
func (b *build) expression(p *Param, e filter.Expression, depth int) (Expr, error) {
	if !e.ExpressionType.Valid() {
		return nil, compileErr(ErrUnknownOperator, e.Property, "expression type %s", e.ExpressionType)
	}

	member, err := resolvePath(p, e.Property)
	if err != nil {
		return nil, err
	}

	switch e.ExpressionType {
	case filter.TypeFilter:
		sub, err := e.Value.AsFilter()
		if err != nil {
			return nil, compileErr(ErrValueCoercion, e.Property, "%v", err)
		}
		if sub.IsEmpty() {
			return nil, nil
		}
		return b.filter(p, sub, depth+1)

	case filter.TypeAny:
		return b.any(p, member, e, depth)
	}

	if member == nil {
		if member, err = leafOperand(p, e.Property); err != nil {
			return nil, err
		}
	}
	mt := member.Type()

	switch e.ExpressionType {
	case filter.TypeContains:
		if !mt.IsScalar() {
			return nil, unsupported(e, mt)
		}
		text, ok := coerceText(e.Value)
		if !ok {
			return nil, nil
		}
		return &And{
			L: &IsNotNull{X: member},
			R: &Contains{X: member, Substr: strings.ToLower(text)},
		}, nil

	case filter.TypeEqual, filter.TypeNotEqual:
		if !mt.IsScalar() {
			return nil, unsupported(e, mt)
		}
		c, err := coerceScalar(e.Value, mt)
		if err != nil {
			return nil, compileErr(ErrValueCoercion, e.Property, "%v", err)
		}
		op := OpEq
		if e.ExpressionType == filter.TypeNotEqual {
			op = OpNe
		}
		return &Compare{Op: op, Left: member, Right: c}, nil

	case filter.TypeMoreThan, filter.TypeLessThan, filter.TypeMoreThanOrEqual, filter.TypeLessThanOrEqual:
		if !mt.Kind.Ordered() {
			return nil, unsupported(e, mt)
		}
		c, err := coerceScalar(e.Value, mt)
		if err != nil {
			return nil, compileErr(ErrValueCoercion, e.Property, "%v", err)
		}
		return &Compare{Op: orderedOps[e.ExpressionType], Left: member, Right: c}, nil

	case filter.TypeIn:
		if !mt.IsScalar() {
			return nil, unsupported(e, mt)
		}
		values, err := coerceArray(e.Value, mt)
		if err != nil {
			return nil, compileErr(ErrValueCoercion, e.Property, "%v", err)
		}
		return &In{X: member, Values: values}, nil

	case filter.TypeEqualToDate:
		if mt.Kind != schema.KindTime {
			return nil, unsupported(e, mt)
		}
		if e.Value.IsNull() {
			return nil, compileErr(ErrValueCoercion, e.Property, "EqualToDate requires a date")
		}
		c, err := coerceScalar(e.Value, schema.Time)
		if err != nil {
			return nil, compileErr(ErrValueCoercion, e.Property, "%v", err)
		}
		c.Value = dateOf(c.Value.(time.Time))
		return &Compare{Op: OpEq, Left: &DateOf{X: member}, Right: c}, nil
	}

	return nil, compileErr(ErrUnknownOperator, e.Property, "expression type %s", e.ExpressionType)
}

// any builds the existential test over a collection member. The embedded
// filter, if any, is compiled against a fresh parameter of the element type.
func (b *build) any(p *Param, member *Member, e filter.Expression, depth int) (Expr, error) {
	if member == nil {
		if p.Type.Kind != schema.KindList {
			return nil, compileErr(ErrUnsupportedOperation, "", "Any requires a collection property")
		}
		member = &Member{Param: p}
	}
	mt := member.Type()
	if mt.Kind != schema.KindList || mt.Elem == nil {
		return nil, unsupported(e, mt)
	}

	exists := &Exists{Collection: member}
	sub, err := e.Value.AsFilter()
	if err != nil {
		return nil, compileErr(ErrValueCoercion, e.Property, "%v", err)
	}
	if depth+1 > b.c.maxDepth {
		return nil, compileErr(ErrMaxDepth, e.Property, "nesting exceeds %d levels", b.c.maxDepth)
	}
	exists.Elem = b.param(mt.Elem)
	if !sub.IsEmpty() {
		pred, err := b.filter(exists.Elem, sub, depth+1)
		if err != nil {
			return nil, err
		}
		exists.Pred = pred
	}

	return &And{L: &IsNotNull{X: member}, R: exists}, nil
}

var orderedOps = map[filter.ExpressionType]CompareOp{
	filter.TypeMoreThan:        OpGt,
	filter.TypeLessThan:        OpLt,
	filter.TypeMoreThanOrEqual: OpGe,
	filter.TypeLessThanOrEqual: OpLe,
}

func unsupported(e filter.Expression, t *schema.Type) error {
	return compileErr(ErrUnsupportedOperation, e.Property, "%s is not supported on %s", e.ExpressionType, t)
}
