package predicate

import (
	"errors"
	"fmt"

	"github.com/hugr-lab/entityfilter/filter"
)

var (
	// ErrUnsupportedOperation is returned when an expression type cannot be
	// applied to the member it targets, e.g. Any on a non-collection.
	ErrUnsupportedOperation = errors.New("unsupported filter operation")
	// ErrUnresolvablePath is returned when a property path names a member
	// that does not exist on the current type.
	ErrUnresolvablePath = errors.New("unresolvable property path")
	// ErrUnknownOperator is returned for expression types or logical
	// operators outside the supported set. It is the same sentinel the
	// filter parser uses.
	ErrUnknownOperator = filter.ErrUnknownOperator
	// ErrValueCoercion is returned when a value cannot be converted to the
	// type of the member it is compared with.
	ErrValueCoercion = errors.New("value coercion failed")
	// ErrMaxDepth is returned when Filter and Any nodes nest deeper than
	// Options.MaxDepth.
	ErrMaxDepth = errors.New("filter nesting too deep")
)

// CompileError describes why a filter could not be compiled.
// Use errors.Is with the sentinels above to classify it.
type CompileError struct {
	Err      error
	Property string
	Msg      string
}

func (e *CompileError) Error() string {
	switch {
	case e.Property != "" && e.Msg != "":
		return fmt.Sprintf("%v: %s: %s", e.Err, e.Property, e.Msg)
	case e.Property != "":
		return fmt.Sprintf("%v: %s", e.Err, e.Property)
	case e.Msg != "":
		return fmt.Sprintf("%v: %s", e.Err, e.Msg)
	}
	return e.Err.Error()
}

func (e *CompileError) Unwrap() error { return e.Err }

func compileErr(err error, property, format string, args ...any) error {
	return &CompileError{Err: err, Property: property, Msg: fmt.Sprintf(format, args...)}
}
