// Package predicate compiles filter trees into typed boolean predicates.
//
// A Compiler resolves every property path of a filter.Filter against a
// schema.Type, coerces the loosely typed wire values into the exact Go type
// of the member they are compared with, and folds the result into an
// expression tree:
//
//	t, err := schema.Of[Order]()
//	p, err := predicate.Compile(f, t)
//	if err != nil {
//		// errors.Is(err, predicate.ErrUnresolvablePath) ...
//	}
//	if p == nil {
//		// the filter selects everything
//	}
//
// Compilation does no I/O and does not know how the predicate will run.
// Three executors consume the tree:
//
//   - Predicate.Match and Where evaluate it against Go values.
//   - Predicate.MatchRow and FilterRecord evaluate it against Arrow records.
//   - DuckDBEncoder translates it into a DuckDB WHERE condition.
//
// All of them use the same null semantics. A null member equals only a null
// constant, and ordered comparisons, In and date tests on a null member are
// false. No test yields an unknown result, so Not always negates.
//
// # Logical fold
//
// The expressions of a filter are folded left to right. For Not, the first
// expression is negated and every later one is combined as "acc AND NOT e",
// so Not(a, b) means "!a && !b". An expression that contributes nothing
// (a Contains without text, an empty embedded filter) is skipped.
package predicate
