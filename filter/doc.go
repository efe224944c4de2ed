// Package filter defines the serializable filter tree that remote clients send
// to describe which entities of a collection they want.
//
// A filter is a list of expressions folded together by one logical operator.
// Each expression names a member path on the entity (for example
// "Address.City"), an expression type and an operand value:
//
//	{
//	  "logicalOperator": "And",
//	  "expressions": [
//	    {"property": "Name", "expressionType": "Contains", "value": "ann"},
//	    {"property": "Age", "expressionType": "MoreThanOrEqual", "value": 18},
//	    {"property": "Orders", "expressionType": "Any", "value": {
//	      "expressions": [{"property": "Total", "expressionType": "MoreThan", "value": 100}]
//	    }}
//	  ]
//	}
//
// # Wire Formats
//
// Filters travel as JSON ([Parse], [Filter.MarshalJSON]) or MessagePack
// ([ParseMsgpack], [EncodeMsgpack]). Both formats accept operators either by
// name (case-insensitive) or by their integer wire number:
//
//	Contains=0 Equal=1 NotEqual=2 MoreThan=3 LessThan=4 MoreThanOrEqual=5
//	LessThanOrEqual=6 In=7 EqualToDate=8 Any=9 Filter=10
//	And=0 Or=1 Not=2
//
// Unknown operators are rejected while parsing with an error wrapping
// [ErrUnknownOperator].
//
// # Values
//
// Operand values are loosely typed on the wire. Scalars are decoded as soon as
// they are parsed (JSON numbers are kept as json.Number); arrays and objects
// stay raw until the predicate compiler knows the member type they target.
//
// # Building Filters in Go
//
//	f := filter.And(
//	    filter.Expr("Name", filter.TypeContains, "ann"),
//	    filter.Any("Orders", filter.And(
//	        filter.Expr("Total", filter.TypeMoreThan, 100),
//	    )),
//	)
//
// Note that the Not operator negates every expression and ANDs the negations:
// Not(a, b) means (NOT a) AND (NOT b).
package filter
