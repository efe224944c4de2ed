package catalog

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/entityfilter/filter"
	"github.com/hugr-lab/entityfilter/predicate"
)

var peopleSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "age", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	{Name: "tags", Type: arrow.ListOf(arrow.BinaryTypes.String), Nullable: true},
}, nil)

// peopleRecord holds five rows:
//
//	1 Alice 34   [admin dev]
//	2 Bob   null [dev]
//	3 carol 27   null
//	4 Dave  41   []
//	5 null  19   [ops]
func peopleRecord(t testing.TB) arrow.RecordBatch {
	t.Helper()

	b := array.NewRecordBuilder(memory.DefaultAllocator, peopleSchema)
	defer b.Release()

	b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3, 4, 5}, nil)
	b.Field(1).(*array.StringBuilder).AppendValues(
		[]string{"Alice", "Bob", "carol", "Dave", ""},
		[]bool{true, true, true, true, false})
	b.Field(2).(*array.Int32Builder).AppendValues(
		[]int32{34, 0, 27, 41, 19},
		[]bool{true, false, true, true, true})

	tags := b.Field(3).(*array.ListBuilder)
	values := tags.ValueBuilder().(*array.StringBuilder)
	tags.Append(true)
	values.AppendValues([]string{"admin", "dev"}, nil)
	tags.Append(true)
	values.Append("dev")
	tags.AppendNull()
	tags.Append(true)
	tags.Append(true)
	values.Append("ops")

	rec := b.NewRecordBatch()
	t.Cleanup(rec.Release)
	return rec
}

func compileFor(t testing.TB, col Collection, f *filter.Filter) *predicate.Predicate {
	t.Helper()
	p, err := predicate.Compile(f, col.EntityType())
	if err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}
	return p
}

// readIDs drains reader and returns the values of its int64 "id" column.
func readIDs(t testing.TB, reader array.RecordReader) []int64 {
	t.Helper()
	defer reader.Release()

	ids := []int64{}
	for reader.Next() {
		rec := reader.RecordBatch()
		idx := rec.Schema().FieldIndices("id")
		if len(idx) == 0 {
			t.Fatal("record has no id column")
		}
		ids = append(ids, rec.Column(idx[0]).(*array.Int64).Int64Values()...)
	}
	if err := reader.Err(); err != nil {
		t.Fatalf("reader error: %v", err)
	}
	return ids
}
