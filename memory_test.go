package entityfilter

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/entityfilter/catalog"
	"github.com/hugr-lab/entityfilter/filter"
	"github.com/hugr-lab/entityfilter/predicate"
)

var leakSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

// leakScanFunc builds a fresh record from allocator on every scan.
func leakScanFunc(allocator memory.Allocator) catalog.ScanFunc {
	return func(ctx context.Context, opts *catalog.ScanOptions) (array.RecordReader, error) {
		builder := array.NewRecordBuilder(allocator, leakSchema)
		defer builder.Release()
		builder.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3, 4, 5, 6}, nil)
		builder.Field(1).(*array.StringBuilder).AppendValues(
			[]string{"a", "b", "", "d", "e", "f"},
			[]bool{true, true, false, true, true, true})
		record := builder.NewRecordBatch()
		defer record.Release()
		return array.NewRecordReader(leakSchema, []arrow.RecordBatch{record})
	}
}

func leakCollection(t *testing.T, allocator memory.Allocator) catalog.Collection {
	t.Helper()
	cat, err := NewCatalogBuilder().
		Schema("test").
		StaticCollection(StaticCollectionDef{
			Name:     "data",
			Schema:   leakSchema,
			ScanFunc: leakScanFunc(allocator),
		}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	col, err := catalog.Lookup(context.Background(), cat, "test", "data")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	return col
}

// TestMemoryLeaks uses memory.NewCheckedAllocator to detect memory leaks.
// Filtered batches are allocated from the same allocator through the
// compute context.
func TestMemoryLeaks(t *testing.T) {
	allocator := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer allocator.AssertSize(t, 0)

	col := leakCollection(t, allocator)
	ctx := compute.WithAllocator(context.Background(), allocator)

	filters := map[string]*filter.Filter{
		"no filter":  nil,
		"single run": filter.And(filter.Expr("id", filter.TypeLessThan, 3)),
		"many runs":  filter.Or(filter.Expr("id", filter.TypeEqual, 1), filter.Expr("id", filter.TypeIn, []int{3, 5})),
		"no match":   filter.And(filter.Expr("id", filter.TypeMoreThan, 100)),
		"nulls":      filter.Not(filter.Expr("name", filter.TypeEqual, nil)),
	}

	for name, f := range filters {
		t.Run(name, func(t *testing.T) {
			p, err := predicate.Compile(f, col.EntityType())
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			for _, opts := range []*catalog.ScanOptions{
				{Predicate: p},
				{Predicate: p, Columns: []string{"name"}, Limit: 2},
			} {
				reader, err := col.Scan(ctx, opts)
				if err != nil {
					t.Fatalf("Scan failed: %v", err)
				}
				for reader.Next() {
					_ = reader.RecordBatch()
				}
				if err := reader.Err(); err != nil {
					t.Errorf("reader error: %v", err)
				}
				reader.Release()
			}
		})
	}
}

// TestMemoryLeaksInConcurrentScans tests that concurrent scans don't leak memory.
func TestMemoryLeaksInConcurrentScans(t *testing.T) {
	allocator := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer allocator.AssertSize(t, 0)

	col := leakCollection(t, allocator)
	ctx := compute.WithAllocator(context.Background(), allocator)
	p, err := predicate.Compile(filter.Or(
		filter.Expr("id", filter.TypeEqual, 2),
		filter.Expr("id", filter.TypeEqual, 4),
	), col.EntityType())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reader, err := col.Scan(ctx, &catalog.ScanOptions{Predicate: p})
			if err != nil {
				errs <- err
				return
			}
			defer reader.Release()

			for reader.Next() {
				_ = reader.RecordBatch()
			}
			if err := reader.Err(); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Concurrent scan error: %v", err)
	}
}

// TestNoMemoryLeaksWithErrors tests that memory is released when a scan
// is cancelled part way.
func TestNoMemoryLeaksWithErrors(t *testing.T) {
	allocator := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer allocator.AssertSize(t, 0)

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
	}, nil)

	scanFunc := func(ctx context.Context, opts *catalog.ScanOptions) (array.RecordReader, error) {
		var batches []arrow.RecordBatch
		for i := 0; i < 3; i++ {
			builder := array.NewRecordBuilder(allocator, schema)
			builder.Field(0).(*array.Int64Builder).AppendValues([]int64{int64(i)}, nil)
			batches = append(batches, builder.NewRecordBatch())
			builder.Release()
		}
		defer func() {
			for _, b := range batches {
				b.Release()
			}
		}()
		return array.NewRecordReader(schema, batches)
	}

	col, err := catalog.NewStaticCollection("data", "", schema, scanFunc)
	if err != nil {
		t.Fatalf("NewStaticCollection failed: %v", err)
	}

	ctx, cancel := context.WithCancel(compute.WithAllocator(context.Background(), allocator))
	reader, err := col.Scan(ctx, nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	defer reader.Release()

	if !reader.Next() {
		t.Fatalf("Expected first batch, err: %v", reader.Err())
	}
	cancel()
	if reader.Next() {
		t.Error("Expected Next() to stop after cancellation")
	}
	if !errors.Is(reader.Err(), context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", reader.Err())
	}
}
