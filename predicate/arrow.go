package predicate

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/extensions"

	"github.com/hugr-lab/entityfilter/schema"
)

// MatchRow evaluates the predicate against one row of an Arrow record.
// The predicate must have been compiled against a type derived from the
// record's schema (schema.FromArrow), since members are read by ordinal.
func (p *Predicate) MatchRow(rec arrow.RecordBatch, row int) (bool, error) {
	if p == nil {
		return true, nil
	}
	if row < 0 || int64(row) >= rec.NumRows() {
		return false, fmt.Errorf("predicate: row %d out of range [0, %d)", row, rec.NumRows())
	}
	return eval(p.Root, &env{param: p.Param, cur: &rowCursor{rec: rec, row: row}})
}

// FilterRecord returns a new record with the rows of rec the predicate
// matches, in order. A nil predicate returns rec retained. The caller must
// release the result.
func FilterRecord(ctx context.Context, p *Predicate, rec arrow.RecordBatch) (arrow.RecordBatch, error) {
	if p == nil {
		rec.Retain()
		return rec, nil
	}

	runs, n, err := matchingRuns(ctx, p, rec)
	if err != nil {
		return nil, err
	}
	switch len(runs) {
	case 0:
		return rec.NewSlice(0, 0), nil
	case 1:
		return rec.NewSlice(runs[0][0], runs[0][1]), nil
	}

	mem := compute.GetAllocator(ctx)
	cols := make([]arrow.Array, rec.NumCols())
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()
	for i := range cols {
		parts := make([]arrow.Array, len(runs))
		for j, r := range runs {
			parts[j] = array.NewSlice(rec.Column(i), r[0], r[1])
		}
		cols[i], err = array.Concatenate(parts, mem)
		for _, part := range parts {
			part.Release()
		}
		if err != nil {
			return nil, fmt.Errorf("predicate: filter column %s: %w", rec.ColumnName(i), err)
		}
	}
	return array.NewRecordBatch(rec.Schema(), cols, n), nil
}

// Mask evaluates the predicate for every row of rec. The result has no
// nulls. The caller must release it.
func Mask(ctx context.Context, p *Predicate, rec arrow.RecordBatch) (*array.Boolean, error) {
	b := array.NewBooleanBuilder(compute.GetAllocator(ctx))
	defer b.Release()

	n := int(rec.NumRows())
	b.Reserve(n)
	for row := range n {
		ok, err := matchRow(ctx, p, rec, row)
		if err != nil {
			return nil, err
		}
		b.UnsafeAppend(ok)
	}
	return b.NewBooleanArray(), nil
}

// matchingRuns returns the half-open row ranges the predicate matches and
// the total number of matching rows.
func matchingRuns(ctx context.Context, p *Predicate, rec arrow.RecordBatch) ([][2]int64, int64, error) {
	var (
		runs  [][2]int64
		total int64
	)
	start := int64(-1)
	for row := range rec.NumRows() {
		ok, err := matchRow(ctx, p, rec, int(row))
		if err != nil {
			return nil, 0, err
		}
		switch {
		case ok && start < 0:
			start = row
		case !ok && start >= 0:
			runs = append(runs, [2]int64{start, row})
			total += row - start
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, [2]int64{start, rec.NumRows()})
		total += rec.NumRows() - start
	}
	return runs, total, nil
}

func matchRow(ctx context.Context, p *Predicate, rec arrow.RecordBatch, row int) (bool, error) {
	if row%1024 == 0 {
		if err := ctx.Err(); err != nil {
			return false, err
		}
	}
	ok, err := p.MatchRow(rec, row)
	if err != nil {
		return false, fmt.Errorf("row %d: %w", row, err)
	}
	return ok, nil
}

// rowCursor is a row of a record. Members are the record's columns.
type rowCursor struct {
	rec arrow.RecordBatch
	row int
}

func (c *rowCursor) IsNull() bool { return false }

func (c *rowCursor) Field(f *schema.Field) (cursor, error) {
	if f.Ordinal < 0 || int64(f.Ordinal) >= c.rec.NumCols() {
		return nil, fmt.Errorf("predicate: record has no column %d (%s)", f.Ordinal, f.Name)
	}
	return &arrayCursor{arr: c.rec.Column(f.Ordinal), i: c.row}, nil
}

func (c *rowCursor) Len() int         { return 0 }
func (c *rowCursor) Index(int) cursor { return nil }
func (c *rowCursor) Value() any       { return nil }

// arrayCursor is one slot of an Arrow array.
type arrayCursor struct {
	arr arrow.Array
	i   int
}

func (c *arrayCursor) IsNull() bool { return c.arr.IsNull(c.i) }

func (c *arrayCursor) Field(f *schema.Field) (cursor, error) {
	st, ok := c.arr.(*array.Struct)
	if !ok {
		return nil, fmt.Errorf("predicate: cannot read member %s of %s", f.Name, c.arr.DataType())
	}
	if f.Ordinal < 0 || f.Ordinal >= st.NumField() {
		return nil, fmt.Errorf("predicate: %s has no field %d (%s)", c.arr.DataType(), f.Ordinal, f.Name)
	}
	return &arrayCursor{arr: st.Field(f.Ordinal), i: c.i}, nil
}

func (c *arrayCursor) Len() int {
	l, ok := c.arr.(array.ListLike)
	if !ok {
		return 0
	}
	start, end := l.ValueOffsets(c.i)
	return int(end - start)
}

func (c *arrayCursor) Index(i int) cursor {
	l := c.arr.(array.ListLike)
	start, _ := l.ValueOffsets(c.i)
	return &arrayCursor{arr: l.ListValues(), i: int(start) + i}
}

// Value returns the slot in the Go type schema.FromArrow assigns to the
// column's Arrow type.
func (c *arrayCursor) Value() any {
	switch a := c.arr.(type) {
	case *array.Boolean:
		return a.Value(c.i)
	case *array.Int8:
		return a.Value(c.i)
	case *array.Int16:
		return a.Value(c.i)
	case *array.Int32:
		return a.Value(c.i)
	case *array.Int64:
		return a.Value(c.i)
	case *array.Uint8:
		return a.Value(c.i)
	case *array.Uint16:
		return a.Value(c.i)
	case *array.Uint32:
		return a.Value(c.i)
	case *array.Uint64:
		return a.Value(c.i)
	case *array.Float32:
		return a.Value(c.i)
	case *array.Float64:
		return a.Value(c.i)
	case *array.String:
		return a.Value(c.i)
	case *array.LargeString:
		return a.Value(c.i)
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(c.i).ToTime(unit)
	case *array.Date32:
		return a.Value(c.i).ToTime()
	case *array.Date64:
		return a.Value(c.i).ToTime()
	case *extensions.UUIDArray:
		return a.Value(c.i)
	}
	return c.arr.GetOneForMarshal(c.i)
}
