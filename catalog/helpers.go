package catalog

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hugr-lab/entityfilter/predicate"
)

// ProjectSchema returns a projected schema containing only the specified columns.
// If columns is nil or empty, returns the full schema unchanged.
// Column order in the returned schema matches the order in columns slice.
// Unknown column names are skipped. Schema metadata is preserved.
func ProjectSchema(s *arrow.Schema, columns []string) *arrow.Schema {
	if len(columns) == 0 {
		return s
	}
	idx := columnIndices(s, columns)
	if len(idx) == 0 {
		return s
	}
	fields := make([]arrow.Field, len(idx))
	for i, j := range idx {
		fields[i] = s.Field(j)
	}
	meta := s.Metadata()
	return arrow.NewSchema(fields, &meta)
}

// columnIndices maps column names to their positions in s, skipping
// names s does not have.
func columnIndices(s *arrow.Schema, columns []string) []int {
	idx := make([]int, 0, len(columns))
	for _, col := range columns {
		if i := s.FieldIndices(col); len(i) > 0 {
			idx = append(idx, i[0])
		}
	}
	return idx
}

// projectRecord returns the columns idx of rec under the projected schema.
// The result must be released by the caller.
func projectRecord(rec arrow.RecordBatch, projected *arrow.Schema, idx []int) arrow.RecordBatch {
	cols := make([]arrow.Array, len(idx))
	for i, j := range idx {
		cols[i] = rec.Column(j)
	}
	return array.NewRecordBatch(projected, cols, rec.NumRows())
}

// NewFilteredReader wraps input, which must produce records of the full
// collection schema, and yields only rows matching opts.Predicate,
// projected onto opts.Columns and capped at opts.Limit.
// The returned reader takes ownership of input.
func NewFilteredReader(ctx context.Context, input array.RecordReader, opts *ScanOptions) array.RecordReader {
	if opts == nil {
		opts = &ScanOptions{}
	}
	r := &filteredReader{
		ctx:    ctx,
		input:  input,
		pred:   opts.Predicate,
		schema: input.Schema(),
		limit:  opts.Limit,
	}
	r.refs.Store(1)
	if len(opts.Columns) > 0 {
		r.schema = ProjectSchema(input.Schema(), opts.Columns)
		if r.schema != input.Schema() {
			r.columns = columnIndices(input.Schema(), opts.Columns)
		}
	}
	return r
}

// filteredReader applies a predicate, a projection and a row limit to the
// batches of another reader.
type filteredReader struct {
	ctx     context.Context
	input   array.RecordReader
	pred    *predicate.Predicate
	schema  *arrow.Schema
	columns []int
	limit   int64
	emitted int64

	current arrow.RecordBatch
	err     error
	refs    atomic.Int64
}

func (r *filteredReader) Schema() *arrow.Schema { return r.schema }

func (r *filteredReader) Next() bool {
	r.releaseCurrent()
	if r.err != nil || (r.limit > 0 && r.emitted >= r.limit) {
		return false
	}
	for r.input.Next() {
		if err := r.ctx.Err(); err != nil {
			r.err = err
			return false
		}
		batch, err := r.next(r.input.RecordBatch())
		if err != nil {
			r.err = err
			return false
		}
		if batch == nil {
			continue
		}
		r.current = batch
		r.emitted += batch.NumRows()
		return true
	}
	return false
}

// next turns one input batch into an output batch, or nil when no row
// of it survives.
func (r *filteredReader) next(in arrow.RecordBatch) (arrow.RecordBatch, error) {
	rec, err := predicate.FilterRecord(r.ctx, r.pred, in)
	if err != nil {
		return nil, fmt.Errorf("filter batch: %w", err)
	}
	if r.limit > 0 && rec.NumRows() > r.limit-r.emitted {
		sliced := rec.NewSlice(0, r.limit-r.emitted)
		rec.Release()
		rec = sliced
	}
	if rec.NumRows() == 0 {
		rec.Release()
		return nil, nil
	}
	if r.columns != nil {
		projected := projectRecord(rec, r.schema, r.columns)
		rec.Release()
		rec = projected
	}
	return rec, nil
}

func (r *filteredReader) RecordBatch() arrow.RecordBatch { return r.current }

// Record returns the current batch.
//
// Deprecated: use RecordBatch.
func (r *filteredReader) Record() arrow.RecordBatch { return r.current }

func (r *filteredReader) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.input.Err()
}

func (r *filteredReader) Retain() { r.refs.Add(1) }

func (r *filteredReader) Release() {
	if r.refs.Add(-1) > 0 {
		return
	}
	r.releaseCurrent()
	r.input.Release()
}

func (r *filteredReader) releaseCurrent() {
	if r.current != nil {
		r.current.Release()
		r.current = nil
	}
}
