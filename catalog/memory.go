package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hugr-lab/entityfilter/schema"
)

// MemoryCollection keeps Arrow record batches in memory and evaluates
// predicates against them row by row.
type MemoryCollection struct {
	name       string
	comment    string
	arrow      *arrow.Schema
	entityType *schema.Type

	mu      sync.RWMutex
	records []arrow.RecordBatch
	rows    int64
}

// NewMemoryCollection creates an empty collection with the given schema.
func NewMemoryCollection(name, comment string, s *arrow.Schema) (*MemoryCollection, error) {
	et, err := schema.FromArrow(name, s)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", name, err)
	}
	return &MemoryCollection{
		name:       name,
		comment:    comment,
		arrow:      s,
		entityType: et,
	}, nil
}

// Append adds records to the collection. The collection retains them.
func (c *MemoryCollection) Append(recs ...arrow.RecordBatch) error {
	for _, rec := range recs {
		if !rec.Schema().Equal(c.arrow) {
			return fmt.Errorf("collection %s: record schema does not match", c.name)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range recs {
		rec.Retain()
		c.records = append(c.records, rec)
		c.rows += rec.NumRows()
	}
	return nil
}

// NumRows returns the number of entities held.
func (c *MemoryCollection) NumRows() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rows
}

// Release drops all records.
func (c *MemoryCollection) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range c.records {
		rec.Release()
	}
	c.records = nil
	c.rows = 0
}

func (c *MemoryCollection) Name() string    { return c.name }
func (c *MemoryCollection) Comment() string { return c.comment }

func (c *MemoryCollection) ArrowSchema(columns []string) *arrow.Schema {
	return ProjectSchema(c.arrow, columns)
}

func (c *MemoryCollection) EntityType() *schema.Type { return c.entityType }

// Scan reads a snapshot of the records taken when Scan is called.
// Records longer than the batch size are split.
func (c *MemoryCollection) Scan(ctx context.Context, opts *ScanOptions) (array.RecordReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := int64(opts.batchSize())

	c.mu.RLock()
	batches := make([]arrow.RecordBatch, 0, len(c.records))
	for _, rec := range c.records {
		for off := int64(0); off < rec.NumRows(); off += size {
			batches = append(batches, rec.NewSlice(off, min(off+size, rec.NumRows())))
		}
	}
	c.mu.RUnlock()

	reader, err := array.NewRecordReader(c.arrow, batches)
	for _, b := range batches {
		b.Release()
	}
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", c.name, err)
	}
	return NewFilteredReader(ctx, reader, opts), nil
}
