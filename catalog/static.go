package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hugr-lab/entityfilter/schema"
)

// StaticCatalog is a Catalog whose schemas are fixed once built.
// AddSchema must not be called concurrently with lookups.
type StaticCatalog struct {
	schemas map[string]*staticSchema
}

// NewStaticCatalog creates an empty static catalog.
func NewStaticCatalog() *StaticCatalog {
	return &StaticCatalog{
		schemas: make(map[string]*staticSchema),
	}
}

// AddSchema adds or replaces a schema holding the given collections.
func (c *StaticCatalog) AddSchema(name, comment string, collections ...Collection) {
	s := &staticSchema{
		name:        name,
		comment:     comment,
		collections: make(map[string]Collection, len(collections)),
	}
	for _, col := range collections {
		s.collections[col.Name()] = col
	}
	c.schemas[name] = s
}

// Schemas returns the schemas ordered by name.
func (c *StaticCatalog) Schemas(ctx context.Context) ([]Schema, error) {
	result := make([]Schema, 0, len(c.schemas))
	for _, s := range c.schemas {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result, nil
}

func (c *StaticCatalog) Schema(ctx context.Context, name string) (Schema, error) {
	s, ok := c.schemas[name]
	if !ok {
		return nil, nil // Not found, not an error
	}
	return s, nil
}

type staticSchema struct {
	name        string
	comment     string
	collections map[string]Collection
}

func (s *staticSchema) Name() string {
	return s.name
}

func (s *staticSchema) Comment() string {
	return s.comment
}

func (s *staticSchema) Collections(ctx context.Context) ([]Collection, error) {
	result := make([]Collection, 0, len(s.collections))
	for _, col := range s.collections {
		result = append(result, col)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result, nil
}

func (s *staticSchema) Collection(ctx context.Context, name string) (Collection, error) {
	col, ok := s.collections[name]
	if !ok {
		return nil, nil
	}
	return col, nil
}

// StaticCollection serves records produced by a user scan function.
// The scan function returns records of the full schema and may ignore
// ScanOptions; predicate, projection and limit are applied to its output.
type StaticCollection struct {
	name       string
	comment    string
	arrow      *arrow.Schema
	entityType *schema.Type
	scanFunc   ScanFunc
}

// NewStaticCollection creates a collection over scanFunc. The entity type
// is derived from the Arrow schema.
func NewStaticCollection(name, comment string, s *arrow.Schema, scanFunc ScanFunc) (*StaticCollection, error) {
	et, err := schema.FromArrow(name, s)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", name, err)
	}
	return &StaticCollection{
		name:       name,
		comment:    comment,
		arrow:      s,
		entityType: et,
		scanFunc:   scanFunc,
	}, nil
}

func (t *StaticCollection) Name() string {
	return t.name
}

func (t *StaticCollection) Comment() string {
	return t.comment
}

func (t *StaticCollection) ArrowSchema(columns []string) *arrow.Schema {
	return ProjectSchema(t.arrow, columns)
}

func (t *StaticCollection) EntityType() *schema.Type {
	return t.entityType
}

func (t *StaticCollection) Scan(ctx context.Context, opts *ScanOptions) (array.RecordReader, error) {
	reader, err := t.scanFunc(ctx, opts)
	if err != nil {
		return nil, err
	}
	if !reader.Schema().Equal(t.arrow) {
		reader.Release()
		return nil, fmt.Errorf("collection %s: scan function returned a schema with %d fields, want %d",
			t.name, reader.Schema().NumFields(), t.arrow.NumFields())
	}
	return NewFilteredReader(ctx, reader, opts), nil
}
