package entityfilter

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/entityfilter/catalog"
)

// StaticCollectionDef defines a collection served by a scan function.
// Used with SchemaBuilder.StaticCollection().
type StaticCollectionDef struct {
	// Name is the collection name (e.g., "users", "orders").
	// REQUIRED: MUST be non-empty and unique within schema.
	Name string

	// Comment is optional collection documentation.
	// OPTIONAL: Empty string if no comment.
	Comment string

	// Schema is the Arrow schema describing collection columns. Filters
	// are compiled against the entity type derived from it.
	// REQUIRED: MUST NOT be nil.
	Schema *arrow.Schema

	// ScanFunc provides collection data as RecordReader. Predicates,
	// projection and limits are applied to its output.
	// REQUIRED: MUST NOT be nil.
	ScanFunc catalog.ScanFunc
}

// CatalogBuilder builds static catalogs using fluent API.
// Not thread-safe - use only during initialization.
type CatalogBuilder struct {
	schemas []*schemaBuilder
	built   bool
}

// NewCatalogBuilder creates a new fluent catalog builder.
//
// Example:
//
//	cat, err := entityfilter.NewCatalogBuilder().
//	    Schema("main").
//	        StaticCollection(...).
//	        Collection(peopleTable).
//	    Build()
func NewCatalogBuilder() *CatalogBuilder {
	return &CatalogBuilder{}
}

// Schema starts defining a new schema.
// Schema name MUST be non-empty and unique within catalog.
func (cb *CatalogBuilder) Schema(name string) *SchemaBuilder {
	sb := &schemaBuilder{
		name:           name,
		catalogBuilder: cb,
	}
	cb.schemas = append(cb.schemas, sb)
	return &SchemaBuilder{builder: sb}
}

// Build finalizes the catalog and returns an immutable Catalog.
// Can only be called once.
// Returns error if catalog is invalid (e.g., duplicate schema names).
func (cb *CatalogBuilder) Build() (catalog.Catalog, error) {
	if cb.built {
		return nil, fmt.Errorf("catalog already built")
	}

	seenNames := make(map[string]bool)
	built := make([][]catalog.Collection, len(cb.schemas))
	for i, sb := range cb.schemas {
		if sb.name == "" {
			return nil, fmt.Errorf("schema name cannot be empty")
		}
		if seenNames[sb.name] {
			return nil, fmt.Errorf("duplicate schema name: %s", sb.name)
		}
		seenNames[sb.name] = true

		collections, err := sb.build()
		if err != nil {
			return nil, err
		}
		built[i] = collections
	}

	cb.built = true

	cat := catalog.NewStaticCatalog()
	for i, sb := range cb.schemas {
		cat.AddSchema(sb.name, sb.comment, built[i]...)
	}
	return cat, nil
}

// SchemaBuilder builds a schema within a catalog.
// Not thread-safe - use only during initialization.
type SchemaBuilder struct {
	builder *schemaBuilder
}

// schemaBuilder keeps definitions in the order they were added.
type schemaBuilder struct {
	name           string
	comment        string
	defs           []StaticCollectionDef
	collections    []catalog.Collection
	catalogBuilder *CatalogBuilder
}

func (sb *schemaBuilder) build() ([]catalog.Collection, error) {
	names := make(map[string]bool)
	check := func(name string) error {
		if name == "" {
			return fmt.Errorf("collection name cannot be empty in schema %s", sb.name)
		}
		if names[name] {
			return fmt.Errorf("duplicate collection name %s in schema %s", name, sb.name)
		}
		names[name] = true
		return nil
	}

	out := make([]catalog.Collection, 0, len(sb.defs)+len(sb.collections))
	for _, def := range sb.defs {
		if err := check(def.Name); err != nil {
			return nil, err
		}
		if def.Schema == nil {
			return nil, fmt.Errorf("collection %s.%s has nil schema", sb.name, def.Name)
		}
		if def.ScanFunc == nil {
			return nil, fmt.Errorf("collection %s.%s has nil scan function", sb.name, def.Name)
		}
		c, err := catalog.NewStaticCollection(def.Name, def.Comment, def.Schema, def.ScanFunc)
		if err != nil {
			return nil, fmt.Errorf("collection %s.%s: %w", sb.name, def.Name, err)
		}
		out = append(out, c)
	}
	for _, c := range sb.collections {
		if c == nil {
			return nil, fmt.Errorf("nil collection in schema %s", sb.name)
		}
		if err := check(c.Name()); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Comment sets optional schema documentation.
func (sb *SchemaBuilder) Comment(comment string) *SchemaBuilder {
	sb.builder.comment = comment
	return sb
}

// StaticCollection adds a collection served by a scan function.
// Collection name MUST be unique within schema.
//
// Example:
//
//	schema.StaticCollection(entityfilter.StaticCollectionDef{
//	    Name:     "users",
//	    Comment:  "User accounts",
//	    Schema:   userSchema,
//	    ScanFunc: scanUsers,
//	})
func (sb *SchemaBuilder) StaticCollection(def StaticCollectionDef) *SchemaBuilder {
	sb.builder.defs = append(sb.builder.defs, def)
	return sb
}

// Collection adds an existing collection, such as a catalog.MemoryCollection
// or catalog.SQLCollection.
func (sb *SchemaBuilder) Collection(c catalog.Collection) *SchemaBuilder {
	sb.builder.collections = append(sb.builder.collections, c)
	return sb
}

// Schema starts a new schema definition (returns to CatalogBuilder).
// Allows chaining: Schema("a").Collection(...).Schema("b").Collection(...)
func (sb *SchemaBuilder) Schema(name string) *SchemaBuilder {
	return sb.builder.catalogBuilder.Schema(name)
}

// Build finalizes the catalog (returns to CatalogBuilder).
func (sb *SchemaBuilder) Build() (catalog.Catalog, error) {
	return sb.builder.catalogBuilder.Build()
}
