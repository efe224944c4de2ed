// Package catalog defines the entity collections a server exposes and the
// scan contract they implement.
//
// A Catalog groups collections into named schemas. Every collection
// publishes its Arrow schema and the entity type filters are compiled
// against, and scans rows with an optional compiled predicate.
//
// Three implementations ship with the package:
//   - StaticCollection wraps a user scan function and filters whatever it returns.
//   - MemoryCollection holds Arrow record batches in memory.
//   - SQLCollection reads a DuckDB table and pushes predicates down as SQL.
package catalog

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Lookup when a schema or collection doesn't exist.
var ErrNotFound = errors.New("not found")

// Catalog is the root of the collection hierarchy.
// Implementations must be safe for concurrent use.
type Catalog interface {
	// Schemas returns all schemas visible in this catalog.
	// Context may carry deadline and cancellation.
	Schemas(ctx context.Context) ([]Schema, error)

	// Schema returns a specific schema by name.
	// Returns (nil, nil) if schema doesn't exist (not an error).
	Schema(ctx context.Context, name string) (Schema, error)
}

// Schema is a named group of collections.
type Schema interface {
	// Name returns the schema name (e.g., "main", "sales").
	Name() string

	// Comment returns optional schema documentation.
	// Returns empty string if no comment provided.
	Comment() string

	// Collections returns all collections in this schema.
	Collections(ctx context.Context) ([]Collection, error)

	// Collection returns a specific collection by name.
	// Returns (nil, nil) if the collection doesn't exist.
	Collection(ctx context.Context, name string) (Collection, error)
}

// Lookup resolves schemaName.name in cat.
// Missing schemas and collections are reported with ErrNotFound.
func Lookup(ctx context.Context, cat Catalog, schemaName, name string) (Collection, error) {
	schema, err := cat.Schema(ctx, schemaName)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", schemaName, err)
	}
	if schema == nil {
		return nil, fmt.Errorf("schema %s: %w", schemaName, ErrNotFound)
	}

	collection, err := schema.Collection(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("collection %s.%s: %w", schemaName, name, err)
	}
	if collection == nil {
		return nil, fmt.Errorf("collection %s.%s: %w", schemaName, name, ErrNotFound)
	}
	return collection, nil
}
