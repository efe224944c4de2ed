package catalog

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hugr-lab/entityfilter/schema"
)

// Collection is a named set of entities with a fixed shape.
// Implementations MUST be goroutine-safe.
type Collection interface {
	// Name returns the collection name (e.g., "users", "orders").
	// MUST return non-empty string.
	Name() string

	// Comment returns optional collection documentation.
	Comment() string

	// ArrowSchema returns the schema of scanned records. With columns it
	// returns the projection of the full schema onto those columns.
	ArrowSchema(columns []string) *arrow.Schema

	// EntityType describes the members filters may reference. Predicates
	// passed in ScanOptions are compiled against this type.
	EntityType() *schema.Type

	// Scan returns the entities matching opts.Predicate.
	// Context allows cancellation; implementation MUST respect ctx.Done().
	// Caller MUST call reader.Release() to free memory.
	// The reader schema MUST equal ArrowSchema(opts.Columns).
	Scan(ctx context.Context, opts *ScanOptions) (array.RecordReader, error)
}
