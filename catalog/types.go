package catalog

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hugr-lab/entityfilter/filter"
	"github.com/hugr-lab/entityfilter/predicate"
)

// DefaultBatchSize is the number of rows per record batch when
// ScanOptions.BatchSize is not set.
const DefaultBatchSize = 4096

// ScanOptions provides options for collection scans.
type ScanOptions struct {
	// Columns to return. If nil/empty, return all columns.
	Columns []string

	// Filter is the filter tree as received from the client.
	// Informational; collections match rows with Predicate.
	Filter *filter.Filter

	// Predicate is Filter compiled against the collection's EntityType.
	// If nil, every entity matches.
	Predicate *predicate.Predicate

	// Limit is maximum rows to return.
	// If 0 or negative, no limit.
	Limit int64

	// BatchSize is hint for RecordReader batch size.
	// If 0, DefaultBatchSize is used.
	BatchSize int
}

// batchSize returns the effective batch size of opts.
func (opts *ScanOptions) batchSize() int {
	if opts == nil || opts.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return opts.BatchSize
}

// ScanFunc is the signature for scan functions used by StaticCollection.
type ScanFunc func(ctx context.Context, opts *ScanOptions) (array.RecordReader, error)
