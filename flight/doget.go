package flight

import (
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/entityfilter/internal/recovery"
)

// DoGet streams the rows of a collection that match the ticket's query.
//
// The handler:
//  1. Decodes the ticket produced by GetFlightInfo or ListFlights
//  2. Resolves the collection and compiles the query filter against it
//  3. Scans the collection with predicate, projection and limit
//  4. Validates the reader schema against the projected collection schema
//  5. Streams record batches using Arrow IPC format
func (s *Server) DoGet(ticket *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	ctx := EnrichContextMetadata(stream.Context())
	logger := s.requestLogger(ctx)

	logger.Debug("DoGet called", "ticket_size", len(ticket.GetTicket()))

	q, err := s.tickets.Decode(ticket.GetTicket())
	if err != nil {
		logger.Error("Failed to decode ticket", "error", err)
		return status.Errorf(codes.InvalidArgument, "invalid ticket: %v", err)
	}

	logger.Debug("DoGet request",
		"schema", q.Schema,
		"collection", q.Collection,
		"columns", q.Columns,
		"limit", q.Limit,
	)

	collection, opts, err := s.plan(ctx, logger, q)
	if err != nil {
		return err
	}

	expected := collection.ArrowSchema(q.Columns)
	if expected == nil {
		return status.Errorf(codes.Internal, "collection %s.%s has nil Arrow schema", q.Schema, q.Collection)
	}

	reader, err := recovery.RecoverToValue(logger, "Scan", func() (array.RecordReader, error) {
		return collection.Scan(ctx, opts)
	})
	if err != nil {
		logger.Error("Collection scan failed",
			"schema", q.Schema,
			"collection", q.Collection,
			"error", err,
		)
		return scanStatus(err)
	}
	defer reader.Release()

	readerSchema := reader.Schema()
	if !expected.Equal(readerSchema) {
		logger.Error("RecordReader schema does not match collection schema",
			"schema", q.Schema,
			"collection", q.Collection,
			"collection_schema_fields", expected.NumFields(),
			"reader_schema_fields", readerSchema.NumFields(),
		)
		return status.Errorf(codes.Internal,
			"schema mismatch: collection has %d fields, reader has %d fields",
			expected.NumFields(), readerSchema.NumFields())
	}

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(expected))
	defer writer.Close()

	batchCount := 0
	totalRows := int64(0)

	for reader.Next() {
		select {
		case <-ctx.Done():
			logger.Debug("DoGet cancelled by client",
				"schema", q.Schema,
				"collection", q.Collection,
				"batches_sent", batchCount,
				"rows_sent", totalRows,
			)
			return status.Error(codes.Canceled, "request cancelled")
		default:
		}

		record := reader.RecordBatch()
		batchCount++
		totalRows += record.NumRows()

		if err := writer.Write(record); err != nil {
			logger.Error("Failed to write record batch",
				"schema", q.Schema,
				"collection", q.Collection,
				"batch", batchCount,
				"error", err,
			)
			return status.Errorf(codes.Internal, "failed to write batch %d: %v", batchCount, err)
		}
	}

	if err := reader.Err(); err != nil {
		logger.Error("RecordReader error during iteration",
			"schema", q.Schema,
			"collection", q.Collection,
			"batch", batchCount,
			"error", err,
		)
		return scanStatus(err)
	}

	logger.Debug("DoGet completed successfully",
		"schema", q.Schema,
		"collection", q.Collection,
		"batches_sent", batchCount,
		"total_rows", totalRows,
	)

	return nil
}
