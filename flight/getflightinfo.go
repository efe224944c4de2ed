package flight

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GetFlightInfo returns the result schema and a ticket for a query.
//
// A PATH descriptor must contain [schema_name, collection_name] and selects
// every row. A CMD descriptor carries a Query (see ParseCommand) whose
// filter is compiled here, so invalid filters fail before any data is read.
func (s *Server) GetFlightInfo(ctx context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	ctx = EnrichContextMetadata(ctx)
	logger := s.requestLogger(ctx)

	logger.Debug("GetFlightInfo called",
		"type", desc.GetType(),
		"path_length", len(desc.GetPath()),
		"cmd_size", len(desc.GetCmd()),
	)

	q, err := queryFromDescriptor(desc)
	if err != nil {
		return nil, err
	}

	logger.Debug("GetFlightInfo request",
		"schema", q.Schema,
		"collection", q.Collection,
		"columns", q.Columns,
		"limit", q.Limit,
	)

	collection, _, err := s.plan(ctx, logger, q)
	if err != nil {
		return nil, err
	}

	arrowSchema := collection.ArrowSchema(q.Columns)
	if arrowSchema == nil {
		logger.Error("Collection returned nil Arrow schema",
			"schema", q.Schema,
			"collection", q.Collection,
		)
		return nil, status.Errorf(codes.Internal, "collection %s.%s has nil Arrow schema", q.Schema, q.Collection)
	}

	info, err := s.flightInfo(desc, q, arrowSchema)
	if err != nil {
		logger.Error("Failed to encode ticket",
			"schema", q.Schema,
			"collection", q.Collection,
			"error", err,
		)
		return nil, status.Errorf(codes.Internal, "failed to encode ticket: %v", err)
	}

	logger.Debug("GetFlightInfo successful",
		"schema", q.Schema,
		"collection", q.Collection,
		"num_fields", arrowSchema.NumFields(),
	)

	return info, nil
}

func queryFromDescriptor(desc *flight.FlightDescriptor) (*Query, error) {
	switch desc.GetType() {
	case flight.DescriptorPATH:
		path := desc.GetPath()
		if len(path) != 2 {
			return nil, status.Error(codes.InvalidArgument, "path must contain exactly 2 elements: [schema_name, collection_name]")
		}
		q := &Query{Schema: path[0], Collection: path[1]}
		if err := q.validate(); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return q, nil
	case flight.DescriptorCMD:
		q, err := ParseCommand(desc.GetCmd())
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return q, nil
	}
	return nil, status.Error(codes.InvalidArgument, "descriptor must be PATH or CMD type")
}

// flightInfo builds a FlightInfo with a single endpoint for q.
func (s *Server) flightInfo(desc *flight.FlightDescriptor, q *Query, arrowSchema *arrow.Schema) (*flight.FlightInfo, error) {
	ticket, err := s.tickets.Encode(q)
	if err != nil {
		return nil, err
	}

	endpoint := &flight.FlightEndpoint{
		Ticket: &flight.Ticket{Ticket: ticket},
	}
	if s.address != "" {
		endpoint.Location = []*flight.Location{{Uri: "grpc://" + s.address}}
	}

	return &flight.FlightInfo{
		Schema:           flight.SerializeSchema(arrowSchema, s.allocator),
		FlightDescriptor: desc,
		Endpoint:         []*flight.FlightEndpoint{endpoint},
		TotalRecords:     -1, // Unknown until scan
		TotalBytes:       -1,
	}, nil
}
