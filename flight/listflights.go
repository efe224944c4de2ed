package flight

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/entityfilter/auth"
	"github.com/hugr-lab/entityfilter/catalog"
)

// ListFlights sends one FlightInfo per readable collection, each with a
// PATH descriptor and a ticket selecting all rows.
//
// A non-empty criteria expression restricts the listing to the schema it
// names. Collections the caller is not authorized to read are omitted.
func (s *Server) ListFlights(criteria *flight.Criteria, stream flight.FlightService_ListFlightsServer) error {
	ctx := EnrichContextMetadata(stream.Context())
	logger := s.requestLogger(ctx)

	only := string(criteria.GetExpression())
	logger.Debug("ListFlights called", "schema", only)

	schemas, err := s.catalog.Schemas(ctx)
	if err != nil {
		logger.Error("Failed to list schemas", "error", err)
		return status.Errorf(codes.Internal, "failed to list schemas: %v", err)
	}

	sent := 0
	for _, schema := range schemas {
		if only != "" && schema.Name() != only {
			continue
		}

		collections, err := schema.Collections(ctx)
		if err != nil {
			logger.Error("Failed to list collections",
				"schema", schema.Name(),
				"error", err,
			)
			return status.Errorf(codes.Internal, "failed to list collections: %v", err)
		}

		for _, collection := range collections {
			if !s.readable(ctx, schema, collection) {
				continue
			}

			desc := &flight.FlightDescriptor{
				Type: flight.DescriptorPATH,
				Path: []string{schema.Name(), collection.Name()},
			}
			q := &Query{Schema: schema.Name(), Collection: collection.Name()}

			info, err := s.flightInfo(desc, q, collection.ArrowSchema(nil))
			if err != nil {
				logger.Error("Failed to encode ticket",
					"schema", schema.Name(),
					"collection", collection.Name(),
					"error", err,
				)
				return status.Errorf(codes.Internal, "failed to encode ticket: %v", err)
			}

			if err := stream.Send(info); err != nil {
				logger.Error("Failed to send FlightInfo", "error", err)
				return status.Errorf(codes.Internal, "failed to send flight info: %v", err)
			}
			sent++
		}
	}

	logger.Debug("ListFlights completed successfully", "flights", sent)
	return nil
}

func (s *Server) readable(ctx context.Context, schema catalog.Schema, collection catalog.Collection) bool {
	if s.authenticator == nil {
		return true
	}
	return auth.AuthorizeCollection(ctx, s.authenticator, schema.Name(), collection.Name()) == nil
}
