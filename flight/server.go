// Package flight serves entity collections over Arrow Flight RPC.
//
// Clients address a collection with a PATH descriptor [schema, collection]
// or a CMD descriptor carrying a Query (JSON or MessagePack) with a filter
// tree. GetFlightInfo compiles the filter against the collection's entity
// type and returns a ticket; DoGet streams the matching rows.
package flight

import (
	"errors"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"

	"github.com/hugr-lab/entityfilter/auth"
	"github.com/hugr-lab/entityfilter/catalog"
	"github.com/hugr-lab/entityfilter/predicate"
)

// Config holds the dependencies of a Server.
type Config struct {
	// Catalog is the source of collections.
	// REQUIRED.
	Catalog catalog.Catalog

	// Compiler compiles query filters.
	// OPTIONAL: Defaults to predicate.NewCompiler(nil).
	Compiler *predicate.Compiler

	// Authenticator, when it implements auth.CollectionAuthorizer, limits
	// which collections an identity may read.
	// OPTIONAL.
	Authenticator auth.Authenticator

	// Allocator for Arrow schema serialization.
	// OPTIONAL: Defaults to memory.DefaultAllocator.
	Allocator memory.Allocator

	// Logger for request logging.
	// OPTIONAL: Defaults to slog.Default().
	Logger *slog.Logger

	// Address is the public address advertised in FlightEndpoint locations.
	// OPTIONAL: Endpoints carry no location when empty.
	Address string
}

// Server implements the Flight service handlers.
// Embeds BaseFlightServer so unimplemented RPCs return Unimplemented.
type Server struct {
	flight.BaseFlightServer

	catalog       catalog.Catalog
	compiler      *predicate.Compiler
	authenticator auth.Authenticator
	tickets       *TicketCodec
	allocator     memory.Allocator
	logger        *slog.Logger
	address       string
}

// NewServer creates a Flight server. Call Close when it is no longer used.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("flight: catalog is required")
	}

	tickets, err := NewTicketCodec()
	if err != nil {
		return nil, err
	}

	s := &Server{
		catalog:       cfg.Catalog,
		compiler:      cfg.Compiler,
		authenticator: cfg.Authenticator,
		tickets:       tickets,
		allocator:     cfg.Allocator,
		logger:        cfg.Logger,
		address:       cfg.Address,
	}
	if s.compiler == nil {
		s.compiler = predicate.NewCompiler(nil)
	}
	if s.allocator == nil {
		s.allocator = memory.DefaultAllocator
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Close releases the ticket codec.
func (s *Server) Close() {
	s.tickets.Close()
}

// Tickets returns the codec used for this server's tickets.
func (s *Server) Tickets() *TicketCodec {
	return s.tickets
}

// RegisterFlightServer registers the Flight service on the provided gRPC server.
func RegisterFlightServer(grpcServer *grpc.Server, flightServer *Server) {
	flight.RegisterFlightServiceServer(grpcServer, flightServer)
}
