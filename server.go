package entityfilter

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"

	"github.com/hugr-lab/entityfilter/flight"
	"github.com/hugr-lab/entityfilter/predicate"
)

// NewServer registers the Flight service handlers on the provided gRPC
// server and returns the handler so the caller can Close it after the gRPC
// server stops.
//
// The function:
//  1. Validates the ServerConfig
//  2. Creates the filter compiler and the Flight service implementation
//  3. Registers it on grpcServer
//
// Does NOT start the gRPC server - user controls lifecycle via grpcServer.Serve().
// Create grpcServer with ServerOptions to get authentication, request
// metadata and panic recovery:
//
//	opts := entityfilter.ServerOptions(config)
//	grpcServer := grpc.NewServer(opts...)
//	srv, err := entityfilter.NewServer(grpcServer, config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
//	lis, _ := net.Listen("tcp", ":50051")
//	grpcServer.Serve(lis)
func NewServer(grpcServer *grpc.Server, config ServerConfig) (*flight.Server, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	allocator := config.Allocator
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}
	logger := configLogger(config)

	flightServer, err := flight.NewServer(flight.Config{
		Catalog: config.Catalog,
		Compiler: predicate.NewCompiler(&predicate.Options{
			MaxDepth: config.MaxFilterDepth,
			Logger:   logger,
		}),
		Authenticator: config.Auth,
		Allocator:     allocator,
		Logger:        logger,
		Address:       config.Address,
	})
	if err != nil {
		return nil, err
	}

	flight.RegisterFlightServer(grpcServer, flightServer)

	logger.Info("Entity filter Flight server registered",
		"has_auth", config.Auth != nil,
		"max_message_size", config.MaxMessageSize,
		"address", config.Address,
	)

	return flightServer, nil
}

// validateConfig checks that required ServerConfig fields are valid.
func validateConfig(config ServerConfig) error {
	if config.Catalog == nil {
		return fmt.Errorf("catalog is required")
	}
	if config.MaxFilterDepth < 0 {
		return fmt.Errorf("max filter depth must be non-negative, got %d", config.MaxFilterDepth)
	}
	if config.MaxMessageSize < 0 {
		return fmt.Errorf("max message size must be non-negative, got %d", config.MaxMessageSize)
	}
	return nil
}

func configLogger(config ServerConfig) *slog.Logger {
	if config.Logger != nil {
		return config.Logger
	}
	if config.LogLevel != nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: *config.LogLevel}))
	}
	return slog.Default()
}

// ServerOptions returns gRPC server options with the request interceptors
// and message size limits for config.
//
// Example:
//
//	config := entityfilter.ServerConfig{
//	    Catalog: catalog,
//	    Auth:    entityfilter.BearerAuth(validateToken),
//	}
//	grpcServer := grpc.NewServer(entityfilter.ServerOptions(config)...)
//	entityfilter.NewServer(grpcServer, config)
func ServerOptions(config ServerConfig) []grpc.ServerOption {
	logger := configLogger(config)

	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(flight.UnaryServerInterceptor(config.Auth, logger)),
		grpc.StreamInterceptor(flight.StreamServerInterceptor(config.Auth, logger)),
	}

	if config.MaxMessageSize > 0 {
		opts = append(opts,
			grpc.MaxRecvMsgSize(config.MaxMessageSize),
			grpc.MaxSendMsgSize(config.MaxMessageSize),
		)
	}

	return opts
}
