package entityfilter

import (
	"errors"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/entityfilter/auth"
	"github.com/hugr-lab/entityfilter/catalog"
)

// ServerConfig contains configuration for the entity filter Flight server.
type ServerConfig struct {
	// Catalog provides schemas and collections.
	// REQUIRED: MUST NOT be nil.
	Catalog catalog.Catalog

	// Auth provides authentication logic. When it also implements
	// auth.CollectionAuthorizer, access is checked per collection.
	// OPTIONAL: If nil, no authentication (all requests allowed).
	Auth auth.Authenticator

	// MaxFilterDepth bounds the nesting of Filter and Any expressions in
	// client filters.
	// OPTIONAL: If 0, uses predicate.DefaultMaxDepth.
	MaxFilterDepth int

	// Allocator for Arrow memory management.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	// Note: If LogLevel is specified, a new logger will be created with that level.
	Logger *slog.Logger

	// LogLevel sets the logging level.
	// OPTIONAL: If nil, uses Info level.
	// If Logger is also provided, LogLevel is ignored (use pre-configured logger).
	LogLevel *slog.Level

	// MaxMessageSize sets maximum gRPC message size in bytes.
	// OPTIONAL: If 0, uses gRPC default (4MB).
	// Recommended: 16MB for large Arrow batches.
	MaxMessageSize int

	// Address is the server's public address (e.g., "localhost:50051").
	// OPTIONAL: If empty, FlightEndpoint locations will not include URI.
	Address string
}

// Standard errors returned by the entityfilter package.
var (
	// ErrUnauthorized indicates authentication failed.
	// Return this from Authenticator.Authenticate() for invalid tokens.
	ErrUnauthorized = auth.ErrUnauthenticated

	// ErrInvalidConfig indicates ServerConfig validation failed.
	ErrInvalidConfig = errors.New("invalid server config")

	// ErrCatalogNotFound indicates a schema or collection lookup failed.
	ErrCatalogNotFound = catalog.ErrNotFound
)
