package flight

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/entityfilter/auth"
	"github.com/hugr-lab/entityfilter/catalog"
)

// lookup checks that the caller may read schemaName.name and resolves it.
// Returned errors are gRPC status errors.
func (s *Server) lookup(ctx context.Context, logger *slog.Logger, schemaName, name string) (catalog.Collection, error) {
	if s.authenticator != nil {
		if err := auth.AuthorizeCollection(ctx, s.authenticator, schemaName, name); err != nil {
			logger.Debug("Collection access denied",
				"schema", schemaName,
				"collection", name,
				"identity", auth.IdentityFromContext(ctx),
			)
			return nil, status.Errorf(codes.PermissionDenied, "%s.%s: %v", schemaName, name, err)
		}
	}

	collection, err := catalog.Lookup(ctx, s.catalog, schemaName, name)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, status.Error(codes.NotFound, err.Error())
	}
	if err != nil {
		logger.Error("Failed to resolve collection",
			"schema", schemaName,
			"collection", name,
			"error", err,
		)
		return nil, status.Errorf(codes.Internal, "failed to resolve collection: %v", err)
	}
	return collection, nil
}

// plan resolves the collection of q and compiles its filter into scan
// options. Returned errors are gRPC status errors.
func (s *Server) plan(ctx context.Context, logger *slog.Logger, q *Query) (catalog.Collection, *catalog.ScanOptions, error) {
	collection, err := s.lookup(ctx, logger, q.Schema, q.Collection)
	if err != nil {
		return nil, nil, err
	}

	opts := &catalog.ScanOptions{
		Columns: q.Columns,
		Filter:  q.Filter,
		Limit:   q.Limit,
	}
	if q.Filter.IsEmpty() {
		return collection, opts, nil
	}

	entityType := collection.EntityType()
	if entityType == nil {
		return nil, nil, status.Errorf(codes.FailedPrecondition,
			"collection %s.%s does not support filters", q.Schema, q.Collection)
	}

	p, err := s.compiler.Compile(q.Filter, entityType)
	if err != nil {
		logger.Debug("Filter compilation failed",
			"schema", q.Schema,
			"collection", q.Collection,
			"error", err,
		)
		return nil, nil, compileStatus(err)
	}
	opts.Predicate = p

	if p != nil {
		logger.Debug("Filter compiled",
			"schema", q.Schema,
			"collection", q.Collection,
			"predicate", p.String(),
		)
	}
	return collection, opts, nil
}
