package flight

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/entityfilter/predicate"
)

// compileStatus maps a filter compilation error to a gRPC status.
// Filters that cannot apply to the collection are the client's fault;
// paths that do not resolve mean the client's view of the schema is stale.
func compileStatus(err error) error {
	switch {
	case errors.Is(err, predicate.ErrUnsupportedOperation),
		errors.Is(err, predicate.ErrValueCoercion),
		errors.Is(err, predicate.ErrUnknownOperator),
		errors.Is(err, predicate.ErrMaxDepth):
		return status.Errorf(codes.InvalidArgument, "invalid filter: %v", err)
	case errors.Is(err, predicate.ErrUnresolvablePath):
		return status.Errorf(codes.FailedPrecondition, "invalid filter: %v", err)
	}
	return status.Errorf(codes.Internal, "failed to compile filter: %v", err)
}

// scanStatus maps a scan error to a gRPC status.
func scanStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}
	return status.Errorf(codes.Internal, "scan failed: %v", err)
}
