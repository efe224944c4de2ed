// Package recovery converts panics in catalog code into errors so a
// misbehaving collection cannot crash the server.
package recovery

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrPanic is wrapped by errors produced from a recovered panic.
var ErrPanic = errors.New("panic recovered")

// RecoverToError calls fn and converts a panic into a gRPC Internal error.
//
// Example:
//
//	err := recovery.RecoverToError(logger, "DoGet", func() error {
//	    return handler(srv, stream)
//	})
func RecoverToError(logger *slog.Logger, operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic recovered",
				"operation", operation,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = status.Errorf(codes.Internal, "%s panicked: %v", operation, r)
		}
	}()

	return fn()
}

// RecoverToValue calls fn and converts a panic into a zero value and an
// error wrapping ErrPanic.
//
// Example:
//
//	reader, err := recovery.RecoverToValue(logger, "Scan", func() (array.RecordReader, error) {
//	    return collection.Scan(ctx, opts)
//	})
func RecoverToValue[T any](logger *slog.Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic recovered",
				"operation", operation,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			var zero T
			result = zero
			err = fmt.Errorf("%w: %s: %v", ErrPanic, operation, r)
		}
	}()

	return fn()
}
