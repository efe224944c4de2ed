package flight

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/entityfilter/auth"
	"github.com/hugr-lab/entityfilter/internal/recovery"
)

// UnaryServerInterceptor creates a gRPC unary interceptor that enriches the
// context with request metadata, validates bearer tokens and recovers
// handler panics. If no authenticator is provided, requests pass through
// without auth.
func UnaryServerInterceptor(authenticator auth.Authenticator, logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, err := authenticate(EnrichContextMetadata(ctx), authenticator)
		if err != nil {
			return nil, err
		}

		var resp any
		err = recovery.RecoverToError(logger, info.FullMethod, func() error {
			var herr error
			resp, herr = handler(ctx, req)
			return herr
		})
		return resp, err
	}
}

// StreamServerInterceptor creates a gRPC stream interceptor with the same
// behaviour as UnaryServerInterceptor.
func StreamServerInterceptor(authenticator auth.Authenticator, logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, err := authenticate(EnrichContextMetadata(ss.Context()), authenticator)
		if err != nil {
			return err
		}

		wrappedStream := &wrappedServerStream{
			ServerStream: ss,
			ctx:          ctx,
		}
		return recovery.RecoverToError(logger, info.FullMethod, func() error {
			return handler(srv, wrappedStream)
		})
	}
}

func authenticate(ctx context.Context, authenticator auth.Authenticator) (context.Context, error) {
	if authenticator == nil {
		return ctx, nil
	}

	token, err := auth.TokenFromAuthorizationHeader(AuthorizationFromContext(ctx))
	if err != nil {
		return ctx, status.Error(codes.Unauthenticated, err.Error())
	}

	ctx, err = auth.ValidateToken(ctx, token, authenticator)
	if err != nil {
		return ctx, status.Error(codes.Unauthenticated, err.Error())
	}
	return ctx, nil
}

// wrappedServerStream wraps grpc.ServerStream with a custom context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapper's custom context.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
